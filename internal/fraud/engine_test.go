package fraud

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storefront/internal/model"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeHistory struct {
	orders   []time.Time
	failures []time.Time
	err      error
	excluded string
}

func (h *fakeHistory) RecentOrderTimes(_ context.Context, _ model.Actor, _ time.Time, excludeOrderID string) ([]time.Time, error) {
	h.excluded = excludeOrderID
	return h.orders, h.err
}

func (h *fakeHistory) PaymentFailureTimes(_ context.Context, _ model.Actor, _ time.Time) ([]time.Time, error) {
	return h.failures, h.err
}

type fakeStore struct {
	mu       sync.Mutex
	saved    []model.FraudFlag
	marked   []string
	statuses map[string]model.OrderStatus
	saveErr  error
}

func (s *fakeStore) SaveFraudFlag(_ context.Context, f *model.FraudFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, *f)
	return nil
}

func (s *fakeStore) MarkFraudFlagUnderReview(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, id)
	return nil
}

func (s *fakeStore) SetOrderFraudStatus(_ context.Context, orderID string, status model.OrderStatus, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statuses == nil {
		s.statuses = make(map[string]model.OrderStatus)
	}
	s.statuses[orderID] = status
	return nil
}

type fakeAlerter struct {
	mu         sync.Mutex
	severities []string
}

func (a *fakeAlerter) FraudAlert(_ context.Context, _ model.FraudFlag, severity string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.severities = append(a.severities, severity)
	return nil
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, rules []Rule, h History, s *fakeStore, a Alerter) (*Engine, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: testNow}
	e, err := NewEngine(rules, h, s, NewMemoryCooldowns(clk.Now), zaptest.NewLogger(t), WithClock(clk.Now), WithAlerter(a))
	require.NoError(t, err)
	return e, clk
}

func orderWithTotal(id string, total int64) *model.Order {
	return &model.Order{
		ID:            id,
		CustomerEmail: "buyer@example.com",
		Total:         decimal.NewFromInt(total),
		Status:        model.OrderStatusPending,
		Items: []model.OrderItem{
			{ProductID: "lip-01", Quantity: 1, Price: decimal.NewFromInt(total)},
		},
	}
}

func flagTypes(flags []model.FraudFlag) []model.FraudFlagType {
	out := make([]model.FraudFlagType, 0, len(flags))
	for _, f := range flags {
		out = append(out, f.Type)
	}
	return out
}

func TestEvaluate_RepeatedFailedPayments(t *testing.T) {
	h := &fakeHistory{failures: []time.Time{
		testNow.Add(-10 * time.Minute),
		testNow.Add(-5 * time.Minute),
		testNow.Add(-1 * time.Minute),
	}}
	store := &fakeStore{}
	alerts := &fakeAlerter{}
	e, _ := newTestEngine(t, DefaultRules(), h, store, alerts)

	flags := e.Evaluate(context.Background(), Context{
		IPAddress: "203.0.113.7",
		Order:     orderWithTotal("", 500),
	})

	require.Len(t, flags, 1)
	f := flags[0]
	assert.Equal(t, model.FlagRepeatedFailedPayments, f.Type)
	assert.Equal(t, model.SeverityHigh, f.Severity)
	assert.Equal(t, 75, f.Score)
	assert.Equal(t, model.FraudStatusUnderReview, f.Status)
	assert.Equal(t, []string{"repeated_failed_payments"}, f.TriggeredRules)
	assert.Equal(t, 3, f.Metadata.PaymentFailureCount)
	assert.Equal(t, "example.com", f.Metadata.EmailDomain)
	assert.Empty(t, f.OrderID)

	require.Len(t, store.saved, 1)
	assert.Equal(t, []string{"high"}, alerts.severities)
}

func TestEvaluate_CooldownSuppressesThenExpires(t *testing.T) {
	h := &fakeHistory{failures: []time.Time{
		testNow.Add(-10 * time.Minute),
		testNow.Add(-5 * time.Minute),
		testNow.Add(-1 * time.Minute),
	}}
	e, clk := newTestEngine(t, DefaultRules(), h, &fakeStore{}, nil)
	fc := Context{IPAddress: "203.0.113.7", Order: orderWithTotal("", 500)}

	require.Len(t, e.Evaluate(context.Background(), fc), 1)

	// Повтор в пределах 30-минутного кулдауна подавляется.
	clk.Advance(5 * time.Minute)
	assert.Empty(t, e.Evaluate(context.Background(), fc))

	// После кулдауна правило срабатывает снова: неуспешные оплаты еще в часовом окне.
	clk.Advance(26 * time.Minute)
	flags := e.Evaluate(context.Background(), fc)
	require.Len(t, flags, 1)
	assert.Equal(t, model.FlagRepeatedFailedPayments, flags[0].Type)
}

func TestEvaluate_CooldownIsPerActor(t *testing.T) {
	h := &fakeHistory{failures: []time.Time{
		testNow.Add(-3 * time.Minute), testNow.Add(-2 * time.Minute), testNow.Add(-1 * time.Minute),
	}}
	e, _ := newTestEngine(t, DefaultRules(), h, &fakeStore{}, nil)

	assert.Len(t, e.Evaluate(context.Background(), Context{IPAddress: "10.0.0.1"}), 1)
	assert.Len(t, e.Evaluate(context.Background(), Context{IPAddress: "10.0.0.2"}), 1)
	assert.Empty(t, e.Evaluate(context.Background(), Context{IPAddress: "10.0.0.1"}))
}

func TestEvaluate_MaxTriggersPerHour(t *testing.T) {
	rule := foreignRule(2, time.Second)
	e, clk := newTestEngine(t, []Rule{rule}, &fakeHistory{}, &fakeStore{}, nil)

	var fired int
	for i := 0; i < 5; i++ {
		fired += len(e.Evaluate(context.Background(), Context{IPAddress: "10.0.0.9", IPCountry: "ng"}))
		clk.Advance(2 * time.Second)
	}
	assert.Equal(t, 2, fired)

	clk.Advance(time.Hour)
	assert.Len(t, e.Evaluate(context.Background(), Context{IPAddress: "10.0.0.9", IPCountry: "NG"}), 1)
}

func foreignRule(maxPerHour int, cooldown time.Duration) Rule {
	return Rule{
		ID:                 "foreign",
		Type:               model.FlagForeignPaymentPattern,
		Enabled:            true,
		Severity:           model.SeverityLow,
		Score:              10,
		Conditions:         []Condition{{Field: FieldIPCountry, Operator: OpIn, Set: []string{"NG"}}},
		Actions:            []Action{{Type: ActionFlagOrder}},
		Cooldown:           cooldown,
		MaxTriggersPerHour: maxPerHour,
	}
}

func TestEvaluate_RateLimitedTriggerKeepsCooldownFree(t *testing.T) {
	e, clk := newTestEngine(t, []Rule{foreignRule(1, 2*time.Hour)}, &fakeHistory{}, &fakeStore{}, nil)
	a := Context{IPAddress: "10.0.0.1", IPCountry: "NG"}
	b := Context{IPAddress: "10.0.0.2", IPCountry: "NG"}

	require.Len(t, e.Evaluate(context.Background(), a), 1)
	assert.Empty(t, e.Evaluate(context.Background(), b), "hourly limit exhausted")

	// Лимит восстановился, кулдаун B не был занят отклоненным срабатыванием.
	clk.Advance(61 * time.Minute)
	assert.Len(t, e.Evaluate(context.Background(), b), 1)
	assert.Empty(t, e.Evaluate(context.Background(), a))
}

func TestEvaluate_CooldownRejectionReturnsLimiterToken(t *testing.T) {
	e, _ := newTestEngine(t, []Rule{foreignRule(2, 2*time.Hour)}, &fakeHistory{}, &fakeStore{}, nil)
	a := Context{IPAddress: "10.0.0.1", IPCountry: "NG"}

	require.Len(t, e.Evaluate(context.Background(), a), 1)
	assert.Empty(t, e.Evaluate(context.Background(), a))
	assert.Len(t, e.Evaluate(context.Background(), Context{IPAddress: "10.0.0.2", IPCountry: "NG"}), 1)
	assert.Empty(t, e.Evaluate(context.Background(), Context{IPAddress: "10.0.0.3", IPCountry: "NG"}))
}

func TestEvaluate_HistoryExcludesEvaluatedOrder(t *testing.T) {
	h := &fakeHistory{}
	e, _ := newTestEngine(t, DefaultRules(), h, &fakeStore{}, nil)

	e.Evaluate(context.Background(), Context{IPAddress: "10.0.0.1", Order: orderWithTotal("ord-1", 500)})
	assert.Equal(t, "ord-1", h.excluded)

	e.Evaluate(context.Background(), Context{IPAddress: "10.0.0.1", GatewayOrderID: "order_X", ReplayCount: 1})
	assert.Empty(t, h.excluded)
}

func TestEvaluate_DeclaredOrderAndMultipleRules(t *testing.T) {
	o := orderWithTotal("", 20000)
	o.Items[0].Quantity = 5
	e, _ := newTestEngine(t, DefaultRules(), &fakeHistory{}, &fakeStore{}, nil)

	flags := e.Evaluate(context.Background(), Context{
		Email:       "buyer@example.com",
		Order:       o,
		StockLevels: map[string]int{"lip-01": 5},
	})

	assert.Equal(t, []model.FraudFlagType{model.FlagHighValueNewUser, model.FlagStockDrainingAttack}, flagTypes(flags))
	assert.InDelta(t, 1.0, flags[1].Metadata.StockDepletion, 1e-9)
	assert.Equal(t, []string{"lip-01"}, flags[1].Metadata.TargetProductIDs)
}

func TestEvaluate_HoldActionNeedsPersistedOrder(t *testing.T) {
	rule := Rule{
		ID:         "hold-big",
		Type:       model.FlagHighValueNewUser,
		Enabled:    true,
		Severity:   model.SeverityMedium,
		Score:      30,
		Conditions: []Condition{{Field: FieldOrderValue, Operator: OpGreaterThan, Number: 1000}},
		Actions:    []Action{{Type: ActionHoldOrder}},
	}

	t.Run("provisional order", func(t *testing.T) {
		store := &fakeStore{}
		e, _ := newTestEngine(t, []Rule{rule}, &fakeHistory{}, store, nil)
		flags := e.Evaluate(context.Background(), Context{Email: "a@b.c", Order: orderWithTotal("", 2000)})
		require.Len(t, flags, 1)
		assert.Empty(t, store.statuses)
	})

	t.Run("existing order", func(t *testing.T) {
		store := &fakeStore{}
		e, _ := newTestEngine(t, []Rule{rule}, &fakeHistory{}, store, nil)
		o := orderWithTotal("ord-1", 2000)
		flags := e.Evaluate(context.Background(), Context{Email: "a@b.c", Order: o})
		require.Len(t, flags, 1)
		assert.Equal(t, model.OrderStatusPendingReview, store.statuses["ord-1"])
		assert.Equal(t, model.OrderStatusPendingReview, o.Status)
		assert.Equal(t, flags[0].ID, o.FraudFlagID)
	})
}

func TestEvaluate_RequireReviewMarksLowSeverityFlag(t *testing.T) {
	rule := Rule{
		ID:         "review-all",
		Type:       model.FlagVelocityAnomaly,
		Enabled:    true,
		Severity:   model.SeverityLow,
		Score:      5,
		Conditions: []Condition{{Field: FieldEmail, Operator: OpExists}},
		Actions:    []Action{{Type: ActionRequireReview}},
	}
	store := &fakeStore{}
	e, _ := newTestEngine(t, []Rule{rule}, &fakeHistory{}, store, nil)

	flags := e.Evaluate(context.Background(), Context{Email: "a@b.c"})
	require.Len(t, flags, 1)
	assert.Equal(t, model.FraudStatusUnderReview, flags[0].Status)
	assert.Equal(t, []string{flags[0].ID}, store.marked)
}

func TestEvaluate_ReplayOnDuplicateDelivery(t *testing.T) {
	store := &fakeStore{}
	alerts := &fakeAlerter{}
	e, _ := newTestEngine(t, DefaultRules(), &fakeHistory{}, store, alerts)

	assert.Empty(t, e.Evaluate(context.Background(), Context{GatewayOrderID: "order_X1", IPAddress: "10.1.1.1"}),
		"first delivery is not a replay")

	flags := e.Evaluate(context.Background(), Context{GatewayOrderID: "order_X1", IPAddress: "10.1.1.1", ReplayCount: 1})
	require.Len(t, flags, 1)
	assert.Equal(t, model.FlagWebhookReplayAttack, flags[0].Type)
	assert.Equal(t, model.SeverityCritical, flags[0].Severity)
	assert.Empty(t, store.statuses, "block_order without an order must not touch orders")
	assert.Equal(t, []string{"critical"}, alerts.severities)
}

func TestEvaluate_DegradesOnFailures(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("connection reset")}
	h := &fakeHistory{err: errors.New("timeout")}
	e, _ := newTestEngine(t, DefaultRules(), h, store, nil)

	flags := e.Evaluate(context.Background(), Context{Email: "new@example.com", Order: orderWithTotal("", 15000)})

	require.Len(t, flags, 1)
	assert.Equal(t, model.FlagHighValueNewUser, flags[0].Type)
}

func TestEvaluate_DisabledRuleIgnored(t *testing.T) {
	rules := DefaultRules()
	for i := range rules {
		rules[i].Enabled = false
	}
	e, _ := newTestEngine(t, rules, &fakeHistory{}, &fakeStore{}, nil)
	assert.Empty(t, e.Evaluate(context.Background(), Context{Email: "a@b.c", IPCountry: "NG", Order: orderWithTotal("", 50000)}))
}

func TestRuleValidate(t *testing.T) {
	for _, r := range DefaultRules() {
		assert.NoError(t, r.Validate(), r.ID)
	}

	bad := []Rule{
		{ID: "unknown-field", Conditions: []Condition{{Field: "cardNumber", Operator: OpExists}}},
		{ID: "text-gt", Conditions: []Condition{{Field: FieldEmail, Operator: OpGreaterThan, Number: 1}}},
		{ID: "num-in", Conditions: []Condition{{Field: FieldOrderValue, Operator: OpIn}}},
		{ID: "bad-op", Conditions: []Condition{{Field: FieldOrderValue, Operator: "regex"}}},
		{ID: "bad-action", Actions: []Action{{Type: "refund"}}},
		{ID: "bad-score", Score: 101},
		{},
	}
	for _, r := range bad {
		assert.Error(t, r.Validate(), r.ID)
	}

	_, err := NewEngine(bad[:1], nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestConditionOperators(t *testing.T) {
	ev := &evaluation{
		now: testNow,
		fc:  Context{IPAddress: "1.2.3.4", IPCountry: "in", Order: orderWithTotal("", 300)},
		hist: history{orderTimes: []time.Time{
			testNow.Add(-20 * time.Hour),
			testNow.Add(-50 * time.Minute),
			testNow.Add(-10 * time.Minute),
		}},
	}

	cases := []struct {
		name string
		c    Condition
		want bool
	}{
		{"equals numeric", Condition{Field: FieldOrderValue, Operator: OpEquals, Number: 300}, true},
		{"equals text", Condition{Field: FieldIPAddress, Operator: OpEquals, Text: "1.2.3.4"}, true},
		{"greater", Condition{Field: FieldOrderCount, Operator: OpGreaterThan, Number: 2}, true},
		{"window narrows", Condition{Field: FieldOrderCount, Operator: OpGreaterThan, Number: 1, Window: time.Hour}, true},
		{"narrow window", Condition{Field: FieldOrderCount, Operator: OpGreaterThan, Number: 1, Window: 30 * time.Minute}, false},
		{"order window", Condition{Field: FieldOrderWindow, Operator: OpLessThan, Number: 41}, true},
		{"in", Condition{Field: FieldIPCountry, Operator: OpIn, Set: []string{"IN", "US"}}, true},
		{"not in", Condition{Field: FieldIPCountry, Operator: OpNotIn, Set: []string{"IN"}}, false},
		{"exists missing", Condition{Field: FieldGatewayOrderID, Operator: OpExists}, false},
		{"not new user", Condition{Field: FieldNewUserOrderCount, Operator: OpEquals, Number: 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ev.matches(tc.c))
		})
	}
}

func TestSummarize(t *testing.T) {
	flags := []model.FraudFlag{
		{Type: model.FlagVelocityAnomaly, Severity: model.SeverityMedium, Status: model.FraudStatusPending, Score: 60},
		{Type: model.FlagVelocityAnomaly, Severity: model.SeverityHigh, Status: model.FraudStatusFalsePositive, Score: 80, FalsePositive: true},
		{Type: model.FlagHighValueNewUser, Severity: model.SeverityHigh, Status: model.FraudStatusUnderReview, Score: 70},
	}
	st := Summarize(flags, testNow.Add(-24*time.Hour), testNow)

	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.BySeverity[model.SeverityHigh])
	assert.Equal(t, 2, st.ByType[model.FlagVelocityAnomaly])
	assert.Equal(t, 1, st.ByStatus[model.FraudStatusUnderReview])
	assert.Equal(t, 1, st.FalsePositive)
	assert.InDelta(t, 70.0, st.AverageScore, 1e-9)

	empty := Summarize(nil, testNow, testNow)
	assert.Zero(t, empty.AverageScore)
}
