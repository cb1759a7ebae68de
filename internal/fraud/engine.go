package fraud

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"storefront/internal/metrics"
	"storefront/internal/model"
)

// History отдает историю актора для обогащения контекста.
type History interface {
	// RecentOrderTimes не учитывает заказ excludeOrderID: проверяемый заказ не входит в свою историю.
	RecentOrderTimes(ctx context.Context, actor model.Actor, since time.Time, excludeOrderID string) ([]time.Time, error)
	PaymentFailureTimes(ctx context.Context, actor model.Actor, since time.Time) ([]time.Time, error)
}

// FlagStore сохраняет флаги и применяет действия правил к заказам.
type FlagStore interface {
	SaveFraudFlag(ctx context.Context, flag *model.FraudFlag) error
	MarkFraudFlagUnderReview(ctx context.Context, flagID string) error
	SetOrderFraudStatus(ctx context.Context, orderID string, status model.OrderStatus, flagID string) error
}

// Alerter доставляет уведомления о сработавших правилах.
type Alerter interface {
	FraudAlert(ctx context.Context, flag model.FraudFlag, severity string) error
}

type Engine struct {
	rules     []Rule
	history   History
	store     FlagStore
	cooldowns Cooldowns
	alerter   Alerter
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

type Option func(*Engine)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithAlerter(a Alerter) Option {
	return func(e *Engine) { e.alerter = a }
}

// NewEngine проверяет правила и собирает движок. Порядок правил сохраняется.
func NewEngine(rules []Rule, history History, store FlagStore, cooldowns Cooldowns, logger *zap.Logger, opts ...Option) (*Engine, error) {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		rules:     append([]Rule(nil), rules...),
		history:   history,
		store:     store,
		cooldowns: cooldowns,
		logger:    logger,
		tracer:    otel.Tracer("fraud-engine"),
		now:       time.Now,
		limiters:  make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, r := range e.rules {
		if r.MaxTriggersPerHour > 0 {
			e.limiters[r.ID] = rate.NewLimiter(rate.Every(time.Hour/time.Duration(r.MaxTriggersPerHour)), r.MaxTriggersPerHour)
		}
	}
	return e, nil
}

// Rules возвращает копию набора правил.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Evaluate прогоняет включенные правила по контексту и возвращает созданные флаги.
// Ошибки хранилищ не прерывают проверку: они логируются, а проверка продолжается
// с тем, что удалось получить.
func (e *Engine) Evaluate(ctx context.Context, fc Context) []model.FraudFlag {
	ctx, span := e.tracer.Start(ctx, "Engine.Evaluate")
	defer span.End()

	ev := &evaluation{fc: fc, now: e.now()}
	ev.hist = e.loadHistory(ctx, fc.actor(), fc.orderID(), ev.now)

	var flags []model.FraudFlag
	for _, r := range e.rules {
		if !r.Enabled || !ev.matchesAll(r) {
			continue
		}
		if !e.admit(ctx, r, fc.actor()) {
			continue
		}
		flag := e.raise(ctx, r, ev)
		flags = append(flags, flag)
	}
	span.SetAttributes(attribute.Int("fraud.flags", len(flags)))
	return flags
}

// loadHistory параллельно запрашивает заказы и неуспешные оплаты актора.
func (e *Engine) loadHistory(ctx context.Context, actor model.Actor, orderID string, now time.Time) history {
	var h history
	if e.history == nil || actor.Key() == "" {
		return h
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		times, err := e.history.RecentOrderTimes(gctx, actor, now.Add(-orderLookback), orderID)
		if err != nil {
			e.logger.Warn("Не удалось получить историю заказов", zap.String("actor", actor.Key()), zap.Error(err))
			return nil
		}
		h.orderTimes = times
		return nil
	})
	g.Go(func() error {
		times, err := e.history.PaymentFailureTimes(gctx, actor, now.Add(-failureLookback))
		if err != nil {
			e.logger.Warn("Не удалось получить историю неуспешных оплат", zap.String("actor", actor.Key()), zap.Error(err))
			return nil
		}
		h.failureTimes = times
		return nil
	})
	_ = g.Wait()
	return h
}

// admit проверяет часовой лимит и кулдаун правила. Лимит проверяется первым:
// отклоненное лимитом срабатывание не занимает кулдаун, а отклоненное
// кулдауном возвращает лимиту токен.
func (e *Engine) admit(ctx context.Context, r Rule, actor model.Actor) bool {
	key := actor.Key()
	if key == "" {
		key = "anonymous"
	}
	now := e.now()

	e.mu.Lock()
	lim := e.limiters[r.ID]
	e.mu.Unlock()
	var reservation *rate.Reservation
	if lim != nil {
		reservation = lim.ReserveN(now, 1)
		if !reservation.OK() || reservation.DelayFrom(now) > 0 {
			reservation.CancelAt(now)
			metrics.FraudRulesSuppressed.WithLabelValues(r.ID, "rate_limit").Inc()
			e.logger.Info("Правило достигло часового лимита срабатываний", zap.String("rule", r.ID))
			return false
		}
	}

	if e.cooldowns != nil {
		ok, err := e.cooldowns.Acquire(ctx, r.ID, key, r.cooldown())
		if err != nil {
			e.logger.Warn("Кулдаун недоступен, правило применяется без него",
				zap.String("rule", r.ID), zap.Error(err))
		} else if !ok {
			if reservation != nil {
				reservation.CancelAt(now)
			}
			metrics.FraudRulesSuppressed.WithLabelValues(r.ID, "cooldown").Inc()
			return false
		}
	}
	return true
}

func (e *Engine) raise(ctx context.Context, r Rule, ev *evaluation) model.FraudFlag {
	now := ev.now
	actor := ev.fc.actor()
	flag := model.FraudFlag{
		ID:             uuid.NewString(),
		OrderID:        ev.fc.orderID(),
		UserID:         actor.UserID,
		IPAddress:      actor.IPAddress,
		Email:          actor.Email,
		Type:           r.Type,
		Severity:       r.Severity,
		Score:          r.Score,
		TriggeredRules: []string{r.ID},
		Metadata:       ev.metadata(),
		Status:         model.FraudStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if r.Severity.Blocking() {
		flag.Status = model.FraudStatusUnderReview
	}

	persisted := true
	if e.store != nil {
		if err := e.store.SaveFraudFlag(ctx, &flag); err != nil {
			persisted = false
			metrics.DBErrors.WithLabelValues("save_fraud_flag").Inc()
			e.logger.Error("Не удалось сохранить фрод-флаг", zap.String("rule", r.ID), zap.Error(err))
		}
	}
	metrics.FraudFlagsRaised.WithLabelValues(r.ID, string(r.Severity)).Inc()
	e.logger.Warn("Сработало фрод-правило",
		zap.String("rule", r.ID),
		zap.String("severity", string(r.Severity)),
		zap.Int("score", r.Score),
		zap.String("order_id", flag.OrderID),
		zap.String("actor", actor.Key()),
	)

	for _, a := range r.Actions {
		if err := e.apply(ctx, a, &flag, ev, persisted); err != nil {
			e.logger.Error("Не удалось выполнить действие правила",
				zap.String("rule", r.ID), zap.String("action", string(a.Type)), zap.Error(err))
		}
	}
	return flag
}

func (e *Engine) apply(ctx context.Context, a Action, flag *model.FraudFlag, ev *evaluation, persisted bool) error {
	switch a.Type {
	case ActionFlagOrder:
		return nil
	case ActionHoldOrder:
		return e.setOrderStatus(ctx, flag, ev, model.OrderStatusPendingReview)
	case ActionBlockOrder:
		return e.setOrderStatus(ctx, flag, ev, model.OrderStatusBlocked)
	case ActionSendAlert:
		if e.alerter == nil {
			return nil
		}
		severity := a.Params["severity"]
		if severity == "" {
			severity = string(flag.Severity)
		}
		return e.alerter.FraudAlert(ctx, *flag, severity)
	case ActionRequireReview:
		if flag.Status == model.FraudStatusUnderReview {
			return nil
		}
		flag.Status = model.FraudStatusUnderReview
		if e.store == nil || !persisted {
			return nil
		}
		return e.store.MarkFraudFlagUnderReview(ctx, flag.ID)
	}
	return fmt.Errorf("неизвестное действие %q", a.Type)
}

// setOrderStatus меняет статус заказа, только если заказ уже существует.
func (e *Engine) setOrderStatus(ctx context.Context, flag *model.FraudFlag, ev *evaluation, status model.OrderStatus) error {
	if flag.OrderID == "" || e.store == nil {
		return nil
	}
	if err := e.store.SetOrderFraudStatus(ctx, flag.OrderID, status, flag.ID); err != nil {
		return err
	}
	ev.fc.Order.Status = status
	ev.fc.Order.FraudFlagID = flag.ID
	return nil
}
