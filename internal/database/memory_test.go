package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/model"
)

func lipstick(stock int) model.Product {
	return model.Product{
		ID:       "lip-velvet-01",
		Name:     "Velvet Matte Lipstick",
		PriceINR: decimal.NewFromInt(1499),
		PriceUSD: decimal.NewFromInt(18),
		Stock:    stock,
	}
}

func orderFor(gatewayID string, qty int) *model.Order {
	o := newTestOrder()
	o.ID = "ord-" + gatewayID
	o.GatewayOrderID = gatewayID
	o.Items[0].Quantity = qty
	return o
}

func stockOf(t *testing.T, s Storage, id string) int {
	t.Helper()
	products, err := s.GetProducts(context.Background(), []string{id})
	require.NoError(t, err)
	return products[id].Stock
}

func TestMemoryStorage_FinalizeOrder(t *testing.T) {
	s := NewMemory([]model.Product{lipstick(5)})
	ctx := context.Background()

	require.NoError(t, s.FinalizeOrder(ctx, orderFor("order_A", 2)))
	assert.Equal(t, 3, stockOf(t, s, "lip-velvet-01"))

	got, err := s.GetOrderByGatewayID(ctx, "order_A")
	require.NoError(t, err)
	assert.Equal(t, "ord-order_A", got.ID)

	err = s.FinalizeOrder(ctx, orderFor("order_A", 1))
	assert.ErrorIs(t, err, ErrDuplicateOrder)
	assert.Equal(t, 3, stockOf(t, s, "lip-velvet-01"), "дубликат не должен списывать остаток")
}

func TestMemoryStorage_InsufficientStockLeavesStockUntouched(t *testing.T) {
	s := NewMemory([]model.Product{lipstick(5), {ID: "eye-liner-01", Stock: 1}})
	o := orderFor("order_B", 2)
	o.Items = append(o.Items, model.OrderItem{ProductID: "eye-liner-01", Quantity: 2, Price: decimal.NewFromInt(699)})

	err := s.FinalizeOrder(context.Background(), o)
	var shortage *StockShortage
	require.ErrorAs(t, err, &shortage)
	assert.Equal(t, "eye-liner-01", shortage.ProductID)
	assert.Equal(t, 5, stockOf(t, s, "lip-velvet-01"))
	assert.Equal(t, 1, stockOf(t, s, "eye-liner-01"))

	_, err = s.GetOrderByGatewayID(context.Background(), "order_B")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage_ConcurrentFinalizeNoOversell(t *testing.T) {
	s := NewMemory([]model.Product{lipstick(5)})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.FinalizeOrder(context.Background(), orderFor(fmt.Sprintf("order_C%d", i), 3))
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientStock):
			short++
		default:
			t.Fatalf("неожиданная ошибка: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, 2, stockOf(t, s, "lip-velvet-01"))
}

func TestMemoryStorage_ConcurrentDuplicateDeliveries(t *testing.T) {
	s := NewMemory([]model.Product{lipstick(100)})

	const deliveries = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	var created, duplicates int
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.FinalizeOrder(context.Background(), orderFor("order_D", 2))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
			} else if errors.Is(err, ErrDuplicateOrder) {
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, deliveries-1, duplicates)
	assert.Equal(t, 98, stockOf(t, s, "lip-velvet-01"))
}

func TestMemoryStorage_UpdateOrderCompareAndSet(t *testing.T) {
	s := NewMemory([]model.Product{lipstick(5)})
	ctx := context.Background()
	require.NoError(t, s.FinalizeOrder(ctx, orderFor("order_E", 1)))

	notes := "передан в доставку"
	updated, err := s.UpdateOrder(ctx, "ord-order_E", model.OrderStatusPaid, model.OrderStatusShipped, &notes)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusShipped, updated.Status)
	assert.Equal(t, notes, updated.FulfillmentNotes)

	_, err = s.UpdateOrder(ctx, "ord-order_E", model.OrderStatusPaid, model.OrderStatusCancelled, nil)
	assert.ErrorIs(t, err, ErrStatusConflict)

	_, err = s.UpdateOrder(ctx, "missing", model.OrderStatusPaid, model.OrderStatusShipped, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	s := NewMemory([]model.Product{lipstick(5)})
	ctx := context.Background()
	require.NoError(t, s.FinalizeOrder(ctx, orderFor("order_F", 1)))

	got, err := s.GetOrder(ctx, "ord-order_F")
	require.NoError(t, err)
	got.Items[0].Quantity = 99
	got.Status = model.OrderStatusCancelled

	again, err := s.GetOrder(ctx, "ord-order_F")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Items[0].Quantity)
	assert.Equal(t, model.OrderStatusPaid, again.Status)
}

func TestMemoryStorage_FraudFlags(t *testing.T) {
	s := NewMemory(nil)
	ctx := context.Background()

	flag := &model.FraudFlag{
		ID: "flag-1", OrderID: "ord-1", Type: model.FlagVelocityAnomaly, Severity: model.SeverityMedium,
		Score: 65, Status: model.FraudStatusPending, CreatedAt: testCreatedAt, TriggeredRules: []string{"velocity_anomaly"},
	}
	require.NoError(t, s.SaveFraudFlag(ctx, flag))
	require.NoError(t, s.MarkFraudFlagUnderReview(ctx, "flag-1"))

	got, err := s.GetFraudFlag(ctx, "flag-1")
	require.NoError(t, err)
	assert.Equal(t, model.FraudStatusUnderReview, got.Status)

	reviewedAt := testCreatedAt.Add(time.Hour)
	reviewed, err := s.ReviewFraudFlag(ctx, "flag-1", model.FraudStatusUnderReview, model.FraudReview{
		Status: model.FraudStatusFalsePositive, ReviewedBy: "ops@example.com", ReviewedAt: reviewedAt,
	})
	require.NoError(t, err)
	assert.True(t, reviewed.FalsePositive)
	assert.Equal(t, "ops@example.com", reviewed.ReviewedBy)
	require.NotNil(t, reviewed.ReviewedAt)
	assert.True(t, reviewed.ReviewedAt.Equal(reviewedAt))

	_, err = s.ReviewFraudFlag(ctx, "flag-1", model.FraudStatusUnderReview, model.FraudReview{Status: model.FraudStatusApproved})
	assert.ErrorIs(t, err, ErrStatusConflict)

	flags, err := s.ListFraudFlags(ctx, model.FraudFlagFilter{OrderID: "ord-1"})
	require.NoError(t, err)
	assert.Len(t, flags, 1)

	flags, err = s.ListFraudFlags(ctx, model.FraudFlagFilter{From: testCreatedAt.Add(time.Minute)})
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestMemoryStorage_History(t *testing.T) {
	s := NewMemory([]model.Product{lipstick(50)})
	ctx := context.Background()

	for i, age := range []time.Duration{10 * time.Minute, 3 * time.Hour, 30 * time.Hour} {
		o := orderFor(fmt.Sprintf("order_H%d", i), 1)
		o.CreatedAt = testCreatedAt.Add(-age)
		require.NoError(t, s.FinalizeOrder(ctx, o))
	}
	times, err := s.RecentOrderTimes(ctx, model.Actor{IPAddress: "203.0.113.5"}, testCreatedAt.Add(-24*time.Hour), "")
	require.NoError(t, err)
	assert.Len(t, times, 2)

	// Проверяемый заказ в свою историю не входит.
	times, err = s.RecentOrderTimes(ctx, model.Actor{IPAddress: "203.0.113.5"}, testCreatedAt.Add(-24*time.Hour), "ord-order_H0")
	require.NoError(t, err)
	assert.Len(t, times, 1)

	times, err = s.RecentOrderTimes(ctx, model.Actor{IPAddress: "198.51.100.1"}, testCreatedAt.Add(-24*time.Hour), "")
	require.NoError(t, err)
	assert.Empty(t, times)

	require.NoError(t, s.RecordPaymentFailure(ctx, &model.PaymentFailure{ID: "pf-1", Email: "a@b.c", CreatedAt: testCreatedAt}))
	times, err = s.PaymentFailureTimes(ctx, model.Actor{Email: "a@b.c"}, testCreatedAt.Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, times, 1)
}

func TestMemoryStorage_StockExceptionIdempotent(t *testing.T) {
	s := NewMemory(nil)
	e := model.StockException{GatewayOrderID: "order_X", Reason: "insufficient_stock"}

	created, err := s.RecordStockException(context.Background(), e)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.RecordStockException(context.Background(), e)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestMemoryStorage_MarkWebhookDelivery(t *testing.T) {
	s := NewMemory(nil)
	ctx := context.Background()
	paid := model.WebhookDelivery{Event: "order.paid", GatewayOrderID: "order_X", GatewayPaymentID: "pay_X"}

	first, err := s.MarkWebhookDelivery(ctx, paid)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = s.MarkWebhookDelivery(ctx, paid)
	require.NoError(t, err)
	assert.False(t, first)

	// Парное событие по тому же платежу - отдельная доставка.
	captured := paid
	captured.Event = "payment.captured"
	first, err = s.MarkWebhookDelivery(ctx, captured)
	require.NoError(t, err)
	assert.True(t, first)
}
