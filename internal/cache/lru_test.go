package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"storefront/internal/model"
)

func order(id string) *model.Order {
	return &model.Order{ID: id, Status: model.OrderStatusPaid, Items: []model.OrderItem{{ProductID: "p1", Quantity: 1}}}
}

func TestLRUCache_SetAndGet(t *testing.T) {
	cache := NewLRUCache(2)
	assertions := assert.New(t)
	ctx := context.Background()

	// 1. Добавить первый элемент
	cache.Set(ctx, "key1", order("o1"))
	val, found := cache.Get(ctx, "key1")
	assertions.True(found)
	assertions.Equal("o1", val.ID)

	// 2. Добавить второй элемент
	cache.Set(ctx, "key2", order("o2"))
	val, found = cache.Get(ctx, "key2")
	assertions.True(found)
	assertions.Equal("o2", val.ID)

	// 3. Проверить, что оба на месте
	_, found = cache.Get(ctx, "key1")
	assertions.True(found)
}

func TestLRUCache_Eviction(t *testing.T) {
	cache := NewLRUCache(2)
	assertions := assert.New(t)
	ctx := context.Background()

	cache.Set(ctx, "key1", order("o1"))
	cache.Set(ctx, "key2", order("o2"))

	// Добавить третий элемент, "key1" (самый старый) должен вытесниться
	cache.Set(ctx, "key3", order("o3"))

	_, found := cache.Get(ctx, "key1")
	assertions.False(found, "key1 should be evicted")

	_, found = cache.Get(ctx, "key2")
	assertions.True(found)
	_, found = cache.Get(ctx, "key3")
	assertions.True(found)
}

func TestLRUCache_UsageUpdatesOrder(t *testing.T) {
	cache := NewLRUCache(2)
	assertions := assert.New(t)
	ctx := context.Background()

	cache.Set(ctx, "key1", order("o1"))
	cache.Set(ctx, "key2", order("o2")) // "key1" - старый, "key2" - новый

	// 1. Используем "key1", он должен стать самым новым
	cache.Get(ctx, "key1")

	// 2. Добавляем "key3". Теперь "key2" (как самый старый) должен вытесниться
	cache.Set(ctx, "key3", order("o3"))

	_, found := cache.Get(ctx, "key2")
	assertions.False(found, "key2 should be evicted")

	_, found = cache.Get(ctx, "key1")
	assertions.True(found)
	_, found = cache.Get(ctx, "key3")
	assertions.True(found)
}

func TestLRUCache_UpdateValue(t *testing.T) {
	cache := NewLRUCache(2)
	ctx := context.Background()

	cache.Set(ctx, "key1", order("o1"))

	updated := order("o1")
	updated.Status = model.OrderStatusShipped
	cache.Set(ctx, "key1", updated)

	val, found := cache.Get(ctx, "key1")
	assert.True(t, found)
	assert.Equal(t, model.OrderStatusShipped, val.Status)
}

func TestLRUCache_Delete(t *testing.T) {
	cache := NewLRUCache(2)
	ctx := context.Background()

	cache.Set(ctx, "key1", order("o1"))
	cache.Delete(ctx, "key1")
	cache.Delete(ctx, "missing")

	_, found := cache.Get(ctx, "key1")
	assert.False(t, found)
}

func TestLRUCache_StoresCopies(t *testing.T) {
	cache := NewLRUCache(2)
	ctx := context.Background()

	o := order("o1")
	cache.Set(ctx, "key1", o)
	o.Status = model.OrderStatusCancelled
	o.Items[0].Quantity = 50

	val, _ := cache.Get(ctx, "key1")
	assert.Equal(t, model.OrderStatusPaid, val.Status)
	assert.Equal(t, 1, val.Items[0].Quantity)

	val.Status = model.OrderStatusBlocked
	again, _ := cache.Get(ctx, "key1")
	assert.Equal(t, model.OrderStatusPaid, again.Status)
}

func TestLRUCache_ZeroCapacity(t *testing.T) {
	// Кэш с 0 емкостью не должен ничего хранить
	cache := NewLRUCache(0)
	ctx := context.Background()

	cache.Set(ctx, "key1", order("o1"))
	_, found := cache.Get(ctx, "key1")
	assert.False(t, found)
}

type stubLister struct {
	orders []model.Order
	err    error
}

func (s stubLister) ListOrders(context.Context, model.OrderFilter) ([]model.Order, error) {
	return s.orders, s.err
}

func TestWarmUp(t *testing.T) {
	cache := NewLRUCache(10)
	ctx := context.Background()

	err := WarmUp(ctx, stubLister{orders: []model.Order{*order("o1"), *order("o2")}}, cache, 10, zaptest.NewLogger(t))
	assert.NoError(t, err)

	val, found := cache.Get(ctx, "o2")
	assert.True(t, found)
	assert.Equal(t, "o2", val.ID)

	err = WarmUp(ctx, stubLister{err: errors.New("db down")}, cache, 10, zaptest.NewLogger(t))
	assert.Error(t, err)
}
