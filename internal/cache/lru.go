package cache

import (
	"container/list"
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/internal/metrics"
	"storefront/internal/model"
)

//go:generate mockgen -source=lru.go -destination=./mocks/cache_mock.go -package=mocks Cache

// Cache - кэш заказов для админки. Хранит копии, чтобы изменения
// у вызывающего не попадали в кэш.
type Cache interface {
	Set(ctx context.Context, key string, order *model.Order)
	Get(ctx context.Context, key string) (*model.Order, bool)
	Delete(ctx context.Context, key string)
}

// lruCache реализует LRU (Least Recently Used) кэш.
type lruCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	queue    *list.List
	tracer   trace.Tracer
}

type cacheItem struct {
	key   string
	value *model.Order
}

// NewLRUCache создает новый LRU-кэш с заданной емкостью.
func NewLRUCache(capacity int) Cache {
	return &lruCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		queue:    list.New(),
		tracer:   otel.Tracer("lru-cache"),
	}
}

func cloneOrder(o *model.Order) *model.Order {
	c := *o
	c.Items = append([]model.OrderItem(nil), o.Items...)
	if o.Tax != nil {
		t := *o.Tax
		c.Tax = &t
	}
	return &c
}

func (c *lruCache) Set(ctx context.Context, key string, order *model.Order) {
	_, span := c.tracer.Start(ctx, "Cache.Set")
	defer span.End()

	if c.capacity <= 0 || order == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if element, exists := c.items[key]; exists {
		c.queue.MoveToFront(element)
		element.Value.(*cacheItem).value = cloneOrder(order)
		return
	}

	if c.queue.Len() >= c.capacity {
		c.removeOldest()
	}

	element := c.queue.PushFront(&cacheItem{key: key, value: cloneOrder(order)})
	c.items[key] = element

	metrics.CacheSize.Set(float64(c.queue.Len()))
}

func (c *lruCache) Get(ctx context.Context, key string) (*model.Order, bool) {
	_, span := c.tracer.Start(ctx, "Cache.Get")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	if element, exists := c.items[key]; exists {
		c.queue.MoveToFront(element)
		metrics.CacheHits.Inc()
		return cloneOrder(element.Value.(*cacheItem).value), true
	}

	metrics.CacheMisses.Inc()
	return nil, false
}

// Delete инвалидирует запись, например после изменения статуса заказа.
func (c *lruCache) Delete(ctx context.Context, key string) {
	_, span := c.tracer.Start(ctx, "Cache.Delete")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	if element, exists := c.items[key]; exists {
		c.queue.Remove(element)
		delete(c.items, key)
		metrics.CacheSize.Set(float64(c.queue.Len()))
	}
}

// removeOldest удаляет самый старый элемент (мьютекс уже захвачен).
func (c *lruCache) removeOldest() {
	element := c.queue.Back()
	if element != nil {
		item := c.queue.Remove(element).(*cacheItem)
		delete(c.items, item.key)

		metrics.CacheEvictions.Inc()
		metrics.CacheSize.Set(float64(c.queue.Len()))
	}
}

// OrderLister - источник заказов для прогрева.
type OrderLister interface {
	ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)
}

// WarmUp загружает последние заказы в кэш.
func WarmUp(ctx context.Context, storage OrderLister, cache Cache, limit int, logger *zap.Logger) error {
	logger.Info("Выполняется прогрев кэша...")
	orders, err := storage.ListOrders(ctx, model.OrderFilter{Limit: limit})
	if err != nil {
		return err
	}

	for i := range orders {
		cache.Set(ctx, orders[i].ID, &orders[i])
	}

	logger.Info("Кэш прогрет", zap.Int("orders", len(orders)))
	return nil
}
