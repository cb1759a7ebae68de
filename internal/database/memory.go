package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/model"
)

// memoryStorage - Storage в памяти процесса. Все операции выполняются под
// одним мьютексом, что дает ту же сериализацию, что и транзакция FinalizeOrder.
type memoryStorage struct {
	mu              sync.Mutex
	now             func() time.Time
	products        map[string]model.Product
	orders          map[string]*model.Order
	byGateway       map[string]string
	flags           map[string]*model.FraudFlag
	failures        []model.PaymentFailure
	stockExceptions map[string]model.StockException
	deliveries      map[string]model.WebhookDelivery
}

// NewMemory создает хранилище в памяти с начальным каталогом.
func NewMemory(products []model.Product) Storage {
	s := &memoryStorage{
		now:             time.Now,
		products:        make(map[string]model.Product),
		orders:          make(map[string]*model.Order),
		byGateway:       make(map[string]string),
		flags:           make(map[string]*model.FraudFlag),
		stockExceptions: make(map[string]model.StockException),
		deliveries:      make(map[string]model.WebhookDelivery),
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func copyOrder(o *model.Order) *model.Order {
	c := *o
	c.Items = append([]model.OrderItem(nil), o.Items...)
	if o.Tax != nil {
		tax := *o.Tax
		c.Tax = &tax
	}
	return &c
}

func copyFlag(f *model.FraudFlag) *model.FraudFlag {
	c := *f
	c.TriggeredRules = append([]string(nil), f.TriggeredRules...)
	c.Metadata.TargetProductIDs = append([]string(nil), f.Metadata.TargetProductIDs...)
	if f.ReviewedAt != nil {
		t := *f.ReviewedAt
		c.ReviewedAt = &t
	}
	return &c
}

func (s *memoryStorage) FinalizeOrder(_ context.Context, order *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byGateway[order.GatewayOrderID]; ok {
		return ErrDuplicateOrder
	}
	demand, ids := stockDemand(order.Items)
	for _, id := range ids {
		p, ok := s.products[id]
		if !ok {
			return &StockShortage{ProductID: id, Requested: demand[id]}
		}
		if p.Stock < demand[id] {
			return &StockShortage{ProductID: id, Requested: demand[id], Available: p.Stock}
		}
	}
	for _, id := range ids {
		p := s.products[id]
		p.Stock -= demand[id]
		s.products[id] = p
	}
	s.orders[order.ID] = copyOrder(order)
	s.byGateway[order.GatewayOrderID] = order.ID
	return nil
}

func (s *memoryStorage) GetOrder(_ context.Context, id string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOrder(o), nil
}

func (s *memoryStorage) GetOrderByGatewayID(_ context.Context, gatewayOrderID string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byGateway[gatewayOrderID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOrder(s.orders[id]), nil
}

func (s *memoryStorage) ListOrders(_ context.Context, filter model.OrderFilter) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := make([]model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		orders = append(orders, *copyOrder(o))
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	if limit := defaultLimit(filter.Limit); len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *memoryStorage) UpdateOrder(_ context.Context, id string, from, to model.OrderStatus, notes *string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Status != from {
		return nil, ErrStatusConflict
	}
	o.Status = to
	if notes != nil {
		o.FulfillmentNotes = *notes
	}
	o.UpdatedAt = s.now()
	return copyOrder(o), nil
}

func (s *memoryStorage) SetOrderFraudStatus(_ context.Context, orderID string, status model.OrderStatus, flagID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	o.FraudFlagID = flagID
	o.UpdatedAt = s.now()
	return nil
}

func (s *memoryStorage) GetProducts(_ context.Context, ids []string) (map[string]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *memoryStorage) UpsertProduct(_ context.Context, p model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

func (s *memoryStorage) SaveFraudFlag(_ context.Context, flag *model.FraudFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[flag.ID] = copyFlag(flag)
	return nil
}

func (s *memoryStorage) MarkFraudFlagUnderReview(_ context.Context, flagID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.flags[flagID]; ok && f.Status == model.FraudStatusPending {
		f.Status = model.FraudStatusUnderReview
		f.UpdatedAt = s.now()
	}
	return nil
}

func (s *memoryStorage) GetFraudFlag(_ context.Context, id string) (*model.FraudFlag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flags[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyFlag(f), nil
}

func (s *memoryStorage) ListFraudFlags(_ context.Context, filter model.FraudFlagFilter) ([]model.FraudFlag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags := make([]model.FraudFlag, 0)
	for _, f := range s.flags {
		if filter.OrderID != "" && f.OrderID != filter.OrderID {
			continue
		}
		if !filter.From.IsZero() && f.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && f.CreatedAt.After(filter.To) {
			continue
		}
		flags = append(flags, *copyFlag(f))
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].CreatedAt.After(flags[j].CreatedAt) })
	return flags, nil
}

func (s *memoryStorage) ReviewFraudFlag(_ context.Context, id string, from model.FraudStatus, review model.FraudReview) (*model.FraudFlag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flags[id]
	if !ok {
		return nil, ErrNotFound
	}
	if f.Status != from {
		return nil, ErrStatusConflict
	}
	at := review.ReviewedAt
	f.Status = review.Status
	f.FalsePositive = review.Status == model.FraudStatusFalsePositive
	f.ReviewedBy = review.ReviewedBy
	f.ReviewedAt = &at
	f.UpdatedAt = at
	return copyFlag(f), nil
}

func (s *memoryStorage) RecordPaymentFailure(_ context.Context, f *model.PaymentFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, *f)
	return nil
}

func matchesActor(actor model.Actor, ip, email, userID string) bool {
	switch {
	case actor.IPAddress != "":
		return ip == actor.IPAddress
	case actor.Email != "":
		return email == actor.Email
	case actor.UserID != "":
		return userID == actor.UserID
	}
	return false
}

func (s *memoryStorage) RecentOrderTimes(_ context.Context, actor model.Actor, since time.Time, excludeOrderID string) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var times []time.Time
	for _, o := range s.orders {
		if o.ID == excludeOrderID {
			continue
		}
		if matchesActor(actor, o.ClientIP, o.CustomerEmail, "") && !o.CreatedAt.Before(since) {
			times = append(times, o.CreatedAt)
		}
	}
	return times, nil
}

func (s *memoryStorage) PaymentFailureTimes(_ context.Context, actor model.Actor, since time.Time) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var times []time.Time
	for _, f := range s.failures {
		if matchesActor(actor, f.IPAddress, f.Email, f.UserID) && !f.CreatedAt.Before(since) {
			times = append(times, f.CreatedAt)
		}
	}
	return times, nil
}

func (s *memoryStorage) RecordStockException(_ context.Context, e model.StockException) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stockExceptions[e.GatewayOrderID]; ok {
		return false, nil
	}
	s.stockExceptions[e.GatewayOrderID] = e
	return true, nil
}

func (s *memoryStorage) MarkWebhookDelivery(_ context.Context, d model.WebhookDelivery) (bool, error) {
	key := d.Event + "|" + d.GatewayOrderID + "|" + d.GatewayPaymentID
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deliveries[key]; ok {
		return false, nil
	}
	s.deliveries[key] = d
	return true, nil
}

func (s *memoryStorage) Ping(context.Context) error { return nil }

func (s *memoryStorage) Close() error { return nil }
