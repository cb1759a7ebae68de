package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/internal/cache"
	"storefront/internal/fraud"
	"storefront/internal/model"
)

var (
	ErrInvalidTransition = errors.New("недопустимый переход статуса")
	ErrInvalidStatus     = errors.New("неизвестный статус")
	ErrEmptyUpdate       = errors.New("нечего обновлять")
	ErrInvalidRange      = errors.New("некорректный период")
)

// Store - операции хранилища, доступные бэк-офису.
type Store interface {
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)
	UpdateOrder(ctx context.Context, id string, from, to model.OrderStatus, notes *string) (*model.Order, error)
	GetFraudFlag(ctx context.Context, id string) (*model.FraudFlag, error)
	ListFraudFlags(ctx context.Context, filter model.FraudFlagFilter) ([]model.FraudFlag, error)
	ReviewFraudFlag(ctx context.Context, id string, from model.FraudStatus, review model.FraudReview) (*model.FraudFlag, error)
}

// OrderUpdate - изменение заказа из админки. Nil-поля не меняются.
type OrderUpdate struct {
	Status           *model.OrderStatus `json:"status,omitempty"`
	FulfillmentNotes *string            `json:"fulfillmentNotes,omitempty"`
}

type Service struct {
	store  Store
	cache  cache.Cache
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewService(store Store, c cache.Cache, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		cache:  c,
		logger: logger,
		tracer: otel.Tracer("admin"),
		now:    time.Now,
	}
}

func (s *Service) ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, filter.Status)
	}
	return s.store.ListOrders(ctx, filter)
}

// GetOrder ищет заказ сначала в кэше, затем в хранилище.
func (s *Service) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	ctx, span := s.tracer.Start(ctx, "Admin.GetOrder")
	defer span.End()

	if order, found := s.cache.Get(ctx, id); found {
		return order, nil
	}
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, id, order)
	return order, nil
}

// UpdateOrder меняет статус по машине состояний и/или заметки фулфилмента.
// Статус сверяется с прочитанным: параллельное изменение дает ErrStatusConflict.
func (s *Service) UpdateOrder(ctx context.Context, id string, upd OrderUpdate, actor string) (*model.Order, error) {
	ctx, span := s.tracer.Start(ctx, "Admin.UpdateOrder")
	defer span.End()

	if upd.Status == nil && upd.FulfillmentNotes == nil {
		return nil, ErrEmptyUpdate
	}

	current, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	next := current.Status
	if upd.Status != nil && *upd.Status != current.Status {
		if !upd.Status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *upd.Status)
		}
		if !current.Status.CanTransitionTo(*upd.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, *upd.Status)
		}
		next = *upd.Status
	}

	updated, err := s.store.UpdateOrder(ctx, id, current.Status, next, upd.FulfillmentNotes)
	if err != nil {
		return nil, err
	}
	s.cache.Delete(ctx, id)

	s.logger.Info("Заказ обновлен",
		zap.String("order_id", id),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next)),
		zap.String("actor", actor))
	return updated, nil
}

func (s *Service) ListFraudFlags(ctx context.Context, orderID string) ([]model.FraudFlag, error) {
	return s.store.ListFraudFlags(ctx, model.FraudFlagFilter{OrderID: orderID})
}

// ReviewFraudFlag применяет решение ревьюера и запоминает, кто и когда его принял.
func (s *Service) ReviewFraudFlag(ctx context.Context, id string, status model.FraudStatus, reviewer string) (*model.FraudFlag, error) {
	ctx, span := s.tracer.Start(ctx, "Admin.ReviewFraudFlag")
	defer span.End()

	flag, err := s.store.GetFraudFlag(ctx, id)
	if err != nil {
		return nil, err
	}
	if !flag.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, flag.Status, status)
	}

	reviewed, err := s.store.ReviewFraudFlag(ctx, id, flag.Status, model.FraudReview{
		Status:     status,
		ReviewedBy: reviewer,
		ReviewedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Фрод-флаг рассмотрен",
		zap.String("flag_id", id),
		zap.String("status", string(status)),
		zap.String("reviewer", reviewer))
	return reviewed, nil
}

// FraudStats считает статистику флагов за период.
func (s *Service) FraudStats(ctx context.Context, from, to time.Time) (fraud.Stats, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return fraud.Stats{}, ErrInvalidRange
	}
	flags, err := s.store.ListFraudFlags(ctx, model.FraudFlagFilter{From: from, To: to})
	if err != nil {
		return fraud.Stats{}, err
	}
	return fraud.Summarize(flags, from, to), nil
}
