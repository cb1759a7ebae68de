package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"storefront/internal/model"
)

//go:generate mockgen -source=storage.go -destination=./mocks/storage_mock.go -package=mocks Storage

var (
	ErrNotFound          = errors.New("запись не найдена")
	ErrDuplicateOrder    = errors.New("заказ уже проведен")
	ErrInsufficientStock = errors.New("недостаточно товара на складе")
	ErrStatusConflict    = errors.New("статус изменился параллельно")
)

// StockShortage описывает позицию, по которой не хватило остатка.
// errors.Is(err, ErrInsufficientStock) для нее истинно.
type StockShortage struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockShortage) Error() string {
	return fmt.Sprintf("товар %s: запрошено %d, в наличии %d", e.ProductID, e.Requested, e.Available)
}

func (e *StockShortage) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Storage определяет интерфейс хранилища магазина.
type Storage interface {
	// FinalizeOrder атомарно проверяет остатки, списывает их и сохраняет заказ.
	// Возвращает ErrDuplicateOrder, если заказ с тем же GatewayOrderID уже есть,
	// и *StockShortage, если хотя бы одной позиции не хватает.
	FinalizeOrder(ctx context.Context, order *model.Order) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	GetOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*model.Order, error)
	ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)
	// UpdateOrder меняет статус и заметки, только если текущий статус равен from.
	UpdateOrder(ctx context.Context, id string, from, to model.OrderStatus, notes *string) (*model.Order, error)
	SetOrderFraudStatus(ctx context.Context, orderID string, status model.OrderStatus, flagID string) error

	GetProducts(ctx context.Context, ids []string) (map[string]model.Product, error)
	UpsertProduct(ctx context.Context, p model.Product) error

	SaveFraudFlag(ctx context.Context, flag *model.FraudFlag) error
	MarkFraudFlagUnderReview(ctx context.Context, flagID string) error
	GetFraudFlag(ctx context.Context, id string) (*model.FraudFlag, error)
	ListFraudFlags(ctx context.Context, filter model.FraudFlagFilter) ([]model.FraudFlag, error)
	// ReviewFraudFlag применяет решение ревьюера, только если текущий статус равен from.
	ReviewFraudFlag(ctx context.Context, id string, from model.FraudStatus, review model.FraudReview) (*model.FraudFlag, error)

	RecordPaymentFailure(ctx context.Context, f *model.PaymentFailure) error
	RecentOrderTimes(ctx context.Context, actor model.Actor, since time.Time, excludeOrderID string) ([]time.Time, error)
	PaymentFailureTimes(ctx context.Context, actor model.Actor, since time.Time) ([]time.Time, error)

	// RecordStockException сохраняет исключение один раз на GatewayOrderID.
	// created=false означает, что исключение уже было записано.
	RecordStockException(ctx context.Context, e model.StockException) (created bool, err error)

	// MarkWebhookDelivery запоминает доставку события. first=false означает,
	// что то же событие по тому же платежу уже приходило.
	MarkWebhookDelivery(ctx context.Context, d model.WebhookDelivery) (first bool, err error)

	Ping(ctx context.Context) error
	Close() error
}

// stockDemand суммирует количество по товару: одна позиция каталога может
// встречаться в заказе несколько раз (разные оттенки).
func stockDemand(items []model.OrderItem) (map[string]int, []string) {
	demand := make(map[string]int)
	var ids []string
	for _, it := range items {
		if _, ok := demand[it.ProductID]; !ok {
			ids = append(ids, it.ProductID)
		}
		demand[it.ProductID] += it.Quantity
	}
	sort.Strings(ids)
	return demand, ids
}

func defaultLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
