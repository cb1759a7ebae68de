package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/internal/fraud"
	"storefront/internal/gateway"
	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/validator"
)

//go:generate mockgen -source=checkout.go -destination=./mocks/checkout_mock.go -package=mocks Catalog,Gateway

// ErrBlockedByFraud - чекаут отклонен из-за флага высокой серьезности.
var ErrBlockedByFraud = errors.New("заказ не может быть обработан, обратитесь в поддержку")

// ValidationError - ошибка входных данных, показывается покупателю.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Catalog - авторитетный источник цен и остатков.
type Catalog interface {
	GetProducts(ctx context.Context, ids []string) (map[string]model.Product, error)
}

// Gateway создает заказ в платежном шлюзе.
type Gateway interface {
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error)
	KeyID() string
}

type TaxCalculator interface {
	Calculate(subtotal decimal.Decimal, addr model.TaxAddress) model.TaxCalculation
}

type FraudEvaluator interface {
	Evaluate(ctx context.Context, fc fraud.Context) []model.FraudFlag
}

type CartItem struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0,lte=100"`
	Shade     string `json:"shade,omitempty"`
	// Price из корзины клиента игнорируется.
	Price *decimal.Decimal `json:"price,omitempty"`
}

type Request struct {
	Items           []CartItem            `json:"items" validate:"required,min=1,dive"`
	CustomerName    string                `json:"customerName" validate:"required"`
	CustomerEmail   string                `json:"customerEmail" validate:"required,email"`
	CustomerPhone   string                `json:"customerPhone" validate:"required"`
	ShippingAddress model.ShippingAddress `json:"shippingAddress" validate:"required"`

	ClientIP  string `json:"-"`
	UserAgent string `json:"-"`
	IPCountry string `json:"-"`
}

// Session - данные для платежного виджета.
type Session struct {
	Key       string               `json:"key"`
	OrderID   string               `json:"orderId"`
	Amount    int64                `json:"amount"`
	Currency  string               `json:"currency"`
	SessionID string               `json:"sessionId"`
	Tax       model.TaxCalculation `json:"tax"`
}

type Service struct {
	catalog Catalog
	gateway Gateway
	tax     TaxCalculator
	fraud   FraudEvaluator
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

func NewService(catalog Catalog, gw Gateway, tax TaxCalculator, fraud FraudEvaluator, logger *zap.Logger) *Service {
	return &Service{
		catalog: catalog,
		gateway: gw,
		tax:     tax,
		fraud:   fraud,
		logger:  logger,
		tracer:  otel.Tracer("checkout"),
		now:     time.Now,
	}
}

// CurrencyFor выбирает валюту по стране доставки.
func CurrencyFor(country string) string {
	if strings.EqualFold(country, "IN") {
		return model.CurrencyINR
	}
	return model.CurrencyUSD
}

// CreateSession проверяет корзину по каталогу, считает налог, проверяет фрод
// и только после этого создает заказ в шлюзе.
func (s *Service) CreateSession(ctx context.Context, req Request) (_ *Session, err error) {
	ctx, span := s.tracer.Start(ctx, "Checkout.CreateSession")
	defer span.End()
	defer func() {
		metrics.CheckoutSessions.WithLabelValues(outcome(err)).Inc()
	}()

	if err := validator.ValidateStruct(req); err != nil {
		if fe, ok := validator.FirstError(err); ok {
			return nil, &ValidationError{Field: fe.Field, Message: "не прошло проверку " + fe.Tag}
		}
		return nil, &ValidationError{Message: err.Error()}
	}

	currency := CurrencyFor(req.ShippingAddress.Country)
	items, stock, err := s.priceCart(ctx, req.Items, currency)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Subtotal())
	}
	calc := s.tax.Calculate(subtotal, model.TaxAddress{
		Country:    req.ShippingAddress.Country,
		State:      req.ShippingAddress.State,
		PostalCode: req.ShippingAddress.PostalCode,
	})
	amount := gateway.ToMinorUnits(calc.Total)
	if amount <= 0 {
		return nil, &ValidationError{Field: "items", Message: "некорректная сумма оплаты"}
	}

	sessionID := uuid.NewString()
	provisional := &model.Order{
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
		Items:           items,
		Currency:        currency,
		Subtotal:        calc.Subtotal,
		TaxAmount:       calc.TaxAmount,
		Total:           calc.Total,
		Status:          model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
		ClientIP:        req.ClientIP,
		SessionID:       sessionID,
	}
	flags := s.fraud.Evaluate(ctx, fraud.Context{
		Order:       provisional,
		IPAddress:   req.ClientIP,
		UserAgent:   req.UserAgent,
		SessionID:   sessionID,
		Email:       req.CustomerEmail,
		IPCountry:   req.IPCountry,
		StockLevels: stock,
	})
	for _, flag := range flags {
		if flag.Severity.Blocking() {
			s.logger.Warn("Чекаут отклонен фрод-проверкой",
				zap.String("rule", string(flag.Type)),
				zap.String("severity", string(flag.Severity)),
				zap.String("ip", req.ClientIP))
			return nil, ErrBlockedByFraud
		}
	}

	notes, err := gateway.OrderNotes{
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
		Items:           items,
		Currency:        currency,
		Subtotal:        calc.Subtotal,
		TaxAmount:       calc.TaxAmount,
		TaxBreakdown:    calc.Breakdown,
		FinalAmount:     calc.Total,
		ClientIP:        req.ClientIP,
		SessionID:       sessionID,
	}.Encode()
	if err != nil {
		return nil, fmt.Errorf("подготовка меток заказа: %w", err)
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  fmt.Sprintf("rcpt_%d", s.now().UnixMilli()),
		Notes:    notes,
	})
	if err != nil {
		return nil, fmt.Errorf("создание заказа в шлюзе: %w", err)
	}
	span.SetAttributes(attribute.String("gateway.order_id", gwOrder.ID))

	s.logger.Info("Создана платежная сессия",
		zap.String("gateway_order_id", gwOrder.ID),
		zap.Int64("amount", gwOrder.Amount),
		zap.String("currency", currency),
		zap.Int("fraud_flags", len(flags)))

	return &Session{
		Key:       s.gateway.KeyID(),
		OrderID:   gwOrder.ID,
		Amount:    gwOrder.Amount,
		Currency:  currency,
		SessionID: sessionID,
		Tax:       calc,
	}, nil
}

// priceCart подставляет цены из каталога и возвращает остатки до покупки.
func (s *Service) priceCart(ctx context.Context, cart []CartItem, currency string) ([]model.OrderItem, map[string]int, error) {
	ids := make([]string, 0, len(cart))
	for _, it := range cart {
		ids = append(ids, it.ProductID)
	}
	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("чтение каталога: %w", err)
	}

	demand := make(map[string]int)
	stock := make(map[string]int)
	items := make([]model.OrderItem, 0, len(cart))
	for i, it := range cart {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, nil, &ValidationError{
				Field:   fmt.Sprintf("items[%d].productId", i),
				Message: fmt.Sprintf("товар %s не найден", it.ProductID),
			}
		}
		demand[p.ID] += it.Quantity
		if p.Stock < demand[p.ID] {
			return nil, nil, &ValidationError{
				Field:   fmt.Sprintf("items[%d].quantity", i),
				Message: fmt.Sprintf("недостаточно товара %s на складе", p.Name),
			}
		}
		price := p.PriceIn(currency)
		if !price.IsPositive() {
			return nil, nil, &ValidationError{
				Field:   fmt.Sprintf("items[%d].productId", i),
				Message: fmt.Sprintf("некорректная цена для %s", p.Name),
			}
		}
		stock[p.ID] = p.Stock
		items = append(items, model.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Shade:       it.Shade,
			Price:       price,
			Quantity:    it.Quantity,
			Currency:    currency,
		})
	}
	return items, stock, nil
}

func outcome(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "created"
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, ErrBlockedByFraud):
		return "blocked"
	}
	return "error"
}
