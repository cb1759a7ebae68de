package finalizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/internal/database"
	"storefront/internal/fraud"
	"storefront/internal/gateway"
	"storefront/internal/metrics"
	"storefront/internal/model"
)

var (
	// ErrInvalidSignature - подпись отсутствует или не совпала. Повторять не нужно.
	ErrInvalidSignature = errors.New("неверная подпись вебхука")
	// ErrMalformedEvent - тело вебхука не удалось разобрать.
	ErrMalformedEvent = errors.New("некорректное событие вебхука")
)

// Status - исход обработки вебхука, который видит шлюз.
type Status string

const (
	StatusCreated           Status = "created"
	StatusAlreadyProcessed  Status = "already_processed"
	StatusInsufficientStock Status = "insufficient_stock"
	StatusPaymentFailed     Status = "payment_failed"
	StatusIgnored           Status = "ignored"
)

type Result struct {
	Status  Status `json:"status"`
	OrderID string `json:"orderId,omitempty"`
	Flags   int    `json:"fraudFlags,omitempty"`
}

// Store - часть хранилища, нужная финализатору.
type Store interface {
	FinalizeOrder(ctx context.Context, order *model.Order) error
	GetOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*model.Order, error)
	RecordPaymentFailure(ctx context.Context, f *model.PaymentFailure) error
	RecordStockException(ctx context.Context, e model.StockException) (bool, error)
	MarkWebhookDelivery(ctx context.Context, d model.WebhookDelivery) (bool, error)
}

// Notifier отправляет уведомления после коммита.
type Notifier interface {
	OrderConfirmed(ctx context.Context, order *model.Order) error
	StockException(ctx context.Context, e model.StockException) error
}

type TaxCalculator interface {
	Calculate(subtotal decimal.Decimal, addr model.TaxAddress) model.TaxCalculation
}

type FraudEvaluator interface {
	Evaluate(ctx context.Context, fc fraud.Context) []model.FraudFlag
}

// Finalizer превращает подтвержденную оплату в заказ.
type Finalizer struct {
	store         Store
	tax           TaxCalculator
	fraud         FraudEvaluator
	notifier      Notifier
	webhookSecret string
	logger        *zap.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

func New(store Store, tax TaxCalculator, fraud FraudEvaluator, notifier Notifier, webhookSecret string, logger *zap.Logger) *Finalizer {
	return &Finalizer{
		store:         store,
		tax:           tax,
		fraud:         fraud,
		notifier:      notifier,
		webhookSecret: webhookSecret,
		logger:        logger,
		tracer:        otel.Tracer("finalizer"),
		now:           time.Now,
	}
}

// HandleWebhook проверяет подпись и обрабатывает событие.
// Ошибка без ErrInvalidSignature/ErrMalformedEvent означает временный сбой,
// шлюз должен повторить доставку.
func (f *Finalizer) HandleWebhook(ctx context.Context, body []byte, signature string) (Result, error) {
	ctx, span := f.tracer.Start(ctx, "Finalizer.HandleWebhook")
	defer span.End()

	if !gateway.VerifySignature(f.webhookSecret, body, signature) {
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid_signature").Inc()
		return Result{}, ErrInvalidSignature
	}

	event, err := gateway.ParseWebhookEvent(body)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "malformed").Inc()
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	span.SetAttributes(attribute.String("webhook.event", event.Event))

	var res Result
	switch event.Event {
	case gateway.EventOrderPaid:
		res, err = f.finalize(ctx, event)
	case gateway.EventPaymentCaptured:
		if p := event.PaymentEntity(); p == nil || p.Status != gateway.PaymentStatusCaptured {
			res = Result{Status: StatusIgnored}
			break
		}
		res, err = f.finalize(ctx, event)
	case gateway.EventPaymentFailed:
		res, err = f.recordFailure(ctx, event)
	default:
		res = Result{Status: StatusIgnored}
	}

	outcome := string(res.Status)
	if err != nil {
		outcome = "error"
		if errors.Is(err, ErrMalformedEvent) {
			outcome = "malformed"
		}
	}
	metrics.WebhookEvents.WithLabelValues(event.Event, outcome).Inc()
	return res, err
}

func (f *Finalizer) finalize(ctx context.Context, event *gateway.WebhookEvent) (Result, error) {
	gatewayOrderID := event.GatewayOrderID()
	if gatewayOrderID == "" {
		return Result{}, fmt.Errorf("%w: нет идентификатора заказа шлюза", ErrMalformedEvent)
	}
	log := f.logger.With(zap.String("gateway_order_id", gatewayOrderID))

	delivery := model.WebhookDelivery{Event: event.Event, GatewayOrderID: gatewayOrderID, ReceivedAt: f.now()}
	if p := event.PaymentEntity(); p != nil {
		delivery.GatewayPaymentID = p.ID
	}
	first, err := f.store.MarkWebhookDelivery(ctx, delivery)
	if err != nil {
		return Result{}, fmt.Errorf("учет доставки вебхука %s: %w", gatewayOrderID, err)
	}

	existing, err := f.store.GetOrderByGatewayID(ctx, gatewayOrderID)
	switch {
	case err == nil:
		return f.replay(ctx, existing, first, log), nil
	case !errors.Is(err, database.ErrNotFound):
		return Result{}, fmt.Errorf("поиск заказа по %s: %w", gatewayOrderID, err)
	}

	notes, err := gateway.DecodeNotes(event.Notes())
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	order, err := f.buildOrder(gatewayOrderID, event, notes, log)
	if err != nil {
		return Result{}, err
	}

	err = f.store.FinalizeOrder(ctx, order)
	switch {
	case errors.Is(err, database.ErrDuplicateOrder):
		existing, getErr := f.store.GetOrderByGatewayID(ctx, gatewayOrderID)
		if getErr != nil {
			log.Info("Заказ уже проведен параллельной доставкой")
			return Result{Status: StatusAlreadyProcessed}, nil
		}
		return f.replay(ctx, existing, first, log), nil
	case errors.Is(err, database.ErrInsufficientStock):
		return f.stockException(ctx, gatewayOrderID, err, log)
	case err != nil:
		return Result{}, fmt.Errorf("финализация заказа %s: %w", gatewayOrderID, err)
	}

	log.Info("Заказ создан", zap.String("order_id", order.ID), zap.String("total", order.Total.StringFixed(2)))

	flags := f.fraud.Evaluate(ctx, fraud.Context{
		Order:          order,
		GatewayOrderID: gatewayOrderID,
		IPAddress:      notes.ClientIP,
		SessionID:      notes.SessionID,
		Email:          order.CustomerEmail,
	})

	if order.Status == model.OrderStatusPaid {
		if err := f.notifier.OrderConfirmed(ctx, order); err != nil {
			log.Error("Не удалось отправить подтверждение заказа", zap.String("order_id", order.ID), zap.Error(err))
		}
	} else {
		log.Warn("Заказ задержан фрод-проверкой, подтверждение не отправлено",
			zap.String("order_id", order.ID), zap.String("status", string(order.Status)))
	}

	return Result{Status: StatusCreated, OrderID: order.ID, Flags: len(flags)}, nil
}

// buildOrder собирает заказ из снимка чекаута. Суммы пересчитываются
// заново, расхождение с оплаченной суммой только логируется.
func (f *Finalizer) buildOrder(gatewayOrderID string, event *gateway.WebhookEvent, notes gateway.OrderNotes, log *zap.Logger) (*model.Order, error) {
	for _, it := range notes.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: некорректная позиция %q", ErrMalformedEvent, it.ProductID)
		}
	}

	now := f.now()
	order := &model.Order{
		ID:              uuid.NewString(),
		GatewayOrderID:  gatewayOrderID,
		CustomerName:    notes.CustomerName,
		CustomerEmail:   notes.CustomerEmail,
		CustomerPhone:   notes.CustomerPhone,
		ShippingAddress: notes.ShippingAddress,
		Items:           notes.Items,
		Currency:        notes.Currency,
		Status:          model.OrderStatusPaid,
		PaymentStatus:   model.PaymentStatusPaid,
		ClientIP:        notes.ClientIP,
		SessionID:       notes.SessionID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if p := event.PaymentEntity(); p != nil {
		order.GatewayPaymentID = p.ID
	}
	if order.Currency == "" && len(order.Items) > 0 {
		order.Currency = order.Items[0].Currency
	}

	order.Subtotal = order.ItemsSubtotal()
	calc := f.tax.Calculate(order.Subtotal, model.TaxAddress{
		Country:    notes.ShippingAddress.Country,
		State:      notes.ShippingAddress.State,
		PostalCode: notes.ShippingAddress.PostalCode,
	})
	order.Tax = &calc
	order.TaxAmount = calc.TaxAmount
	order.Total = calc.Total

	if paid := event.AmountMinor(); paid > 0 && gateway.ToMinorUnits(order.Total) != paid {
		log.Warn("Оплаченная сумма не совпадает с пересчитанной",
			zap.String("paid", gateway.FromMinorUnits(paid).StringFixed(2)),
			zap.String("computed", order.Total.StringFixed(2)))
	}
	if !notes.FinalAmount.IsZero() && !notes.FinalAmount.Equal(order.Total) {
		log.Warn("Сумма из чекаута не совпадает с пересчитанной",
			zap.String("checkout", notes.FinalAmount.StringFixed(2)),
			zap.String("computed", order.Total.StringFixed(2)))
	}
	return order, nil
}

// replay обрабатывает доставку по уже проведенному заказу. Первая доставка
// события (парный payment.captured после order.paid) повтором не считается.
// Заказ в контекст проверки не передается: блокировка не должна
// трогать оплаченный заказ.
func (f *Finalizer) replay(ctx context.Context, existing *model.Order, firstDelivery bool, log *zap.Logger) Result {
	if firstDelivery {
		log.Info("Парное событие по проведенному заказу", zap.String("order_id", existing.ID))
		return Result{Status: StatusAlreadyProcessed, OrderID: existing.ID}
	}
	log.Info("Повторная доставка вебхука, заказ уже проведен", zap.String("order_id", existing.ID))
	flags := f.fraud.Evaluate(ctx, fraud.Context{
		GatewayOrderID: existing.GatewayOrderID,
		IPAddress:      existing.ClientIP,
		Email:          existing.CustomerEmail,
		SessionID:      existing.SessionID,
		ReplayCount:    1,
	})
	return Result{Status: StatusAlreadyProcessed, OrderID: existing.ID, Flags: len(flags)}
}

func (f *Finalizer) stockException(ctx context.Context, gatewayOrderID string, cause error, log *zap.Logger) (Result, error) {
	exception := model.StockException{
		GatewayOrderID: gatewayOrderID,
		Reason:         "insufficient_stock",
		Detail:         cause.Error(),
		CreatedAt:      f.now(),
	}
	created, err := f.store.RecordStockException(ctx, exception)
	if err != nil {
		return Result{}, fmt.Errorf("запись исключения по остаткам %s: %w", gatewayOrderID, err)
	}
	if created {
		metrics.StockExceptions.Inc()
		log.Error("Оплаченный заказ не проведен: не хватает остатков", zap.String("detail", exception.Detail))
		if err := f.notifier.StockException(ctx, exception); err != nil {
			log.Error("Не удалось отправить алерт по остаткам", zap.Error(err))
		}
	}
	return Result{Status: StatusInsufficientStock}, nil
}

func (f *Finalizer) recordFailure(ctx context.Context, event *gateway.WebhookEvent) (Result, error) {
	p := event.PaymentEntity()
	if p == nil {
		return Result{}, fmt.Errorf("%w: в payment.failed нет платежа", ErrMalformedEvent)
	}
	notes := event.Notes()
	email := p.Email
	if email == "" {
		email = notes[gateway.NoteCustomerEmail]
	}
	reason := p.ErrorDescription
	if reason == "" {
		reason = p.ErrorCode
	}

	failure := &model.PaymentFailure{
		ID:               uuid.NewString(),
		GatewayOrderID:   p.OrderID,
		GatewayPaymentID: p.ID,
		IPAddress:        notes[gateway.NoteClientIP],
		Email:            email,
		Reason:           reason,
		Amount:           gateway.FromMinorUnits(p.Amount),
		CreatedAt:        f.now(),
	}
	if err := f.store.RecordPaymentFailure(ctx, failure); err != nil {
		return Result{}, fmt.Errorf("запись неуспешной оплаты %s: %w", p.ID, err)
	}
	f.logger.Info("Неуспешная оплата", zap.String("payment_id", p.ID), zap.String("reason", reason))
	return Result{Status: StatusPaymentFailed}, nil
}
