package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/tax"
)

// MessageWriter - часть kafka.Writer, которую использует Publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher публикует события заказов и фрод-алерты в Kafka.
// Без writer события только логируются.
type Publisher struct {
	writer      MessageWriter
	ordersTopic string
	alertsTopic string
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewPublisher(writer MessageWriter, ordersTopic, alertsTopic string, logger *zap.Logger) *Publisher {
	return &Publisher{
		writer:      writer,
		ordersTopic: ordersTopic,
		alertsTopic: alertsTopic,
		logger:      logger,
		tracer:      otel.Tracer("kafka-publisher"),
	}
}

// NewKafkaWriter создает writer без фиксированного топика: топик задается в сообщении.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// OrderConfirmed публикует уведомление о проведенном заказе. Ключ - id заказа.
func (p *Publisher) OrderConfirmed(ctx context.Context, order *model.Order) error {
	msg := OrderConfirmedFromOrder(order)
	return p.publish(ctx, p.ordersTopic, EventOrderConfirmed, order.ID, msg)
}

// FraudAlert реализует fraud.Alerter.
func (p *Publisher) FraudAlert(ctx context.Context, flag model.FraudFlag, severity string) error {
	rule := string(flag.Type)
	if len(flag.TriggeredRules) > 0 {
		rule = flag.TriggeredRules[0]
	}
	actor := model.Actor{IPAddress: flag.IPAddress, Email: flag.Email, UserID: flag.UserID}.Key()
	p.logger.Warn("Фрод-алерт",
		zap.String("flag_id", flag.ID), zap.String("rule", rule), zap.String("severity", severity), zap.String("actor", actor))
	return p.publish(ctx, p.alertsTopic, EventFraudAlert, flag.ID, FraudAlert{
		FlagID:    flag.ID,
		OrderID:   flag.OrderID,
		Rule:      rule,
		Severity:  severity,
		Score:     flag.Score,
		Actor:     actor,
		CreatedAt: flag.CreatedAt,
	})
}

// StockException публикует алерт об оплаченном заказе без остатка.
func (p *Publisher) StockException(ctx context.Context, e model.StockException) error {
	p.logger.Error("Оплаченный заказ не проведен из-за остатков",
		zap.String("gateway_order_id", e.GatewayOrderID), zap.String("detail", e.Detail))
	return p.publish(ctx, p.alertsTopic, EventStockException, e.GatewayOrderID, StockAlert{
		GatewayOrderID: e.GatewayOrderID,
		Reason:         e.Reason,
		Detail:         e.Detail,
		CreatedAt:      e.CreatedAt,
	})
}

func (p *Publisher) publish(ctx context.Context, topic, event, key string, payload any) error {
	ctx, span := p.tracer.Start(ctx, "Publisher.publish")
	defer span.End()

	if p.writer == nil || topic == "" {
		p.logger.Info("Kafka не настроена, событие не опубликовано", zap.String("event", event), zap.String("key", key))
		return nil
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события %s: %w", event, err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   value,
		Headers: []kafka.Header{{Key: "X-Event-Type", Value: []byte(event)}},
	})
	if err != nil {
		metrics.KafkaMessagesPublished.WithLabelValues(topic, "error").Inc()
		return fmt.Errorf("ошибка публикации события %s: %w", event, err)
	}
	metrics.KafkaMessagesPublished.WithLabelValues(topic, "success").Inc()
	return nil
}

// Close закрывает writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// OrderConfirmedFromOrder собирает уведомление из заказа.
func OrderConfirmedFromOrder(order *model.Order) OrderConfirmed {
	msg := OrderConfirmed{
		OrderID:       order.ID,
		OrderNumber:   OrderNumber(order.ID),
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Currency:      order.Currency,
		Subtotal:      order.Subtotal.StringFixed(2),
		TaxAmount:     order.TaxAmount.StringFixed(2),
		Total:         order.Total.StringFixed(2),
		CreatedAt:     order.CreatedAt,
	}
	if order.Tax != nil {
		msg.TaxSummary = tax.FormatBreakdown(order.Tax.Breakdown)
	}
	a := order.ShippingAddress
	parts := []string{a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country}
	nonEmpty := parts[:0]
	for _, part := range parts {
		if part != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}
	msg.ShippingTo = strings.Join(nonEmpty, ", ")
	for _, it := range order.Items {
		msg.Items = append(msg.Items, OrderLine{
			ProductName: it.ProductName,
			Shade:       it.Shade,
			Quantity:    it.Quantity,
			Price:       it.Price.StringFixed(2),
		})
	}
	return msg
}

// OrderNumber - короткий номер заказа для писем и интерфейса.
func OrderNumber(orderID string) string {
	id := strings.ReplaceAll(orderID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return "ORD-" + strings.ToUpper(id)
}
