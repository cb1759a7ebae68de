package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/mailer"
	"storefront/internal/metrics"
	"storefront/internal/notify"
	"storefront/internal/validator"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer читает уведомления о заказах из Kafka и отправляет письма покупателям.
type Consumer struct {
	reader     messageReader
	dlqWriter  messageWriter // Продюсер для отправки "битых" сообщений в DLQ
	mailer     mailer.Mailer
	logger     *zap.Logger
	tracer     trace.Tracer
	maxRetries int           // Количество попыток для временных ошибок почтового API
	backoff    time.Duration // Базовая пауза между попытками
}

// NewConsumer создает новый экземпляр Consumer.
func NewConsumer(cfg config.KafkaConfig, m mailer.Mailer, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.OrdersTopic,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		// Коммиты выполняются вручную после обработки.
	})

	dlqWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.DLQTopic,
		Balancer: &kafka.LeastBytes{},
	}

	return &Consumer{
		reader:     reader,
		dlqWriter:  dlqWriter,
		mailer:     m,
		logger:     logger,
		tracer:     otel.Tracer("kafka-consumer"),
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// Run запускает цикл чтения сообщений до отмены контекста.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("Kafka-консюмер уведомлений запущен")
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Error("Ошибка закрытия Kafka-ридера", zap.Error(err))
		}
		if err := c.dlqWriter.Close(); err != nil {
			c.logger.Error("Ошибка закрытия Kafka (DLQ) writer", zap.Error(err))
		}
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Kafka-консюмер останавливается")
				return
			}
			c.logger.Error("Ошибка чтения сообщения из Kafka", zap.Error(err))
			continue
		}

		if procErr := c.processMessage(ctx, msg); procErr != nil {
			// Сообщение не коммитится, Kafka доставит его повторно.
			c.logger.Warn("Ошибка обработки сообщения, ждем повторной доставки",
				zap.String("key", string(msg.Key)), zap.Error(procErr))
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Ошибка коммита сообщения", zap.Error(err))
		}
	}
}

// processMessage декодирует уведомление, валидирует его и отправляет письмо.
// Возвращает error, только если обработку прервала отмена контекста и сообщение
// нужно получить повторно. Во всех остальных случаях сообщение коммитится.
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	ctx, span := c.tracer.Start(ctx, "Consumer.processMessage")
	defer span.End()

	var event notify.OrderConfirmed
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Warn("Невалидное JSON-сообщение, отправка в DLQ", zap.Error(err))
		c.sendToDLQ(ctx, msg, "json_unmarshal_error", err)
		metrics.KafkaMessagesProcessed.WithLabelValues("dlq_validation").Inc()
		return nil
	}

	if err := validator.ValidateStruct(&event); err != nil {
		c.logger.Warn("Ошибка валидации уведомления, отправка в DLQ", zap.String("order_id", event.OrderID), zap.Error(err))
		c.sendToDLQ(ctx, msg, "validation_error", err)
		metrics.KafkaMessagesProcessed.WithLabelValues("dlq_validation").Inc()
		return nil
	}

	email, err := mailer.OrderConfirmation(event)
	if err != nil {
		c.sendToDLQ(ctx, msg, "render_error", err)
		metrics.KafkaMessagesProcessed.WithLabelValues("dlq_validation").Inc()
		return nil
	}

	var sendErr error
	for i := 0; i < c.maxRetries; i++ {
		sendErr = c.mailer.Send(ctx, email)
		if sendErr == nil || !retryable(sendErr) {
			break
		}
		c.logger.Warn("Ошибка отправки письма",
			zap.Int("attempt", i+1), zap.Int("max", c.maxRetries), zap.Error(sendErr))
		if i+1 < c.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff * time.Duration(i+1)): // Простой backoff
			}
		}
	}

	switch {
	case sendErr == nil:
		c.logger.Info("Письмо о заказе отправлено", zap.String("order_id", event.OrderID))
		metrics.EmailsSent.WithLabelValues("order_confirmation", "success").Inc()
		metrics.KafkaMessagesProcessed.WithLabelValues("success").Inc()
	case errors.Is(sendErr, mailer.ErrNotConfigured):
		c.logger.Info("Почта не настроена, письмо пропущено", zap.String("order_id", event.OrderID))
		metrics.EmailsSent.WithLabelValues("order_confirmation", "skipped").Inc()
		metrics.KafkaMessagesProcessed.WithLabelValues("skipped").Inc()
	default:
		c.logger.Error("Не удалось отправить письмо, отправка в DLQ", zap.String("order_id", event.OrderID), zap.Error(sendErr))
		c.sendToDLQ(ctx, msg, "send_error", sendErr)
		metrics.EmailsSent.WithLabelValues("order_confirmation", "error").Inc()
		metrics.KafkaMessagesProcessed.WithLabelValues("dlq_send_error").Inc()
	}
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, mailer.ErrNotConfigured) {
		return false
	}
	var sendErr *mailer.SendError
	if errors.As(err, &sendErr) {
		return sendErr.Retryable()
	}
	// Сетевые ошибки считаем временными.
	return true
}

// sendToDLQ отправляет сообщение в DLQ топик.
func (c *Consumer) sendToDLQ(ctx context.Context, originalMsg kafka.Message, reason string, procErr error) {
	ctx, span := c.tracer.Start(ctx, "Consumer.sendToDLQ")
	defer span.End()

	err := c.dlqWriter.WriteMessages(ctx, kafka.Message{
		Key:   originalMsg.Key,
		Value: originalMsg.Value,
		Headers: []kafka.Header{
			{Key: "X-Original-Topic", Value: []byte(originalMsg.Topic)},
			{Key: "X-Error-Reason", Value: []byte(reason)},
			{Key: "X-Error-Details", Value: []byte(procErr.Error())},
		},
	})
	if err != nil {
		c.logger.Error("КРИТИЧНО: не удалось отправить сообщение в DLQ", zap.String("key", string(originalMsg.Key)), zap.Error(err))
		metrics.KafkaMessagesProcessed.WithLabelValues("dlq_failed_write").Inc()
		return
	}
	c.logger.Info("Сообщение отправлено в DLQ", zap.String("key", string(originalMsg.Key)), zap.String("reason", reason))
}
