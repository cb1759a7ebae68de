package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"storefront/internal/mailer"
	"storefront/internal/mailer/mocks"
	"storefront/internal/notify"
)

type NoOpReader struct{}

func (r *NoOpReader) FetchMessage(context.Context) (kafka.Message, error) {
	return kafka.Message{}, nil
}
func (r *NoOpReader) CommitMessages(context.Context, ...kafka.Message) error {
	return nil
}
func (r *NoOpReader) Close() error { return nil }

// dlqRecorder запоминает сообщения, ушедшие в DLQ.
type dlqRecorder struct {
	msgs []kafka.Message
}

func (w *dlqRecorder) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}
func (w *dlqRecorder) Close() error { return nil }

func (w *dlqRecorder) reason(i int) string {
	for _, h := range w.msgs[i].Headers {
		if h.Key == "X-Error-Reason" {
			return string(h.Value)
		}
	}
	return ""
}

// setupConsumerAndMocks - хелпер для инициализации консюмера и моков
func setupConsumerAndMocks(t *testing.T) (*Consumer, *mocks.MockMailer, *dlqRecorder) {
	ctrl := gomock.NewController(t)
	mockMailer := mocks.NewMockMailer(ctrl)
	dlq := &dlqRecorder{}

	consumer := &Consumer{
		reader:     &NoOpReader{},
		dlqWriter:  dlq,
		mailer:     mockMailer,
		logger:     zaptest.NewLogger(t),
		tracer:     otel.Tracer("test-tracer"),
		maxRetries: 3,
		backoff:    time.Millisecond,
	}
	return consumer, mockMailer, dlq
}

// helperTestEvent - валидное уведомление для тестов
var helperTestEvent = notify.OrderConfirmed{
	OrderID:       "6f1c2b9e-aaaa-4000-8000-000000000001",
	OrderNumber:   "ORD-6F1C2B9E",
	CustomerName:  "Asha Rao",
	CustomerEmail: "asha@example.com",
	Currency:      "INR",
	Items:         []notify.OrderLine{{ProductName: "Velvet Matte Lipstick", Quantity: 2, Price: "1499.00"}},
	Subtotal:      "2998.00",
	TaxAmount:     "539.64",
	Total:         "3537.64",
}

func eventMessage(t *testing.T, e notify.OrderConfirmed) kafka.Message {
	b, err := json.Marshal(e)
	require.NoError(t, err)
	return kafka.Message{Topic: "orders.confirmed", Key: []byte(e.OrderID), Value: b}
}

func TestConsumer_ProcessMessage_Success(t *testing.T) {
	consumer, mockMailer, dlq := setupConsumerAndMocks(t)

	mockMailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e mailer.Email) error {
		assert.Equal(t, []string{"asha@example.com"}, e.To)
		assert.Contains(t, e.Subject, "ORD-6F1C2B9E")
		return nil
	})

	err := consumer.processMessage(context.Background(), eventMessage(t, helperTestEvent))
	assert.NoError(t, err)
	assert.Empty(t, dlq.msgs)
}

func TestConsumer_ProcessMessage_RetryThenSuccess(t *testing.T) {
	consumer, mockMailer, dlq := setupConsumerAndMocks(t)

	// 1. Две временные ошибки
	mockMailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(&mailer.SendError{StatusCode: http.StatusServiceUnavailable}).Times(2)
	// 2. Успешная отправка
	mockMailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	err := consumer.processMessage(context.Background(), eventMessage(t, helperTestEvent))
	assert.NoError(t, err)
	assert.Empty(t, dlq.msgs)
}

func TestConsumer_ProcessMessage_RetriesExhausted(t *testing.T) {
	consumer, mockMailer, dlq := setupConsumerAndMocks(t)

	mockMailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("connection reset")).Times(consumer.maxRetries)

	err := consumer.processMessage(context.Background(), eventMessage(t, helperTestEvent))

	// Ошибка не возвращается, т.к. сообщение ушло в DLQ
	assert.NoError(t, err)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "send_error", dlq.reason(0))
}

func TestConsumer_ProcessMessage_PermanentSendError(t *testing.T) {
	consumer, mockMailer, dlq := setupConsumerAndMocks(t)

	mockMailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(&mailer.SendError{StatusCode: http.StatusUnprocessableEntity}).Times(1)

	assert.NoError(t, consumer.processMessage(context.Background(), eventMessage(t, helperTestEvent)))
	require.Len(t, dlq.msgs, 1)
}

func TestConsumer_ProcessMessage_MailNotConfigured(t *testing.T) {
	consumer, mockMailer, dlq := setupConsumerAndMocks(t)

	mockMailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(mailer.ErrNotConfigured).Times(1)

	assert.NoError(t, consumer.processMessage(context.Background(), eventMessage(t, helperTestEvent)))
	assert.Empty(t, dlq.msgs)
}

func TestConsumer_ProcessMessage_BadJSON(t *testing.T) {
	consumer, mockMailer, dlq := setupConsumerAndMocks(t)

	msg := kafka.Message{Value: []byte("this is not json")}

	// Не ожидаем вызовов почты
	mockMailer.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

	err := consumer.processMessage(context.Background(), msg)

	// Ошибка не должна быть возвращена, т.к. это "poison pill"
	assert.NoError(t, err)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "json_unmarshal_error", dlq.reason(0))
}

func TestConsumer_ProcessMessage_ValidationError(t *testing.T) {
	consumer, mockMailer, dlq := setupConsumerAndMocks(t)

	invalid := helperTestEvent
	invalid.CustomerEmail = "not-an-email"

	mockMailer.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

	err := consumer.processMessage(context.Background(), eventMessage(t, invalid))
	assert.NoError(t, err)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "validation_error", dlq.reason(0))
}

func TestConsumer_ProcessMessage_ContextCancelledDuringBackoff(t *testing.T) {
	consumer, mockMailer, dlq := setupConsumerAndMocks(t)
	consumer.backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	mockMailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, mailer.Email) error {
		cancel()
		return errors.New("timeout")
	})

	err := consumer.processMessage(ctx, eventMessage(t, helperTestEvent))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dlq.msgs)
}
