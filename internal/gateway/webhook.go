package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SignatureHeader - заголовок с подписью вебхука.
const SignatureHeader = "X-Razorpay-Signature"

// События вебхука, которые обрабатывает магазин.
const (
	EventOrderPaid        = "order.paid"
	EventPaymentCaptured  = "payment.captured"
	EventPaymentFailed    = "payment.failed"
	PaymentStatusCaptured = "captured"
)

// Notes - произвольные метки заказа/платежа. Пустые notes шлюз присылает
// как JSON-массив [], поэтому нужен свой декодер.
type Notes map[string]string

func (n *Notes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		if len(list) > 0 {
			return fmt.Errorf("notes: ожидался объект, получен непустой массив")
		}
		*n = Notes{}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return err
	}
	*n = m
	return nil
}

type Payment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Email            string `json:"email"`
	Contact          string `json:"contact"`
	Notes            Notes  `json:"notes"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

// WebhookEvent - тело вебхука шлюза.
type WebhookEvent struct {
	Entity string `json:"entity"`
	Event  string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity Payment `json:"entity"`
		} `json:"payment,omitempty"`
		Order *struct {
			Entity Order `json:"entity"`
		} `json:"order,omitempty"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

// ParseWebhookEvent декодирует тело вебхука.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, err
	}
	if event.Event == "" {
		return nil, fmt.Errorf("в событии нет поля event")
	}
	return &event, nil
}

// PaymentEntity возвращает платеж из события, если он есть.
func (e *WebhookEvent) PaymentEntity() *Payment {
	if e.Payload.Payment == nil {
		return nil
	}
	return &e.Payload.Payment.Entity
}

// OrderEntity возвращает заказ шлюза из события, если он есть.
func (e *WebhookEvent) OrderEntity() *Order {
	if e.Payload.Order == nil {
		return nil
	}
	return &e.Payload.Order.Entity
}

// GatewayOrderID - идентификатор заказа шлюза, ключ идемпотентности.
func (e *WebhookEvent) GatewayOrderID() string {
	if o := e.OrderEntity(); o != nil && o.ID != "" {
		return o.ID
	}
	if p := e.PaymentEntity(); p != nil {
		return p.OrderID
	}
	return ""
}

// Notes возвращает метки заказа, а при их отсутствии - метки платежа.
func (e *WebhookEvent) Notes() Notes {
	if o := e.OrderEntity(); o != nil && len(o.Notes) > 0 {
		return o.Notes
	}
	if p := e.PaymentEntity(); p != nil {
		return p.Notes
	}
	return nil
}

// AmountMinor - оплаченная сумма в минимальных единицах.
func (e *WebhookEvent) AmountMinor() int64 {
	if p := e.PaymentEntity(); p != nil && p.Amount > 0 {
		return p.Amount
	}
	if o := e.OrderEntity(); o != nil {
		return o.Amount
	}
	return 0
}
