package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus - жизненный цикл заказа (фулфилмент).
type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "pending"
	OrderStatusPaid          OrderStatus = "paid"
	OrderStatusShipped       OrderStatus = "shipped"
	OrderStatusDelivered     OrderStatus = "delivered"
	OrderStatusCancelled     OrderStatus = "cancelled"
	OrderStatusPendingReview OrderStatus = "pending_review"
	OrderStatusBlocked       OrderStatus = "blocked"
)

// PaymentStatus отслеживает расчет по заказу, независимо от OrderStatus.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// orderTransitions - допустимые переходы статусов. Конечные статусы переходов не имеют.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:       {OrderStatusPaid, OrderStatusCancelled, OrderStatusPendingReview, OrderStatusBlocked},
	OrderStatusPendingReview: {OrderStatusPending, OrderStatusPaid, OrderStatusCancelled, OrderStatusBlocked},
	OrderStatusPaid:          {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:       {OrderStatusDelivered},
}

// Valid сообщает, известен ли статус.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered,
		OrderStatusCancelled, OrderStatusPendingReview, OrderStatusBlocked:
		return true
	}
	return false
}

// Terminal сообщает, является ли статус конечным.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusBlocked
}

// CanTransitionTo проверяет переход по машине состояний заказа.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type ShippingAddress struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required,iso3166_1_alpha2"`
}

// OrderItem - позиция заказа. Цена берется из каталога на момент чекаута.
type OrderItem struct {
	ProductID   string          `json:"productId" validate:"required"`
	ProductName string          `json:"productName" validate:"required"`
	Shade       string          `json:"shade,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	Currency    string          `json:"currency" validate:"required,iso4217"`
}

// Subtotal возвращает цену позиции с учетом количества.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID               string          `json:"id"`
	GatewayOrderID   string          `json:"gatewayOrderId"`
	GatewayPaymentID string          `json:"gatewayPaymentId,omitempty"`
	CustomerName     string          `json:"customerName" validate:"required"`
	CustomerEmail    string          `json:"customerEmail" validate:"required,email"`
	CustomerPhone    string          `json:"customerPhone" validate:"required"`
	ShippingAddress  ShippingAddress `json:"shippingAddress" validate:"required"`
	Items            []OrderItem     `json:"items" validate:"required,min=1,dive"`
	Currency         string          `json:"currency"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	TaxAmount        decimal.Decimal `json:"taxAmount"`
	Tax              *TaxCalculation `json:"tax,omitempty"`
	Total            decimal.Decimal `json:"total"`
	Status           OrderStatus     `json:"status"`
	PaymentStatus    PaymentStatus   `json:"paymentStatus"`
	FulfillmentNotes string          `json:"fulfillmentNotes,omitempty"`
	FraudFlagID      string          `json:"fraudFlagId,omitempty"`
	ClientIP         string          `json:"clientIp,omitempty"`
	SessionID        string          `json:"sessionId,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// ItemsSubtotal суммирует позиции заказа.
func (o *Order) ItemsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range o.Items {
		sum = sum.Add(item.Subtotal())
	}
	return sum
}

// OrderFilter - параметры выборки заказов для админки.
type OrderFilter struct {
	Status OrderStatus
	Limit  int
}

// StockException фиксирует оплаченный заказ, который не удалось провести из-за остатков.
type StockException struct {
	GatewayOrderID string    `json:"gatewayOrderId"`
	Reason         string    `json:"reason"`
	Detail         string    `json:"detail"`
	CreatedAt      time.Time `json:"createdAt"`
}

// WebhookDelivery - доставка события шлюза. Одно и то же событие по одному
// платежу считается повтором, парное событие (order.paid и payment.captured) - нет.
type WebhookDelivery struct {
	Event            string    `json:"event"`
	GatewayOrderID   string    `json:"gatewayOrderId"`
	GatewayPaymentID string    `json:"gatewayPaymentId"`
	ReceivedAt       time.Time `json:"receivedAt"`
}
