package notify

import (
	"time"
)

// Типы событий, которые публикуются в Kafka.
const (
	EventOrderConfirmed = "order.confirmed"
	EventFraudAlert     = "fraud.alert"
	EventStockException = "stock.exception"
)

type OrderLine struct {
	ProductName string `json:"productName" validate:"required"`
	Shade       string `json:"shade,omitempty"`
	Quantity    int    `json:"quantity" validate:"gt=0"`
	Price       string `json:"price" validate:"required"`
}

// OrderConfirmed - уведомление о проведенном заказе. Суммы передаются строками
// с двумя знаками после запятой.
type OrderConfirmed struct {
	OrderID       string      `json:"orderId" validate:"required"`
	OrderNumber   string      `json:"orderNumber" validate:"required"`
	CustomerName  string      `json:"customerName" validate:"required"`
	CustomerEmail string      `json:"customerEmail" validate:"required,email"`
	Currency      string      `json:"currency" validate:"required,iso4217"`
	Items         []OrderLine `json:"items" validate:"required,min=1,dive"`
	Subtotal      string      `json:"subtotal" validate:"required"`
	TaxAmount     string      `json:"taxAmount"`
	TaxSummary    string      `json:"taxSummary"`
	Total         string      `json:"total" validate:"required"`
	ShippingTo    string      `json:"shippingTo"`
	CreatedAt     time.Time   `json:"createdAt"`
}

type FraudAlert struct {
	FlagID    string    `json:"flagId"`
	OrderID   string    `json:"orderId,omitempty"`
	Rule      string    `json:"rule"`
	Severity  string    `json:"severity"`
	Score     int       `json:"score"`
	Actor     string    `json:"actor,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type StockAlert struct {
	GatewayOrderID string    `json:"gatewayOrderId"`
	Reason         string    `json:"reason"`
	Detail         string    `json:"detail"`
	CreatedAt      time.Time `json:"createdAt"`
}
