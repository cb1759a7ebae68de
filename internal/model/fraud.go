package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type FraudFlagType string

const (
	FlagRepeatedFailedPayments  FraudFlagType = "repeated_failed_payments"
	FlagMultipleOrdersSameIP    FraudFlagType = "multiple_orders_same_ip"
	FlagMultipleOrdersSameEmail FraudFlagType = "multiple_orders_same_email"
	FlagHighValueNewUser        FraudFlagType = "high_value_new_user"
	FlagRapidCheckoutAttempts   FraudFlagType = "rapid_checkout_attempts"
	FlagWebhookReplayAttack     FraudFlagType = "webhook_replay_attack"
	FlagStockDrainingAttack     FraudFlagType = "stock_draining_attack"
	FlagForeignPaymentPattern   FraudFlagType = "foreign_payment_pattern"
	FlagVelocityAnomaly         FraudFlagType = "velocity_anomaly"
)

// FraudSeverity - уровень риска. Порядок объявления совпадает с возрастанием риска.
type FraudSeverity string

const (
	SeverityLow      FraudSeverity = "low"
	SeverityMedium   FraudSeverity = "medium"
	SeverityHigh     FraudSeverity = "high"
	SeverityCritical FraudSeverity = "critical"
)

// Blocking сообщает, должен ли чекаут отказать при флаге такой серьезности.
func (s FraudSeverity) Blocking() bool {
	return s == SeverityHigh || s == SeverityCritical
}

type FraudStatus string

const (
	FraudStatusPending       FraudStatus = "pending"
	FraudStatusUnderReview   FraudStatus = "under_review"
	FraudStatusApproved      FraudStatus = "approved"
	FraudStatusRejected      FraudStatus = "rejected"
	FraudStatusFalsePositive FraudStatus = "false_positive"
)

var fraudTransitions = map[FraudStatus][]FraudStatus{
	FraudStatusPending:     {FraudStatusUnderReview, FraudStatusApproved, FraudStatusRejected, FraudStatusFalsePositive},
	FraudStatusUnderReview: {FraudStatusApproved, FraudStatusRejected, FraudStatusFalsePositive},
}

// CanTransitionTo проверяет переход статуса флага при ревью.
func (s FraudStatus) CanTransitionTo(next FraudStatus) bool {
	for _, allowed := range fraudTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// FraudMetadata - сигналы, на которых сработало правило.
type FraudMetadata struct {
	PaymentFailureCount int      `json:"paymentFailureCount,omitempty"`
	GatewayOrderID      string   `json:"gatewayOrderId,omitempty"`
	OrderValue          string   `json:"orderValue,omitempty"`
	OrderCount          int      `json:"orderCount,omitempty"`
	IPAddress           string   `json:"ipAddress,omitempty"`
	IPCountry           string   `json:"ipCountry,omitempty"`
	EmailDomain         string   `json:"emailDomain,omitempty"`
	ShippingAddress     string   `json:"shippingAddress,omitempty"`
	UserAgent           string   `json:"userAgent,omitempty"`
	SessionID           string   `json:"sessionId,omitempty"`
	StockDepletion      float64  `json:"stockDepletion,omitempty"`
	TargetProductIDs    []string `json:"targetProductIds,omitempty"`
}

type FraudFlag struct {
	ID             string        `json:"id"`
	OrderID        string        `json:"orderId"`
	UserID         string        `json:"userId,omitempty"`
	IPAddress      string        `json:"ipAddress,omitempty"`
	Email          string        `json:"email,omitempty"`
	Type           FraudFlagType `json:"flagType"`
	Severity       FraudSeverity `json:"severity"`
	Score          int           `json:"score"`
	TriggeredRules []string      `json:"triggeredRules"`
	Metadata       FraudMetadata `json:"metadata"`
	Status         FraudStatus   `json:"status"`
	FalsePositive  bool          `json:"falsePositive"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	ReviewedAt     *time.Time    `json:"reviewedAt,omitempty"`
	ReviewedBy     string        `json:"reviewedBy,omitempty"`
}

// FraudFlagFilter - выборка флагов для админки и статистики.
type FraudFlagFilter struct {
	OrderID string
	From    time.Time
	To      time.Time
}

// FraudReview - решение ревьюера по флагу.
type FraudReview struct {
	Status     FraudStatus
	ReviewedBy string
	ReviewedAt time.Time
}

// Actor - инициатор действия, по которому ищется история и считаются кулдауны.
type Actor struct {
	IPAddress string
	Email     string
	UserID    string
}

// Key выбирает идентификатор актора: IP, затем email, затем user id.
func (a Actor) Key() string {
	switch {
	case a.IPAddress != "":
		return "ip:" + a.IPAddress
	case a.Email != "":
		return "email:" + a.Email
	case a.UserID != "":
		return "user:" + a.UserID
	}
	return ""
}

// PaymentFailure - неуспешная оплата, пришедшая из вебхука шлюза.
type PaymentFailure struct {
	ID               string          `json:"id"`
	GatewayOrderID   string          `json:"gatewayOrderId"`
	GatewayPaymentID string          `json:"gatewayPaymentId"`
	IPAddress        string          `json:"ipAddress,omitempty"`
	Email            string          `json:"email,omitempty"`
	UserID           string          `json:"userId,omitempty"`
	Reason           string          `json:"reason"`
	Amount           decimal.Decimal `json:"amount"`
	CreatedAt        time.Time       `json:"createdAt"`
}
