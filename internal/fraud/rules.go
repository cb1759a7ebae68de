package fraud

import (
	"time"

	"storefront/internal/model"
)

func alert(severity string) Action {
	return Action{Type: ActionSendAlert, Params: map[string]string{"severity": severity}}
}

// DefaultRules - штатный набор правил в порядке вычисления.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "repeated_failed_payments",
			Name:        "Repeated Failed Payments",
			Description: "Несколько неуспешных оплат за короткое время",
			Type:        model.FlagRepeatedFailedPayments,
			Enabled:     true,
			Severity:    model.SeverityHigh,
			Score:       75,
			Conditions: []Condition{
				{Field: FieldPaymentFailureCount, Operator: OpGreaterThan, Number: 2, Window: 60 * time.Minute},
				{Field: FieldPaymentFailureWindow, Operator: OpLessThan, Number: 60},
			},
			Actions:            []Action{{Type: ActionFlagOrder}, alert("high")},
			Cooldown:           30 * time.Minute,
			MaxTriggersPerHour: 3,
		},
		{
			ID:          "multiple_orders_same_ip",
			Name:        "Multiple Orders from Same IP",
			Description: "Много заказов с одного IP за короткое время",
			Type:        model.FlagMultipleOrdersSameIP,
			Enabled:     true,
			Severity:    model.SeverityMedium,
			Score:       50,
			Conditions: []Condition{
				{Field: FieldOrderCount, Operator: OpGreaterThan, Number: 3, Window: 120 * time.Minute},
				{Field: FieldIPAddress, Operator: OpExists},
			},
			Actions:            []Action{{Type: ActionFlagOrder}},
			Cooldown:           60 * time.Minute,
			MaxTriggersPerHour: 5,
		},
		{
			ID:          "multiple_orders_same_email",
			Name:        "Multiple Orders from Same Email",
			Description: "Много заказов с одного email",
			Type:        model.FlagMultipleOrdersSameEmail,
			Enabled:     true,
			Severity:    model.SeverityMedium,
			Score:       40,
			Conditions: []Condition{
				{Field: FieldOrderCount, Operator: OpGreaterThan, Number: 5, Window: 24 * time.Hour},
				{Field: FieldEmail, Operator: OpExists},
			},
			Actions:            []Action{{Type: ActionFlagOrder}},
			Cooldown:           120 * time.Minute,
			MaxTriggersPerHour: 2,
		},
		{
			ID:          "high_value_new_user",
			Name:        "High Value Order from New User",
			Description: "Крупный заказ от покупателя без истории заказов",
			Type:        model.FlagHighValueNewUser,
			Enabled:     true,
			Severity:    model.SeverityHigh,
			Score:       80,
			Conditions: []Condition{
				{Field: FieldOrderValue, Operator: OpGreaterThan, Number: 10000},
				{Field: FieldNewUserOrderCount, Operator: OpEquals, Number: 1},
			},
			Actions:  []Action{{Type: ActionRequireReview}, alert("high")},
			Cooldown: 240 * time.Minute,
		},
		{
			ID:          "rapid_checkout_attempts",
			Name:        "Rapid Checkout Attempts",
			Description: "Несколько попыток оформления за короткое время",
			Type:        model.FlagRapidCheckoutAttempts,
			Enabled:     true,
			Severity:    model.SeverityMedium,
			Score:       60,
			Conditions: []Condition{
				{Field: FieldOrderCount, Operator: OpGreaterThan, Number: 2, Window: 15 * time.Minute},
				{Field: FieldOrderWindow, Operator: OpLessThan, Number: 15},
			},
			Actions:            []Action{{Type: ActionFlagOrder}},
			Cooldown:           30 * time.Minute,
			MaxTriggersPerHour: 10,
		},
		{
			ID:          "webhook_replay_attack",
			Name:        "Webhook Replay Attack",
			Description: "Повторный вебхук с тем же заказом шлюза",
			Type:        model.FlagWebhookReplayAttack,
			Enabled:     true,
			Severity:    model.SeverityCritical,
			Score:       95,
			Conditions: []Condition{
				{Field: FieldGatewayOrderID, Operator: OpExists},
				{Field: FieldReplayCount, Operator: OpGreaterThan, Number: 0},
			},
			Actions: []Action{{Type: ActionBlockOrder}, alert("critical")},
		},
		{
			ID:          "stock_draining_attack",
			Name:        "Stock Draining Attack",
			Description: "Попытка выкупить большую часть остатка",
			Type:        model.FlagStockDrainingAttack,
			Enabled:     true,
			Severity:    model.SeverityHigh,
			Score:       85,
			Conditions: []Condition{
				{Field: FieldStockDepletion, Operator: OpGreaterThan, Number: 0.8},
				{Field: FieldOrderValue, Operator: OpGreaterThan, Number: 5000},
			},
			Actions: []Action{{Type: ActionRequireReview}, alert("high")},
		},
		{
			ID:          "foreign_payment_pattern",
			Name:        "Foreign Payment Pattern",
			Description: "Оплата из стран с высоким уровнем фрода",
			Type:        model.FlagForeignPaymentPattern,
			Enabled:     true,
			Severity:    model.SeverityMedium,
			Score:       55,
			Conditions: []Condition{
				{Field: FieldIPCountry, Operator: OpIn, Set: []string{"NG", "UA", "RU", "PK", "BD", "VN"}},
			},
			Actions:  []Action{{Type: ActionFlagOrder}},
			Cooldown: 60 * time.Minute,
		},
		{
			ID:          "velocity_anomaly",
			Name:        "Velocity Anomaly",
			Description: "Необычная частота заказов",
			Type:        model.FlagVelocityAnomaly,
			Enabled:     true,
			Severity:    model.SeverityMedium,
			Score:       65,
			Conditions: []Condition{
				{Field: FieldOrderCount, Operator: OpGreaterThan, Number: 2, Window: 30 * time.Minute},
			},
			Actions:            []Action{{Type: ActionFlagOrder}},
			Cooldown:           45 * time.Minute,
			MaxTriggersPerHour: 4,
		},
	}
}
