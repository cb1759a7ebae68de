package fraud

import (
	"fmt"
	"time"

	"storefront/internal/model"
)

// Field - поле контекста, доступное условиям правил. Набор закрытый: новое поле
// требует явного добавления сюда и в resolve.
type Field string

const (
	FieldPaymentFailureCount  Field = "paymentFailureCount"
	FieldPaymentFailureWindow Field = "paymentFailureWindow"
	FieldOrderCount           Field = "orderCount"
	FieldOrderWindow          Field = "orderWindow"
	FieldOrderValue           Field = "orderValue"
	FieldNewUserOrderCount    Field = "newUserOrderCount"
	FieldIPAddress            Field = "ipAddress"
	FieldEmail                Field = "email"
	FieldGatewayOrderID       Field = "gatewayOrderId"
	FieldIPCountry            Field = "ipCountry"
	FieldStockDepletion       Field = "stockDepletion"
	FieldReplayCount          Field = "replayCount"
)

var numericFields = map[Field]bool{
	FieldPaymentFailureCount:  true,
	FieldPaymentFailureWindow: true,
	FieldOrderCount:           true,
	FieldOrderWindow:          true,
	FieldOrderValue:           true,
	FieldNewUserOrderCount:    true,
	FieldStockDepletion:       true,
	FieldReplayCount:          true,
}

var textFields = map[Field]bool{
	FieldIPAddress:      true,
	FieldEmail:          true,
	FieldGatewayOrderID: true,
	FieldIPCountry:      true,
}

type Operator string

const (
	OpEquals      Operator = "equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpExists      Operator = "exists"
)

// Condition - одно условие правила. Number используется числовыми операторами,
// Text - равенством строковых полей, Set - операторами in/not_in.
// Window сужает счетчики (orderCount, paymentFailureCount) до последнего интервала.
type Condition struct {
	Field    Field
	Operator Operator
	Number   float64
	Text     string
	Set      []string
	Window   time.Duration
}

type ActionType string

const (
	ActionFlagOrder     ActionType = "flag_order"
	ActionHoldOrder     ActionType = "hold_order"
	ActionBlockOrder    ActionType = "block_order"
	ActionSendAlert     ActionType = "send_alert"
	ActionRequireReview ActionType = "require_manual_review"
)

type Action struct {
	Type   ActionType
	Params map[string]string
}

// Rule - правило фрод-детекции. Все условия объединяются через AND.
type Rule struct {
	ID                 string
	Name               string
	Description        string
	Type               model.FraudFlagType
	Enabled            bool
	Severity           model.FraudSeverity
	Score              int
	Conditions         []Condition
	Actions            []Action
	Cooldown           time.Duration
	MaxTriggersPerHour int
}

// Validate проверяет, что правило ссылается только на известные поля и операторы.
func (r Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("правило без id")
	}
	if r.Score < 0 || r.Score > 100 {
		return fmt.Errorf("правило %s: score %d вне диапазона 0-100", r.ID, r.Score)
	}
	for _, c := range r.Conditions {
		numeric, text := numericFields[c.Field], textFields[c.Field]
		if !numeric && !text {
			return fmt.Errorf("правило %s: неизвестное поле %q", r.ID, c.Field)
		}
		switch c.Operator {
		case OpGreaterThan, OpLessThan:
			if !numeric {
				return fmt.Errorf("правило %s: оператор %s неприменим к полю %s", r.ID, c.Operator, c.Field)
			}
		case OpIn, OpNotIn:
			if !text {
				return fmt.Errorf("правило %s: оператор %s неприменим к полю %s", r.ID, c.Operator, c.Field)
			}
		case OpEquals, OpExists:
		default:
			return fmt.Errorf("правило %s: неизвестный оператор %q", r.ID, c.Operator)
		}
	}
	for _, a := range r.Actions {
		switch a.Type {
		case ActionFlagOrder, ActionHoldOrder, ActionBlockOrder, ActionSendAlert, ActionRequireReview:
		default:
			return fmt.Errorf("правило %s: неизвестное действие %q", r.ID, a.Type)
		}
	}
	return nil
}

// DefaultCooldown применяется к правилам без собственного кулдауна.
const DefaultCooldown = time.Hour

func (r Rule) cooldown() time.Duration {
	if r.Cooldown > 0 {
		return r.Cooldown
	}
	return DefaultCooldown
}
