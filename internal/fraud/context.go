package fraud

import (
	"sort"
	"strings"
	"time"

	"storefront/internal/model"
)

// Context - входные данные одной проверки. Order может быть предварительным
// (без ID), если проверка идет до создания заказа.
type Context struct {
	Order          *model.Order
	GatewayOrderID string
	IPAddress      string
	UserAgent      string
	SessionID      string
	UserID         string
	Email          string
	IPCountry      string
	// StockLevels - остатки до покупки по product id.
	StockLevels map[string]int
	// ReplayCount - сколько раз уже доставлялся вебхук с этим GatewayOrderID.
	ReplayCount int
}

func (c Context) actor() model.Actor {
	email := c.Email
	if email == "" && c.Order != nil {
		email = c.Order.CustomerEmail
	}
	return model.Actor{IPAddress: c.IPAddress, Email: email, UserID: c.UserID}
}

func (c Context) orderID() string {
	if c.Order == nil {
		return ""
	}
	return c.Order.ID
}

const (
	orderLookback   = 24 * time.Hour
	failureLookback = time.Hour
)

// history - обогащение контекста историей актора.
type history struct {
	orderTimes   []time.Time
	failureTimes []time.Time
}

// value - значение поля после разрешения.
type value struct {
	num     float64
	text    string
	numeric bool
	present bool
}

type evaluation struct {
	fc   Context
	hist history
	now  time.Time
}

func countSince(times []time.Time, since time.Time) int {
	n := 0
	for _, t := range times {
		if !t.Before(since) {
			n++
		}
	}
	return n
}

// spanMinutes - интервал в минутах между двумя последними событиями.
func spanMinutes(times []time.Time) float64 {
	if len(times) < 2 {
		return 0
	}
	sorted := append([]time.Time(nil), times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].After(sorted[j]) })
	return sorted[0].Sub(sorted[1]).Minutes()
}

func (e *evaluation) resolve(f Field, window time.Duration) value {
	num := func(v float64) value { return value{num: v, numeric: true, present: true} }
	text := func(s string) value { return value{text: s, present: s != ""} }

	switch f {
	case FieldPaymentFailureCount:
		since := e.now.Add(-failureLookback)
		if window > 0 {
			since = e.now.Add(-window)
		}
		return num(float64(countSince(e.hist.failureTimes, since)))
	case FieldPaymentFailureWindow:
		return num(spanMinutes(e.hist.failureTimes))
	case FieldOrderCount:
		since := e.now.Add(-orderLookback)
		if window > 0 {
			since = e.now.Add(-window)
		}
		return num(float64(countSince(e.hist.orderTimes, since)))
	case FieldOrderWindow:
		return num(spanMinutes(e.hist.orderTimes))
	case FieldOrderValue:
		if e.fc.Order == nil {
			return num(0)
		}
		return num(e.fc.Order.Total.InexactFloat64())
	case FieldNewUserOrderCount:
		if len(e.hist.orderTimes) == 0 {
			return num(1)
		}
		return num(0)
	case FieldIPAddress:
		return text(e.fc.IPAddress)
	case FieldEmail:
		return text(e.fc.actor().Email)
	case FieldGatewayOrderID:
		return text(e.fc.GatewayOrderID)
	case FieldIPCountry:
		return text(strings.ToUpper(e.fc.IPCountry))
	case FieldStockDepletion:
		return num(stockDepletion(e.fc))
	case FieldReplayCount:
		return num(float64(e.fc.ReplayCount))
	}
	return value{}
}

// stockDepletion - максимальная доля остатка, которую выкупает заказ.
func stockDepletion(fc Context) float64 {
	if fc.Order == nil || len(fc.StockLevels) == 0 {
		return 0
	}
	var worst float64
	for _, it := range fc.Order.Items {
		stock, ok := fc.StockLevels[it.ProductID]
		if !ok || stock <= 0 {
			continue
		}
		if share := float64(it.Quantity) / float64(stock); share > worst {
			worst = share
		}
	}
	return worst
}

func (e *evaluation) matches(c Condition) bool {
	v := e.resolve(c.Field, c.Window)
	switch c.Operator {
	case OpExists:
		return v.present
	case OpGreaterThan:
		return v.numeric && v.num > c.Number
	case OpLessThan:
		return v.numeric && v.num < c.Number
	case OpEquals:
		if v.numeric {
			return v.num == c.Number
		}
		return v.present && v.text == c.Text
	case OpIn:
		return v.present && contains(c.Set, v.text)
	case OpNotIn:
		return !contains(c.Set, v.text)
	}
	return false
}

func (e *evaluation) matchesAll(r Rule) bool {
	for _, c := range r.Conditions {
		if !e.matches(c) {
			return false
		}
	}
	return true
}

func contains(set []string, s string) bool {
	for _, item := range set {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// metadata собирает сигналы, которые попадут во флаг.
func (e *evaluation) metadata() model.FraudMetadata {
	md := model.FraudMetadata{
		PaymentFailureCount: len(e.hist.failureTimes),
		GatewayOrderID:      e.fc.GatewayOrderID,
		OrderCount:          len(e.hist.orderTimes),
		IPAddress:           e.fc.IPAddress,
		IPCountry:           e.fc.IPCountry,
		UserAgent:           e.fc.UserAgent,
		SessionID:           e.fc.SessionID,
		StockDepletion:      stockDepletion(e.fc),
	}
	if email := e.fc.actor().Email; email != "" {
		if at := strings.LastIndex(email, "@"); at >= 0 {
			md.EmailDomain = email[at+1:]
		}
	}
	if o := e.fc.Order; o != nil {
		md.OrderValue = o.Total.StringFixed(2)
		a := o.ShippingAddress
		if a.City != "" || a.Country != "" {
			md.ShippingAddress = strings.Join([]string{a.City, a.State, a.Country}, ", ")
		}
		for _, it := range o.Items {
			md.TargetProductIDs = append(md.TargetProductIDs, it.ProductID)
		}
	}
	return md
}
