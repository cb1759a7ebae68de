package tax

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/model"
)

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Calculator рассчитывает налог по адресу доставки. Не выполняет I/O и не возвращает ошибок:
// неизвестная юрисдикция дает нулевой налог, а не отказ в чекауте.
type Calculator struct {
	countries   []CountryConfig
	byCountry   map[string]CountryConfig
	states      map[string]StateConfig
	stateList   []StateConfig
	sellerState string
	logger      *zap.Logger
}

// NewCalculator создает калькулятор со штатными таблицами. sellerState - штат продавца для GST.
func NewCalculator(sellerState string, logger *zap.Logger) *Calculator {
	return NewCalculatorWithConfig(DefaultCountries, IndianStates, sellerState, logger)
}

func NewCalculatorWithConfig(countries []CountryConfig, states []StateConfig, sellerState string, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Calculator{
		countries:   countries,
		byCountry:   make(map[string]CountryConfig, len(countries)),
		states:      make(map[string]StateConfig, len(states)),
		stateList:   states,
		sellerState: strings.ToUpper(sellerState),
		logger:      logger,
	}
	for _, cfg := range countries {
		c.byCountry[cfg.Code] = cfg
	}
	for _, st := range states {
		c.states[st.Country+"/"+st.Code] = st
	}
	return c
}

// Calculate применяет к subtotal налог страны доставки. Total всегда равен subtotal + налог.
func (c *Calculator) Calculate(subtotal decimal.Decimal, addr model.TaxAddress) model.TaxCalculation {
	country := strings.ToUpper(strings.TrimSpace(addr.Country))
	state := strings.ToUpper(strings.TrimSpace(addr.State))

	cfg, ok := c.byCountry[country]
	if !ok || cfg.Type == model.TaxTypeNoTax || subtotal.IsNegative() {
		return noTax(subtotal, addr.Country, addr.State)
	}

	switch cfg.Type {
	case model.TaxTypeGSTIndia:
		return c.calculateGST(subtotal, cfg, state)
	case model.TaxTypeVATInternational:
		return calculateVAT(subtotal, cfg)
	}
	return noTax(subtotal, addr.Country, addr.State)
}

// calculateGST делит налог на CGST+SGST внутри штата продавца и берет IGST между штатами.
func (c *Calculator) calculateGST(subtotal decimal.Decimal, cfg CountryConfig, stateCode string) model.TaxCalculation {
	st, ok := c.states[cfg.Code+"/"+stateCode]
	if !ok {
		c.logger.Warn("штат не найден в налоговой таблице, налог не начислен",
			zap.String("country", cfg.Code), zap.String("state", stateCode))
		return model.TaxCalculation{
			Subtotal:  subtotal,
			Rate:      decimal.Zero,
			TaxAmount: decimal.Zero,
			Total:     subtotal,
			Breakdown: model.TaxBreakdown{Type: model.TaxTypeGSTIndia, Country: cfg.Name, State: stateCode},
		}
	}

	taxAmount := percentOf(subtotal, cfg.Rate)
	breakdown := model.TaxBreakdown{Type: model.TaxTypeGSTIndia, Country: cfg.Name, State: st.Name}
	if st.Code == c.sellerState {
		// Сумма частей всегда равна налогу; нечетный пайс уходит в CGST.
		central := taxAmount.Div(decimal.NewFromInt(2)).Round(moneyPlaces)
		regional := taxAmount.Sub(central)
		breakdown.CGST = &central
		breakdown.SGST = &regional
	} else {
		integrated := taxAmount
		breakdown.IGST = &integrated
	}

	return model.TaxCalculation{
		Subtotal:  subtotal,
		Rate:      cfg.Rate,
		TaxAmount: taxAmount,
		Total:     subtotal.Add(taxAmount),
		Breakdown: breakdown,
	}
}

func calculateVAT(subtotal decimal.Decimal, cfg CountryConfig) model.TaxCalculation {
	taxAmount := percentOf(subtotal, cfg.Rate)
	vat := taxAmount
	return model.TaxCalculation{
		Subtotal:  subtotal,
		Rate:      cfg.Rate,
		TaxAmount: taxAmount,
		Total:     subtotal.Add(taxAmount),
		Breakdown: model.TaxBreakdown{Type: model.TaxTypeVATInternational, Country: cfg.Name, VAT: &vat},
	}
}

func noTax(subtotal decimal.Decimal, country, state string) model.TaxCalculation {
	return model.TaxCalculation{
		Subtotal:  subtotal,
		Rate:      decimal.Zero,
		TaxAmount: decimal.Zero,
		Total:     subtotal,
		Breakdown: model.TaxBreakdown{Type: model.TaxTypeNoTax, Country: country, State: state},
	}
}

func percentOf(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred).Round(moneyPlaces)
}

// SupportedCountries возвращает список юрисдикций в порядке конфигурации.
func (c *Calculator) SupportedCountries() []CountryConfig {
	out := make([]CountryConfig, len(c.countries))
	copy(out, c.countries)
	return out
}

// StatesFor возвращает регионы страны. Для стран без регионов - пустой список.
func (c *Calculator) StatesFor(country string) []StateConfig {
	country = strings.ToUpper(country)
	out := make([]StateConfig, 0)
	for _, st := range c.stateList {
		if st.Country == country {
			out = append(out, st)
		}
	}
	return out
}

// MaxRate - максимальная настроенная ставка, верхняя граница для налога.
func (c *Calculator) MaxRate() decimal.Decimal {
	max := decimal.Zero
	for _, cfg := range c.countries {
		if cfg.Rate.GreaterThan(max) {
			max = cfg.Rate
		}
	}
	return max
}

// FormatBreakdown форматирует налог для писем и админки.
func FormatBreakdown(b model.TaxBreakdown) string {
	switch b.Type {
	case model.TaxTypeGSTIndia:
		if b.CGST != nil && b.SGST != nil {
			return fmt.Sprintf("CGST: ₹%s + SGST: ₹%s", b.CGST.StringFixed(moneyPlaces), b.SGST.StringFixed(moneyPlaces))
		}
		if b.IGST != nil {
			return fmt.Sprintf("IGST: ₹%s", b.IGST.StringFixed(moneyPlaces))
		}
	case model.TaxTypeVATInternational:
		if b.VAT != nil {
			return fmt.Sprintf("VAT: %s %s", b.Country, b.VAT.StringFixed(moneyPlaces))
		}
	case model.TaxTypeNoTax:
		return "No tax applicable"
	}
	return ""
}
