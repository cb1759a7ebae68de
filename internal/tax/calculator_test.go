package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storefront/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestCalculator(t *testing.T) *Calculator {
	return NewCalculator("MH", zaptest.NewLogger(t))
}

func TestCalculate_IntraStateGSTSplitsEvenly(t *testing.T) {
	calc := newTestCalculator(t)

	res := calc.Calculate(dec("1000"), model.TaxAddress{Country: "IN", State: "MH"})

	assert.True(t, res.TaxAmount.Equal(dec("180")), "tax = %s", res.TaxAmount)
	assert.True(t, res.Total.Equal(dec("1180")))
	assert.True(t, res.Rate.Equal(dec("18")))
	assert.Equal(t, model.TaxTypeGSTIndia, res.Breakdown.Type)
	require.NotNil(t, res.Breakdown.CGST)
	require.NotNil(t, res.Breakdown.SGST)
	assert.Nil(t, res.Breakdown.IGST)
	assert.True(t, res.Breakdown.CGST.Equal(*res.Breakdown.SGST))
	assert.True(t, res.Breakdown.CGST.Add(*res.Breakdown.SGST).Equal(res.TaxAmount))
	assert.Equal(t, "Maharashtra", res.Breakdown.State)
}

func TestCalculate_IntraStateOddPaisaGoesToCGST(t *testing.T) {
	res := newTestCalculator(t).Calculate(dec("1.50"), model.TaxAddress{Country: "IN", State: "MH"})

	assert.Equal(t, "0.27", res.TaxAmount.StringFixed(2))
	require.NotNil(t, res.Breakdown.CGST)
	require.NotNil(t, res.Breakdown.SGST)
	assert.Equal(t, "0.14", res.Breakdown.CGST.StringFixed(2))
	assert.Equal(t, "0.13", res.Breakdown.SGST.StringFixed(2))
	assert.True(t, res.Breakdown.CGST.Add(*res.Breakdown.SGST).Equal(res.TaxAmount))
}

func TestCalculate_IsDeterministic(t *testing.T) {
	calc := newTestCalculator(t)
	addr := model.TaxAddress{Country: "IN", State: "MH", PostalCode: "400001"}

	first := calc.Calculate(dec("1000"), addr)
	second := calc.Calculate(dec("1000"), addr)

	assert.True(t, first.TaxAmount.Equal(second.TaxAmount))
	assert.True(t, first.Total.Equal(second.Total))
	assert.True(t, first.Breakdown.CGST.Equal(*second.Breakdown.CGST))
	assert.Equal(t, first.Breakdown.Type, second.Breakdown.Type)
}

func TestCalculate_InterStateGSTIsSingleComponent(t *testing.T) {
	calc := newTestCalculator(t)

	res := calc.Calculate(dec("1000"), model.TaxAddress{Country: "in", State: "ka"})

	require.NotNil(t, res.Breakdown.IGST)
	assert.Nil(t, res.Breakdown.CGST)
	assert.Nil(t, res.Breakdown.SGST)
	assert.True(t, res.Breakdown.IGST.Equal(dec("180")))
	assert.True(t, res.Total.Equal(dec("1180")))
}

func TestCalculate_UnknownIndianStateFallsBackToZero(t *testing.T) {
	calc := newTestCalculator(t)

	res := calc.Calculate(dec("1000"), model.TaxAddress{Country: "IN", State: "XX"})

	assert.True(t, res.TaxAmount.IsZero())
	assert.True(t, res.Total.Equal(dec("1000")))
	assert.Equal(t, model.TaxTypeGSTIndia, res.Breakdown.Type)
}

func TestCalculate_UnmappedCountryIsNoTax(t *testing.T) {
	calc := newTestCalculator(t)

	res := calc.Calculate(dec("1000"), model.TaxAddress{Country: "ZZ"})

	assert.True(t, res.TaxAmount.IsZero())
	assert.True(t, res.Total.Equal(dec("1000")))
	assert.Equal(t, model.TaxTypeNoTax, res.Breakdown.Type)
}

func TestCalculate_Table(t *testing.T) {
	calc := newTestCalculator(t)

	tests := []struct {
		name     string
		subtotal string
		addr     model.TaxAddress
		wantTax  string
		wantType model.TaxType
	}{
		{name: "germany vat", subtotal: "100", addr: model.TaxAddress{Country: "DE"}, wantTax: "19", wantType: model.TaxTypeVATInternational},
		{name: "uk vat rounding", subtotal: "19.99", addr: model.TaxAddress{Country: "GB"}, wantTax: "4", wantType: model.TaxTypeVATInternational},
		{name: "australia gst", subtotal: "17", addr: model.TaxAddress{Country: "AU"}, wantTax: "1.7", wantType: model.TaxTypeVATInternational},
		{name: "us without state rates", subtotal: "19", addr: model.TaxAddress{Country: "US", State: "CA"}, wantTax: "0", wantType: model.TaxTypeVATInternational},
		{name: "uae no tax", subtotal: "500", addr: model.TaxAddress{Country: "AE"}, wantTax: "0", wantType: model.TaxTypeNoTax},
		{name: "zero subtotal", subtotal: "0", addr: model.TaxAddress{Country: "IN", State: "MH"}, wantTax: "0", wantType: model.TaxTypeGSTIndia},
		{name: "scenario cart", subtotal: "2998", addr: model.TaxAddress{Country: "IN", State: "MH"}, wantTax: "539.64", wantType: model.TaxTypeGSTIndia},
		{name: "empty country", subtotal: "10", addr: model.TaxAddress{}, wantTax: "0", wantType: model.TaxTypeNoTax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subtotal := dec(tt.subtotal)
			res := calc.Calculate(subtotal, tt.addr)

			assert.True(t, res.TaxAmount.Equal(dec(tt.wantTax)), "tax = %s", res.TaxAmount)
			assert.True(t, res.Total.Equal(subtotal.Add(res.TaxAmount)))
			assert.Equal(t, tt.wantType, res.Breakdown.Type)
		})
	}
}

func TestCalculate_TaxNeverExceedsMaxRate(t *testing.T) {
	calc := newTestCalculator(t)
	maxRate := calc.MaxRate()
	subtotals := []string{"0.01", "1", "13", "999.99", "1499", "123456.78"}

	for _, country := range calc.SupportedCountries() {
		for _, st := range []string{"", "MH", "DL", "KA"} {
			for _, s := range subtotals {
				subtotal := dec(s)
				res := calc.Calculate(subtotal, model.TaxAddress{Country: country.Code, State: st})

				bound := subtotal.Mul(maxRate).Div(hundred).Round(moneyPlaces)
				assert.False(t, res.TaxAmount.IsNegative(), "%s/%s", country.Code, st)
				assert.True(t, res.TaxAmount.LessThanOrEqual(bound), "%s/%s: %s > %s", country.Code, st, res.TaxAmount, bound)
				assert.True(t, res.Total.Equal(subtotal.Add(res.TaxAmount)))
			}
		}
	}
}

func TestCalculate_NegativeSubtotalIsNoTax(t *testing.T) {
	calc := newTestCalculator(t)

	res := calc.Calculate(dec("-5"), model.TaxAddress{Country: "IN", State: "MH"})

	assert.True(t, res.TaxAmount.IsZero())
	assert.Equal(t, model.TaxTypeNoTax, res.Breakdown.Type)
}

func TestStatesFor(t *testing.T) {
	calc := newTestCalculator(t)

	assert.Len(t, calc.StatesFor("IN"), len(IndianStates))
	assert.Empty(t, calc.StatesFor("DE"))
}

func TestFormatBreakdown(t *testing.T) {
	calc := newTestCalculator(t)

	intra := calc.Calculate(dec("1000"), model.TaxAddress{Country: "IN", State: "MH"})
	inter := calc.Calculate(dec("1000"), model.TaxAddress{Country: "IN", State: "DL"})
	vat := calc.Calculate(dec("100"), model.TaxAddress{Country: "FR"})
	none := calc.Calculate(dec("100"), model.TaxAddress{Country: "SG"})

	assert.Equal(t, "CGST: ₹90.00 + SGST: ₹90.00", FormatBreakdown(intra.Breakdown))
	assert.Equal(t, "IGST: ₹180.00", FormatBreakdown(inter.Breakdown))
	assert.Equal(t, "VAT: France 20.00", FormatBreakdown(vat.Breakdown))
	assert.Equal(t, "No tax applicable", FormatBreakdown(none.Breakdown))
}
