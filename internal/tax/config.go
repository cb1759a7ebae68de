package tax

import (
	"github.com/shopspring/decimal"

	"storefront/internal/model"
)

// CountryConfig - налоговая конфигурация страны.
type CountryConfig struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Rate          decimal.Decimal `json:"taxRate"`
	Type          model.TaxType   `json:"taxType"`
	StateRequired bool            `json:"requiresState"`
	Label         string          `json:"taxLabel"`
}

// StateConfig - регион внутри страны с многокомпонентным налогом.
type StateConfig struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	Country        string `json:"-"`
	UnionTerritory bool   `json:"unionTerritory"`
}

func pct(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// DefaultCountries - поддерживаемые юрисдикции. US и CA пока без ставок по штатам.
var DefaultCountries = []CountryConfig{
	{Code: "IN", Name: "India", Rate: pct(18), Type: model.TaxTypeGSTIndia, StateRequired: true, Label: "GST"},
	{Code: "DE", Name: "Germany", Rate: pct(19), Type: model.TaxTypeVATInternational, Label: "VAT"},
	{Code: "FR", Name: "France", Rate: pct(20), Type: model.TaxTypeVATInternational, Label: "VAT"},
	{Code: "GB", Name: "United Kingdom", Rate: pct(20), Type: model.TaxTypeVATInternational, Label: "VAT"},
	{Code: "US", Name: "United States", Rate: pct(0), Type: model.TaxTypeVATInternational, StateRequired: true, Label: "Sales Tax"},
	{Code: "AU", Name: "Australia", Rate: pct(10), Type: model.TaxTypeVATInternational, Label: "GST"},
	{Code: "CA", Name: "Canada", Rate: pct(0), Type: model.TaxTypeVATInternational, StateRequired: true, Label: "HST/GST/PST"},
	{Code: "AE", Name: "United Arab Emirates", Rate: pct(0), Type: model.TaxTypeNoTax, Label: "Tax"},
	{Code: "SA", Name: "Saudi Arabia", Rate: pct(0), Type: model.TaxTypeNoTax, Label: "Tax"},
	{Code: "SG", Name: "Singapore", Rate: pct(0), Type: model.TaxTypeNoTax, Label: "Tax"},
}

// IndianStates - штаты, для которых считается GST.
var IndianStates = []StateConfig{
	{Code: "MH", Name: "Maharashtra", Country: "IN"},
	{Code: "DL", Name: "Delhi", Country: "IN", UnionTerritory: true},
	{Code: "KA", Name: "Karnataka", Country: "IN"},
	{Code: "TN", Name: "Tamil Nadu", Country: "IN"},
	{Code: "GJ", Name: "Gujarat", Country: "IN"},
	{Code: "RJ", Name: "Rajasthan", Country: "IN"},
	{Code: "UP", Name: "Uttar Pradesh", Country: "IN"},
	{Code: "WB", Name: "West Bengal", Country: "IN"},
	{Code: "PB", Name: "Punjab", Country: "IN"},
	{Code: "HR", Name: "Haryana", Country: "IN"},
}
