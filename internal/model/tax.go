package model

import "github.com/shopspring/decimal"

// TaxType - налоговый режим, примененный к расчету.
type TaxType string

const (
	TaxTypeGSTIndia         TaxType = "gst_india"
	TaxTypeVATInternational TaxType = "vat_international"
	TaxTypeNoTax            TaxType = "no_tax"
)

// TaxBreakdown - составляющие налога. Заполняются только компоненты применённого режима.
type TaxBreakdown struct {
	CGST    *decimal.Decimal `json:"cgst,omitempty"`
	SGST    *decimal.Decimal `json:"sgst,omitempty"`
	IGST    *decimal.Decimal `json:"igst,omitempty"`
	VAT     *decimal.Decimal `json:"vat,omitempty"`
	Country string           `json:"country,omitempty"`
	State   string           `json:"state,omitempty"`
	Type    TaxType          `json:"taxType"`
}

type TaxCalculation struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Rate      decimal.Decimal `json:"taxRate"`
	TaxAmount decimal.Decimal `json:"taxAmount"`
	Total     decimal.Decimal `json:"total"`
	Breakdown TaxBreakdown    `json:"taxBreakdown"`
}

// TaxAddress - часть адреса, влияющая на налог.
type TaxAddress struct {
	Country    string `json:"country" validate:"required"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}
