package model

import "github.com/shopspring/decimal"

const (
	CurrencyINR = "INR"
	CurrencyUSD = "USD"
)

type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Slug     string          `json:"slug"`
	Category string          `json:"category"`
	PriceINR decimal.Decimal `json:"priceInr"`
	PriceUSD decimal.Decimal `json:"priceUsd"`
	Stock    int             `json:"stock"`
}

// PriceIn возвращает цену в валюте. Для неизвестной валюты - ноль.
func (p Product) PriceIn(currency string) decimal.Decimal {
	switch currency {
	case CurrencyINR:
		return p.PriceINR
	case CurrencyUSD:
		return p.PriceUSD
	}
	return decimal.Zero
}
