package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"storefront/internal/model"
	"storefront/internal/tax"
)

type TaxHandler struct {
	calc *tax.Calculator
}

func NewTaxHandler(calc *tax.Calculator) *TaxHandler {
	return &TaxHandler{calc: calc}
}

func (h *TaxHandler) Countries(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.calc.SupportedCountries())
}

func (h *TaxHandler) States(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.calc.StatesFor(chi.URLParam(r, "code")))
}

type taxQuoteRequest struct {
	Subtotal decimal.Decimal  `json:"subtotal"`
	Address  model.TaxAddress `json:"address"`
}

type taxQuoteResponse struct {
	model.TaxCalculation
	Summary string `json:"summary"`
}

func (h *TaxHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req taxQuoteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	if req.Subtotal.IsNegative() || req.Address.Country == "" {
		respondWithError(w, http.StatusBadRequest, "нужны неотрицательная сумма и страна")
		return
	}
	calc := h.calc.Calculate(req.Subtotal, req.Address)
	respondWithJSON(w, http.StatusOK, taxQuoteResponse{TaxCalculation: calc, Summary: tax.FormatBreakdown(calc.Breakdown)})
}
