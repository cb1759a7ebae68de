package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"storefront/internal/checkout"
	"storefront/internal/gateway"
)

type CheckoutService interface {
	CreateSession(ctx context.Context, req checkout.Request) (*checkout.Session, error)
}

// CheckoutHandler создает платежные сессии.
type CheckoutHandler struct {
	service CheckoutService
	logger  *zap.Logger
}

func NewCheckoutHandler(service CheckoutService, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: service, logger: logger}
}

func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	req.ClientIP = clientIP(r)
	req.UserAgent = r.UserAgent()
	req.IPCountry = r.Header.Get("CF-IPCountry")

	session, err := h.service.CreateSession(r.Context(), req)
	if err != nil {
		var verr *checkout.ValidationError
		var gwErr *gateway.APIError
		switch {
		case errors.As(err, &verr):
			respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Message, Field: verr.Field})
		case errors.Is(err, checkout.ErrBlockedByFraud):
			respondWithError(w, http.StatusForbidden, err.Error())
		case errors.As(err, &gwErr):
			h.logger.Error("Шлюз не создал заказ", zap.Error(err))
			respondWithError(w, http.StatusBadGateway, "платежный шлюз недоступен")
		default:
			h.logger.Error("Ошибка создания платежной сессии", zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "не удалось создать платежную сессию")
		}
		return
	}
	respondWithJSON(w, http.StatusOK, session)
}
