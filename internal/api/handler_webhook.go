package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"storefront/internal/finalizer"
	"storefront/internal/gateway"
)

type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, body []byte, signature string) (finalizer.Result, error)
}

// WebhookHandler принимает вебхуки платежного шлюза.
type WebhookHandler struct {
	processor WebhookProcessor
	logger    *zap.Logger
}

func NewWebhookHandler(processor WebhookProcessor, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{processor: processor, logger: logger}
}

// Razorpay: 2xx - обработано (включая повтор), 4xx - отклонено, 5xx - шлюзу нужно повторить.
func (h *WebhookHandler) Razorpay(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "не удалось прочитать тело")
		return
	}

	res, err := h.processor.HandleWebhook(r.Context(), body, r.Header.Get(gateway.SignatureHeader))
	switch {
	case errors.Is(err, finalizer.ErrInvalidSignature):
		h.logger.Warn("Вебхук с неверной подписью", zap.String("remote", clientIP(r)))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, finalizer.ErrMalformedEvent):
		h.logger.Warn("Некорректный вебхук", zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "некорректное событие")
		return
	case err != nil:
		h.logger.Error("Ошибка обработки вебхука, шлюз повторит доставку", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "временная ошибка")
		return
	}

	respondWithJSON(w, http.StatusOK, struct {
		Received bool `json:"received"`
		finalizer.Result
	}{Received: true, Result: res})
}
