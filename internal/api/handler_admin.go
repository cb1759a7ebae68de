package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"storefront/internal/admin"
	"storefront/internal/auth"
	"storefront/internal/database"
	"storefront/internal/fraud"
	"storefront/internal/model"
)

type AdminService interface {
	ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	UpdateOrder(ctx context.Context, id string, upd admin.OrderUpdate, actor string) (*model.Order, error)
	ListFraudFlags(ctx context.Context, orderID string) ([]model.FraudFlag, error)
	ReviewFraudFlag(ctx context.Context, id string, status model.FraudStatus, reviewer string) (*model.FraudFlag, error)
	FraudStats(ctx context.Context, from, to time.Time) (fraud.Stats, error)
}

// AdminHandler обслуживает бэк-офис. Доступ проверяет auth.AdminOnly.
type AdminHandler struct {
	service AdminService
}

func NewAdminHandler(service AdminService) *AdminHandler {
	return &AdminHandler{service: service}
}

// adminError переводит ошибку сервиса в HTTP-статус.
func adminError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "не найдено")
	case errors.Is(err, admin.ErrInvalidTransition), errors.Is(err, database.ErrStatusConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, admin.ErrInvalidStatus), errors.Is(err, admin.ErrEmptyUpdate), errors.Is(err, admin.ErrInvalidRange):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, "внутренняя ошибка")
	}
}

func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	filter := model.OrderFilter{Status: model.OrderStatus(r.URL.Query().Get("status"))}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondWithError(w, http.StatusBadRequest, "некорректный limit")
			return
		}
		filter.Limit = limit
	}
	orders, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		adminError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

// GetOrder ищет заказ сначала в кэше, затем в БД.
func (h *AdminHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		respondWithError(w, http.StatusBadRequest, "ID заказа не указан")
		return
	}
	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		adminError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, order)
}

func (h *AdminHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var upd admin.OrderUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&upd); err != nil {
		respondWithError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	order, err := h.service.UpdateOrder(r.Context(), chi.URLParam(r, "orderID"), upd, auth.SubjectFromContext(r.Context()))
	if err != nil {
		adminError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, order)
}

func (h *AdminHandler) ListFraudFlags(w http.ResponseWriter, r *http.Request) {
	flags, err := h.service.ListFraudFlags(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		adminError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, flags)
}

func (h *AdminHandler) ReviewFraudFlag(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status model.FraudStatus `json:"status"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&body); err != nil || body.Status == "" {
		respondWithError(w, http.StatusBadRequest, "нужен статус")
		return
	}
	flag, err := h.service.ReviewFraudFlag(r.Context(), chi.URLParam(r, "flagID"), body.Status, auth.SubjectFromContext(r.Context()))
	if err != nil {
		adminError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, flag)
}

func (h *AdminHandler) FraudStats(w http.ResponseWriter, r *http.Request) {
	var from, to time.Time
	for name, dst := range map[string]*time.Time{"from": &from, "to": &to} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "параметр "+name+" должен быть в RFC3339")
			return
		}
		*dst = t
	}
	stats, err := h.service.FraudStats(r.Context(), from, to)
	if err != nil {
		adminError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}
