package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"storefront/internal/auth"
	"storefront/internal/tax"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps - сервисы, которые обслуживает HTTP-слой.
type Deps struct {
	Checkout       CheckoutService
	Webhooks       WebhookProcessor
	Admin          AdminService
	Tax            *tax.Calculator
	Health         Pinger
	AdminSecret    []byte
	WebhookTimeout time.Duration
}

// Server представляет HTTP-сервер.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	deps       Deps
	logger     *zap.Logger
}

// NewServer создает и настраивает новый экземпляр сервера.
func NewServer(port string, deps Deps, logger *zap.Logger) *Server {
	if deps.WebhookTimeout <= 0 {
		deps.WebhookTimeout = 15 * time.Second
	}
	server := &Server{deps: deps, logger: logger}
	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           otelhttp.NewHandler(server.router, "storefront"),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server
}

// Handler возвращает роутер, нужен тестам.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run запускает HTTP-сервер и блокируется до его остановки.
func (s *Server) Run() error {
	s.logger.Info("🚀 HTTP-сервер запущен", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown дожидается завершения активных запросов.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// setupRouter настраивает маршрутизацию.
func (s *Server) setupRouter() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(s.logger))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", s.instrument("Health", s.health))
	router.Handle("/metrics", promhttp.Handler())

	checkoutHandler := NewCheckoutHandler(s.deps.Checkout, s.logger)
	router.Post("/api/checkout/session", s.instrument("CreateCheckoutSession", checkoutHandler.CreateSession))

	webhookHandler := NewWebhookHandler(s.deps.Webhooks, s.logger)
	router.With(middleware.Timeout(s.deps.WebhookTimeout)).
		Post("/api/webhooks/razorpay", s.instrument("RazorpayWebhook", webhookHandler.Razorpay))

	taxHandler := NewTaxHandler(s.deps.Tax)
	router.Route("/api/tax", func(r chi.Router) {
		r.Get("/countries", s.instrument("TaxCountries", taxHandler.Countries))
		r.Get("/countries/{code}/states", s.instrument("TaxStates", taxHandler.States))
		r.Post("/quote", s.instrument("TaxQuote", taxHandler.Quote))
	})

	adminHandler := NewAdminHandler(s.deps.Admin)
	router.Route("/api/admin", func(r chi.Router) {
		r.Use(auth.AdminOnly(s.deps.AdminSecret, s.logger))
		r.Get("/orders", s.instrument("AdminListOrders", adminHandler.ListOrders))
		r.Get("/orders/{orderID}", s.instrument("AdminGetOrder", adminHandler.GetOrder))
		r.Patch("/orders/{orderID}", s.instrument("AdminUpdateOrder", adminHandler.UpdateOrder))
		r.Get("/orders/{orderID}/fraud-flags", s.instrument("AdminOrderFlags", adminHandler.ListFraudFlags))
		r.Patch("/fraud-flags/{flagID}", s.instrument("AdminReviewFlag", adminHandler.ReviewFraudFlag))
		r.Get("/fraud/stats", s.instrument("AdminFraudStats", adminHandler.FraudStats))
	})

	return router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health.Ping(r.Context()); err != nil {
			s.logger.Error("Хранилище недоступно", zap.Error(err))
			respondWithError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
