package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mkravets/clearway/internal/pkg/metrics"
	"github.com/mkravets/clearway/internal/transport/httpapi/handler"
	"github.com/mkravets/clearway/internal/transport/httpapi/middleware"
	"github.com/mkravets/clearway/pkg/logger"
)

// Config holds router configuration
type Config struct {
	Logger         *logger.Logger
	AllowedOrigins []string
	PaymentHandler *handler.PaymentHandler
	AccountHandler *handler.AccountHandler
	HealthHandler  *handler.HealthHandler
}

// NewRouter creates a new HTTP router
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.RateLimit()) // Rate limiting: 100 req/s with burst of 20

	// Operational endpoints
	r.Get("/health", handler.GetHealth)
	r.Get("/health/live", handler.GetLiveness)
	if cfg.HealthHandler != nil {
		r.Get("/health/ready", cfg.HealthHandler.GetReadiness)
	}
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		if cfg.AccountHandler != nil {
			r.Post("/accounts", cfg.AccountHandler.CreateAccount)
			r.Get("/accounts/{id}", cfg.AccountHandler.GetAccount)
			r.Get("/accounts/{id}/balance", cfg.AccountHandler.GetBalance)
		}

		if cfg.PaymentHandler != nil {
			r.Post("/payments", cfg.PaymentHandler.CreatePayment)
			r.Get("/payments/{id}", cfg.PaymentHandler.GetPayment)
			r.Post("/payments/{id}/authorize", cfg.PaymentHandler.AuthorizePayment)
			r.Post("/payments/{id}/settle", cfg.PaymentHandler.SettlePayment)
			r.Post("/payments/{id}/fail", cfg.PaymentHandler.FailPayment)
		}
	})

	return r
}
