package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/occledger/internal/adapter/http/handler"
	"github.com/iho/occledger/internal/adapter/http/middleware"
	"github.com/iho/occledger/internal/infrastructure/metrics"
	"github.com/iho/occledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
// Metrics, Gatherer, IdempotencyStore and RateLimiter are optional.
type RouterConfig struct {
	AccountHandler  *handler.AccountHandler
	TransferHandler *handler.TransferHandler
	LedgerHandler   *handler.LedgerHandler
	HealthHandler   *handler.HealthHandler

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration

	RateLimiter *middleware.RateLimiter
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Logger      zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			limiter := cfg.RateLimiter
			if cfg.Metrics != nil {
				limiter = limiter.OnLimit(cfg.Metrics.RateLimitHits.Inc)
			}
			r.Use(limiter.Limit)
		}

		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotency := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL)
			if cfg.Metrics != nil {
				idempotency = idempotency.OnReplay(cfg.Metrics.IdempotentReplays.Inc)
			}
			r.Use(idempotency.Wrap)
		}

		r.Post("/transfers", cfg.TransferHandler.Create)

		r.Post("/accounts", cfg.AccountHandler.Create)
		r.Get("/accounts", cfg.AccountHandler.List)
		r.Get("/accounts/{id}", cfg.AccountHandler.Get)

		r.Get("/ledger/consistency", cfg.LedgerHandler.Consistency)
	})

	return r
}
