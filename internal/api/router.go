// Package api provides the HTTP API for AIPulse.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/aipulse/aipulse/internal/api/handler"
	"github.com/aipulse/aipulse/internal/api/middleware"
	"github.com/aipulse/aipulse/internal/dashboard"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version    string
	BuildTime  string
	Logger     zerolog.Logger
	Metrics    *middleware.Metrics
	Aggregator *dashboard.Aggregator
	DB         handler.Pinger
}

// NewRouter creates the chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware, ordered: correlation first, then observability,
	// then safety nets.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.DB)
	dashHandler := handler.NewDashboardHandler(cfg.Aggregator, cfg.Logger)

	dashboardRateLimit := middleware.RateLimitByIP(middleware.DashboardRateLimit)
	forceRefreshAware := forceRefreshLimiter(
		middleware.RateLimitByIP(middleware.ForceRefreshRateLimit),
	)

	r.Route("/api", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		r.Group(func(r chi.Router) {
			r.Use(dashboardRateLimit)
			r.Use(forceRefreshAware)
			r.Get("/dashboard", dashHandler.GetDashboard)
			r.Get("/group/{groupName}", dashHandler.GetGroup)
		})
	})

	return r
}

// forceRefreshLimiter applies limit only to requests asking for a forced
// refresh; plain reads are served from cache and stay on the normal limit.
func forceRefreshLimiter(limit func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limited := limit(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("forceRefresh") == "1" {
				limited.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
