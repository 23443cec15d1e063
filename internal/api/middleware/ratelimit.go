package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/aipulse/aipulse/internal/api/models"
)

// RateLimitConfig bounds request volume per client IP.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// Standard limits for the API surface.
var (
	// DashboardRateLimit applies to the aggregated dashboard endpoints.
	// Responses are cached server-side, so the limit is generous.
	DashboardRateLimit = RateLimitConfig{RequestLimit: 120, WindowLength: time.Minute}

	// ForceRefreshRateLimit applies to requests carrying forceRefresh=1,
	// which can reach the monitored endpoints.
	ForceRefreshRateLimit = RateLimitConfig{RequestLimit: 10, WindowLength: time.Minute}
)

// RateLimitByIP limits requests per client IP using httprate.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(rateLimitExceeded),
	)
}

func rateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	problem := models.NewTooManyRequests(GetRequestID(r.Context()), "rate limit exceeded, try again later")
	problem.Instance = r.URL.Path
	problem.Write(w)
}
