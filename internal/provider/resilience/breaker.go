// Package resilience wraps outbound probe HTTP calls with circuit breaking
// and bounded exponential-backoff retries, so a flapping upstream cannot
// turn every poll cycle into a storm of slow failures.
package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker guarding one provider endpoint.
type BreakerConfig struct {
	// Name identifies the breaker in logs and metrics.
	Name string

	// MaxRequests allowed through in half-open state. Default 1.
	MaxRequests uint32

	// OpenTimeout is how long the breaker stays open before probing
	// half-open. Default 60s.
	OpenTimeout time.Duration

	// ReadyToTrip overrides the default trip condition (5+ requests with
	// a failure ratio of at least 50%).
	ReadyToTrip func(counts gobreaker.Counts) bool
}

func defaultReadyToTrip(counts gobreaker.Counts) bool {
	ratio := float64(counts.TotalFailures) / float64(counts.Requests)
	return counts.Requests >= 5 && ratio >= 0.5
}

func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[int] {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 60 * time.Second
	}
	if cfg.ReadyToTrip == nil {
		cfg.ReadyToTrip = defaultReadyToTrip
	}
	return gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: cfg.ReadyToTrip,
	})
}
