// Package config loads the AIPulse runtime tunables from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aipulse/aipulse/internal/provider"
)

// Retention window bounds, in days. Values outside are clamped, not
// rejected: a misconfigured deployment should still run.
const (
	MinRetentionDays = 1
	MaxRetentionDays = 90
)

// Config holds the application tunables.
type Config struct {
	Port         string
	Environment  string
	OTLPEndpoint string
	Telemetry    bool

	// PollInterval is the probe cadence; it also drives cache TTLs and
	// the Cache-Control max-age on dashboard responses.
	PollInterval time.Duration

	// RetentionDays bounds stored probe history, clamped to
	// [MinRetentionDays, MaxRetentionDays].
	RetentionDays int

	// MaxPointsPerProvider caps points per config on snapshot reads.
	MaxPointsPerProvider int

	// SnapshotCacheTTL and ResponseCacheTTL are the fallback TTLs used
	// when PollInterval is not positive.
	SnapshotCacheTTL time.Duration
	ResponseCacheTTL time.Duration

	// DegradedThreshold marks successful probes slower than this degraded.
	DegradedThreshold time.Duration

	ProvidersFile    string
	ProvidersFileTTL time.Duration

	LeaseName string
	LeaseTTL  time.Duration

	// APIKeys maps provider type to probe credential.
	APIKeys map[provider.Type]string

	// PubSubProject/PubSubSubscription enable the optional force-refresh
	// message trigger in the worker when both are set.
	PubSubProject      string
	PubSubSubscription string
}

// FromEnv reads the configuration from AIPULSE_* environment variables.
func FromEnv() Config {
	cfg := Config{
		Port:                 envOr("APP_PORT", "8080"),
		Environment:          envOr("APP_ENV", "development"),
		OTLPEndpoint:         envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		Telemetry:            os.Getenv("OTEL_ENABLED") == "true",
		PollInterval:         durationOr("AIPULSE_POLL_INTERVAL", time.Minute),
		RetentionDays:        ClampRetentionDays(intOr("AIPULSE_RETENTION_DAYS", 30)),
		MaxPointsPerProvider: intOr("AIPULSE_MAX_POINTS_PER_PROVIDER", 50),
		SnapshotCacheTTL:     durationOr("AIPULSE_SNAPSHOT_CACHE_TTL", 2*time.Minute),
		ResponseCacheTTL:     durationOr("AIPULSE_RESPONSE_CACHE_TTL", 5*time.Minute),
		DegradedThreshold:    durationOr("AIPULSE_DEGRADED_THRESHOLD", 10*time.Second),
		ProvidersFile:        envOr("AIPULSE_PROVIDERS_FILE", "providers.yaml"),
		ProvidersFileTTL:     durationOr("AIPULSE_PROVIDERS_FILE_TTL", time.Minute),
		LeaseName:            envOr("AIPULSE_LEASE_NAME", "aipulse-poller"),
		LeaseTTL:             durationOr("AIPULSE_LEASE_TTL", 90*time.Second),
		PubSubProject:        os.Getenv("AIPULSE_PUBSUB_PROJECT"),
		PubSubSubscription:   os.Getenv("AIPULSE_PUBSUB_SUBSCRIPTION"),
	}

	cfg.APIKeys = map[provider.Type]string{}
	for _, t := range provider.AllTypes() {
		key := "AIPULSE_" + strings.ToUpper(string(t)) + "_API_KEY"
		if v := os.Getenv(key); v != "" {
			cfg.APIKeys[t] = v
		}
	}
	return cfg
}

// ClampRetentionDays forces days into the supported retention range.
func ClampRetentionDays(days int) int {
	if days < MinRetentionDays {
		return MinRetentionDays
	}
	if days > MaxRetentionDays {
		return MaxRetentionDays
	}
	return days
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
