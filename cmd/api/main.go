// Package main provides the entrypoint for the AIPulse API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/aipulse/aipulse/internal/api"
	"github.com/aipulse/aipulse/internal/api/middleware"
	"github.com/aipulse/aipulse/internal/config"
	"github.com/aipulse/aipulse/internal/dashboard"
	"github.com/aipulse/aipulse/internal/database"
	"github.com/aipulse/aipulse/internal/history"
	"github.com/aipulse/aipulse/internal/leadership"
	"github.com/aipulse/aipulse/internal/official"
	"github.com/aipulse/aipulse/internal/provider"
	"github.com/aipulse/aipulse/internal/snapshot"
	"github.com/aipulse/aipulse/internal/stats"
	"github.com/aipulse/aipulse/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "aipulse-api"

	// .env is optional, real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.FromEnv()

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting AIPulse API")

	// Initialize OpenTelemetry
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.Telemetry,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize http metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	cacheMetrics, err := dashboard.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize cache metrics")
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Initialize history store
	store := history.NewPostgresStore(pool, log, cfg.RetentionDays)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure history schema")
	}

	// Initialize leadership coordinator. The API serves cached and stored
	// data on its own; it only probes when it happens to hold the lease,
	// covering deployments that run no dedicated worker.
	coordinator := leadership.NewLeaseCoordinator(leadership.LeaseConfig{
		Pool:      pool,
		Logger:    log,
		LeaseName: cfg.LeaseName,
		TTL:       cfg.LeaseTTL,
	})
	if err := coordinator.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure lease schema")
	}

	// Initialize provider configs and prober
	loader := provider.NewLoader(cfg.ProvidersFile, cfg.ProvidersFileTTL)
	if _, err := loader.Load(); err != nil {
		log.Fatal().Err(err).Str("path", cfg.ProvidersFile).Msg("failed to load provider configs")
	}

	prober := provider.NewProber(provider.ProberConfig{
		Logger:            log,
		DegradedThreshold: cfg.DegradedThreshold,
		APIKeys:           cfg.APIKeys,
	})

	// Initialize refresh engine
	engine := snapshot.NewEngine(snapshot.EngineConfig{
		Store:                store,
		Checker:              prober,
		Leadership:           coordinator,
		Logger:               log,
		CacheTTL:             cfg.SnapshotCacheTTL,
		MaxPointsPerProvider: cfg.MaxPointsPerProvider,
	})

	// Initialize availability stats and official status lookups
	statsProvider := stats.NewPostgresProvider(pool, log)
	officialFetcher := official.NewFetcher(official.FetcherConfig{Logger: log})

	// Initialize dashboard aggregator
	aggregator := dashboard.NewAggregator(dashboard.AggregatorConfig{
		Configs:      loader,
		Engine:       engine,
		Stats:        statsProvider,
		Official:     officialFetcher.Lookup,
		Logger:       log,
		Metrics:      cacheMetrics,
		PollInterval: cfg.PollInterval,
		CacheTTL:     cfg.ResponseCacheTTL,
	})
	log.Info().Msg("dashboard aggregator initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:    Version,
		BuildTime:  BuildTime,
		Logger:     log,
		Metrics:    httpMetrics,
		Aggregator: aggregator,
		DB:         pool,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
