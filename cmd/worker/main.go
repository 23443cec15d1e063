// Package main provides the entrypoint for the AIPulse background worker.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/aipulse/aipulse/internal/config"
	"github.com/aipulse/aipulse/internal/database"
	"github.com/aipulse/aipulse/internal/history"
	"github.com/aipulse/aipulse/internal/leadership"
	"github.com/aipulse/aipulse/internal/provider"
	"github.com/aipulse/aipulse/internal/snapshot"
	"github.com/aipulse/aipulse/internal/telemetry"
	"github.com/aipulse/aipulse/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "aipulse-worker"

	_ = godotenv.Load()

	cfg := config.FromEnv()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting AIPulse worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Str("database", dbConfig.Database).
		Msg("database connected")

	store := history.NewPostgresStore(pool, log, cfg.RetentionDays)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure history schema")
	}

	coordinator := leadership.NewLeaseCoordinator(leadership.LeaseConfig{
		Pool:      pool,
		Logger:    log,
		LeaseName: cfg.LeaseName,
		TTL:       cfg.LeaseTTL,
	})
	if err := coordinator.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure lease schema")
	}

	loader := provider.NewLoader(cfg.ProvidersFile, cfg.ProvidersFileTTL)
	if _, err := loader.Load(); err != nil {
		log.Fatal().Err(err).Str("path", cfg.ProvidersFile).Msg("failed to load provider configs")
	}

	prober := provider.NewProber(provider.ProberConfig{
		Logger:            log,
		DegradedThreshold: cfg.DegradedThreshold,
		APIKeys:           cfg.APIKeys,
	})

	engine := snapshot.NewEngine(snapshot.EngineConfig{
		Store:                store,
		Checker:              prober,
		Leadership:           coordinator,
		Logger:               log,
		CacheTTL:             cfg.SnapshotCacheTTL,
		MaxPointsPerProvider: cfg.MaxPointsPerProvider,
	})

	pollJob := worker.NewPollJob(worker.PollJobConfig{
		Config: worker.PollConfig{
			PollInterval:  cfg.PollInterval,
			RetentionDays: cfg.RetentionDays,
		},
		Logger:  log,
		Engine:  engine,
		Configs: loader,
		Pruner:  store,
	})

	// Optional Pub/Sub trigger for out-of-cadence refreshes.
	if cfg.PubSubProject != "" && cfg.PubSubSubscription != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProject,
			SubscriptionName: cfg.PubSubSubscription,
			PollJob:          pollJob,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize pubsub handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	if err := pollJob.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("poll job failed")
	}

	log.Info().Msg("worker stopped")
}
