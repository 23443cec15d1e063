// Package worker runs the background probe loop that keeps endpoint
// history warm, so API requests mostly serve cached snapshots.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aipulse/aipulse/internal/history"
	"github.com/aipulse/aipulse/internal/provider"
	"github.com/aipulse/aipulse/internal/snapshot"
)

// Refresher produces snapshots for a scope. Satisfied by *snapshot.Engine.
type Refresher interface {
	Snapshot(ctx context.Context, scope snapshot.Scope, mode snapshot.Mode) history.Snapshot
}

// ConfigSource yields the current provider configs. Satisfied by *provider.Loader.
type ConfigSource interface {
	Load() ([]provider.Config, error)
}

// Pruner removes history rows older than the retention window.
type Pruner interface {
	Prune(ctx context.Context, retentionDays int) error
}

// PollConfig holds configuration for the poll job.
type PollConfig struct {
	// PollInterval is the cadence of probe runs. Default 60s.
	PollInterval time.Duration

	// RetentionDays bounds how much history Prune keeps.
	RetentionDays int

	// PruneInterval is how often retention pruning runs. Default 24h.
	PruneInterval time.Duration

	// RunTimeout bounds a single probe run. Default 2 minutes.
	RunTimeout time.Duration
}

func (c *PollConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 60 * time.Second
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = 24 * time.Hour
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 2 * time.Minute
	}
}

// PollMetrics tracks poll job statistics.
type PollMetrics struct {
	mu sync.RWMutex

	TotalRuns       int64
	EmptyRuns       int64
	ConfigLoadFails int64
	PruneRuns       int64
	PruneFails      int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// PollJob drives periodic snapshot refreshes through the engine. The
// engine's own leadership gate decides whether a run actually probes,
// so every replica can run the job concurrently.
type PollJob struct {
	config  PollConfig
	logger  zerolog.Logger
	engine  Refresher
	configs ConfigSource
	pruner  Pruner
	metrics *PollMetrics
}

// PollJobConfig holds dependencies for creating a PollJob.
type PollJobConfig struct {
	Config  PollConfig
	Logger  zerolog.Logger
	Engine  Refresher
	Configs ConfigSource
	Pruner  Pruner
}

// NewPollJob creates a poll job.
func NewPollJob(cfg PollJobConfig) *PollJob {
	config := cfg.Config
	config.applyDefaults()

	return &PollJob{
		config:  config,
		logger:  cfg.Logger,
		engine:  cfg.Engine,
		configs: cfg.Configs,
		pruner:  cfg.Pruner,
		metrics: &PollMetrics{},
	}
}

// Run executes probe runs on the poll interval until ctx is done. The
// first run fires immediately so a fresh deployment has data before the
// first tick.
func (j *PollJob) Run(ctx context.Context) error {
	j.logger.Info().
		Dur("poll_interval", j.config.PollInterval).
		Int("retention_days", j.config.RetentionDays).
		Msg("starting poll job")

	ticker := time.NewTicker(j.config.PollInterval)
	defer ticker.Stop()

	pruneTicker := time.NewTicker(j.config.PruneInterval)
	defer pruneTicker.Stop()

	j.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("poll job stopping")
			return ctx.Err()
		case <-ticker.C:
			j.RunOnce(ctx)
		case <-pruneTicker.C:
			j.prune(ctx)
		}
	}
}

// RunOnce performs a single probe run over the full dashboard scope.
func (j *PollJob) RunOnce(ctx context.Context) {
	startTime := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, j.config.RunTimeout)
	defer cancel()

	configs, err := j.configs.Load()
	if err != nil {
		j.logger.Error().Err(err).Msg("failed to load provider configs")
		j.recordRun(startTime, false, true)
		return
	}

	scope := snapshot.Scope{
		Name:         "dashboard",
		Configs:      configs,
		PollInterval: j.config.PollInterval,
	}

	snap := j.engine.Snapshot(runCtx, scope, snapshot.ModeAlways)

	duration := time.Since(startTime)
	j.recordRun(startTime, snap.Empty(), false)

	j.logger.Info().
		Dur("duration", duration).
		Int("configs", len(configs)).
		Int("providers_with_history", len(snap)).
		Msg("poll run completed")
}

func (j *PollJob) prune(ctx context.Context) {
	if j.pruner == nil {
		return
	}

	j.logger.Debug().Int("retention_days", j.config.RetentionDays).Msg("pruning check history")

	pruneCtx, cancel := context.WithTimeout(ctx, j.config.RunTimeout)
	defer cancel()

	j.metrics.mu.Lock()
	j.metrics.PruneRuns++
	j.metrics.mu.Unlock()

	if err := j.pruner.Prune(pruneCtx, j.config.RetentionDays); err != nil {
		j.logger.Error().Err(err).Msg("history prune failed")
		j.metrics.mu.Lock()
		j.metrics.PruneFails++
		j.metrics.mu.Unlock()
	}
}

func (j *PollJob) recordRun(startTime time.Time, empty, loadFailed bool) {
	duration := time.Since(startTime)

	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	if empty {
		j.metrics.EmptyRuns++
	}
	if loadFailed {
		j.metrics.ConfigLoadFails++
	}
	j.metrics.LastRunAt = startTime
	j.metrics.LastRunDuration = duration
	j.metrics.TotalDuration += duration
}

// GetMetrics returns a copy of the current metrics.
func (j *PollJob) GetMetrics() PollMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return PollMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		EmptyRuns:       j.metrics.EmptyRuns,
		ConfigLoadFails: j.metrics.ConfigLoadFails,
		PruneRuns:       j.metrics.PruneRuns,
		PruneFails:      j.metrics.PruneFails,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
	}
}
