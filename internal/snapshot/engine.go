// Package snapshot orchestrates the read-vs-refresh decision for probe
// history: stale-while-revalidate caching, leader-gated probing, and
// single-flight collapsing of concurrent refreshes per scope.
package snapshot

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aipulse/aipulse/internal/cache"
	"github.com/aipulse/aipulse/internal/history"
	"github.com/aipulse/aipulse/internal/leadership"
	"github.com/aipulse/aipulse/internal/provider"
)

// Mode selects how eagerly a snapshot request may trigger real probing.
type Mode int

const (
	// ModeNever serves cached or stored history only; it never probes.
	ModeNever Mode = iota
	// ModeMissing probes only when the stored history is empty.
	ModeMissing
	// ModeAlways takes the refresh path unconditionally (still subject to
	// leadership and the within-TTL leader short-circuit).
	ModeAlways
)

// Scope identifies one cacheable unit of refresh work.
type Scope struct {
	// Name is the logical scope ("dashboard", "group:openai", ...).
	Name string
	// Configs are all configs visible to the scope, maintenance included.
	Configs []provider.Config
	// PollInterval drives cache TTL and probe cadence.
	PollInterval time.Duration
	// Period is the optional time-range qualifier ("7d", "15d", "30d").
	Period string
}

// Key derives the deterministic cache key: distinct filter combinations
// never collide, identical ones always hit the same entry.
func (s Scope) Key() string {
	ids := make([]string, len(s.Configs))
	for i, c := range s.Configs {
		ids[i] = c.ID
	}
	sort.Strings(ids)
	return s.Name + "|" + strings.Join(ids, ",") + "|" + s.PollInterval.String() + "|" + s.Period
}

// AllowedIDs returns every config ID in the scope.
func (s Scope) AllowedIDs() []string {
	return provider.IDs(s.Configs)
}

// Active returns the scope's non-maintenance configs.
func (s Scope) Active() []provider.Config {
	return provider.ActiveConfigs(s.Configs)
}

// Checker is the external provider-probing capability. It returns one
// result per input config, failures encoded as statuses, never an error.
type Checker interface {
	RunChecks(ctx context.Context, configs []provider.Config) []provider.CheckResult
}

// EngineConfig holds the refresh engine's collaborators.
type EngineConfig struct {
	Store      history.Store
	Checker    Checker
	Leadership leadership.Coordinator
	Logger     zerolog.Logger

	// CacheTTL is the fallback entry TTL when a scope has no positive
	// poll interval. Default 2 minutes.
	CacheTTL time.Duration

	// MaxPointsPerProvider caps history points per config on reads.
	MaxPointsPerProvider int
}

// Engine is the snapshot refresh engine. State lives only in its cache;
// the decision machine re-evaluates on every call.
type Engine struct {
	store      history.Store
	checker    Checker
	leadership leadership.Coordinator
	logger     zerolog.Logger
	cache      *cache.Store[history.Snapshot]
	maxPoints  int
}

// NewEngine creates an Engine with a fresh cache instance.
func NewEngine(cfg EngineConfig) *Engine {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 2 * time.Minute
	}
	maxPoints := cfg.MaxPointsPerProvider
	if maxPoints <= 0 {
		maxPoints = history.DefaultMaxPointsPerProvider
	}
	return &Engine{
		store:      cfg.Store,
		checker:    cfg.Checker,
		leadership: cfg.Leadership,
		logger:     cfg.Logger,
		cache:      cache.New[history.Snapshot](ttl),
		maxPoints:  maxPoints,
	}
}

// Snapshot returns the history snapshot for the scope, probing when the
// mode, leadership, and cache freshness allow it. Election and store
// failures degrade to read-only or empty results; they never propagate.
func (e *Engine) Snapshot(ctx context.Context, scope Scope, mode Mode) history.Snapshot {
	if len(scope.Configs) == 0 {
		return history.Snapshot{}
	}

	key := scope.Key()
	ttl := e.cache.TTLFor(scope.PollInterval)

	if mode == ModeNever {
		if entry := e.cache.Fresh(key); entry != nil {
			return entry.Payload
		}
		snap := e.read(ctx, scope)
		e.cache.Set(key, snap, ttl)
		return snap
	}

	// Reads are cheap relative to probing: always take one first so every
	// later branch has something to return.
	snap := e.read(ctx, scope)

	needsRefresh := mode == ModeAlways ||
		(mode == ModeMissing && snap.Empty() && len(scope.Active()) > 0)
	if !needsRefresh {
		return snap
	}

	if err := e.leadership.EnsureLeadership(ctx); err != nil {
		// The read path must never depend on election health.
		e.logger.Warn().Err(err).Str("scope", scope.Name).Msg("leadership election unavailable, serving stored history")
		return snap
	}

	if !e.leadership.IsLeader() {
		// Followers never call the probing capability.
		e.cache.Set(key, snap, ttl)
		return snap
	}

	// A very recent leader refresh already covers this scope: serve it
	// rather than hammering the monitored endpoints.
	if entry := e.cache.Fresh(key); entry != nil {
		return entry.Payload
	}

	refreshed, joined, err := e.cache.Do(ctx, key, func(ctx context.Context) (history.Snapshot, error) {
		return e.refresh(ctx, scope, ttl)
	})
	if err != nil {
		e.logger.Error().Err(err).Str("scope", scope.Name).Msg("snapshot refresh failed, serving stored history")
		return snap
	}
	if joined {
		e.logger.Debug().Str("scope", scope.Name).Msg("joined in-flight snapshot refresh")
	}
	return refreshed
}

// refresh runs one probe batch: check, append, re-read, cache.
func (e *Engine) refresh(ctx context.Context, scope Scope, ttl time.Duration) (history.Snapshot, error) {
	active := scope.Active()
	results := e.checker.RunChecks(ctx, active)

	if err := e.store.Append(ctx, results); err != nil {
		e.logger.Error().Err(err).Str("scope", scope.Name).Msg("failed to append check results")
	}

	snap := e.read(ctx, scope)
	e.cache.Set(scope.Key(), snap, ttl)

	e.logger.Info().
		Str("scope", scope.Name).
		Int("probed", len(results)).
		Msg("snapshot refreshed")
	return snap, nil
}

// read fetches from the store, degrading to an empty snapshot on failure.
func (e *Engine) read(ctx context.Context, scope Scope) history.Snapshot {
	snap, err := e.store.Fetch(ctx, history.FetchParams{
		AllowedIDs:     scope.AllowedIDs(),
		LimitPerConfig: e.maxPoints,
	})
	if err != nil {
		e.logger.Error().Err(err).Str("scope", scope.Name).Msg("history read failed, serving empty snapshot")
		return history.Snapshot{}
	}
	return snap
}

// InvalidateCache clears the engine's snapshot cache.
func (e *Engine) InvalidateCache() {
	e.cache.Clear()
}
