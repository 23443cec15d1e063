package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aipulse/aipulse/internal/cache"
	"github.com/aipulse/aipulse/internal/history"
	"github.com/aipulse/aipulse/internal/provider"
	"github.com/aipulse/aipulse/internal/snapshot"
	"github.com/aipulse/aipulse/internal/stats"
)

// ErrGroupNotFound is returned when no config belongs to a requested group.
var ErrGroupNotFound = errors.New("provider group not found")

// ConfigSource supplies the current provider configs. It is independently
// cached (see provider.Loader).
type ConfigSource interface {
	Load() ([]provider.Config, error)
}

// Snapshotter is the refresh engine capability the aggregator consumes.
type Snapshotter interface {
	Snapshot(ctx context.Context, scope snapshot.Scope, mode snapshot.Mode) history.Snapshot
}

// AggregatorConfig holds the aggregator's collaborators and tuning.
type AggregatorConfig struct {
	Configs  ConfigSource
	Engine   Snapshotter
	Stats    stats.Provider
	Official snapshot.OfficialStatusFunc
	Logger   zerolog.Logger
	Metrics  *Metrics

	// PollInterval drives response cache TTL and the Cache-Control header.
	PollInterval time.Duration

	// CacheTTL is the fallback response cache TTL when PollInterval is
	// not positive. Default 5 minutes.
	CacheTTL time.Duration
}

// Aggregator composes dashboard and group payloads. Each payload kind owns
// an independent response cache with its own fingerprints and in-flight
// compose dedup; raw history caching lives below, in the refresh engine.
type Aggregator struct {
	configs      ConfigSource
	engine       Snapshotter
	stats        stats.Provider
	official     snapshot.OfficialStatusFunc
	logger       zerolog.Logger
	metrics      *Metrics
	pollInterval time.Duration

	dashCache  *cache.Store[*Dashboard]
	groupCache *cache.Store[*GroupDashboard]
}

// NewAggregator creates an Aggregator with fresh cache instances.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &Aggregator{
		configs:      cfg.Configs,
		engine:       cfg.Engine,
		stats:        cfg.Stats,
		official:     cfg.Official,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		pollInterval: cfg.PollInterval,
		dashCache:    cache.New[*Dashboard](ttl),
		groupCache:   cache.New[*GroupDashboard](ttl),
	}
}

// Options select the trend window and cache behavior of one request.
type Options struct {
	TrendPeriod  stats.Period
	ForceRefresh bool
}

// PollInterval returns the configured poll interval, for cache headers.
func (a *Aggregator) PollInterval() time.Duration {
	return a.pollInterval
}

// Dashboard returns the whole-dashboard payload and its ETag.
func (a *Aggregator) Dashboard(ctx context.Context, opts Options) (*Dashboard, string, error) {
	configs, err := a.configs.Load()
	if err != nil {
		return nil, "", fmt.Errorf("load provider configs: %w", err)
	}

	scope := snapshot.Scope{
		Name:         "dashboard",
		Configs:      configs,
		PollInterval: a.pollInterval,
		Period:       string(opts.TrendPeriod),
	}
	key := scope.Key()
	ttl := a.dashCache.TTLFor(a.pollInterval)

	if opts.ForceRefresh {
		// Composition bypasses the read-side cache gate entirely, but the
		// result still lands in the cache for subsequent readers.
		a.metrics.miss(ctx, scope.Name)
		payload := a.composeDashboard(ctx, scope, configs, opts, snapshot.ModeAlways, ttl)
		return payload, Fingerprint(payload), nil
	}

	if entry := a.dashCache.Fresh(key); entry != nil {
		a.metrics.hit(ctx, scope.Name)
		cp := *entry.Payload
		cp.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
		return &cp, entry.Fingerprint, nil
	}

	payload, joined, err := a.dashCache.Do(ctx, key, func(ctx context.Context) (*Dashboard, error) {
		return a.composeDashboard(ctx, scope, configs, opts, snapshot.ModeMissing, ttl), nil
	})
	if err != nil {
		return nil, "", err
	}
	if joined {
		a.metrics.inflight(ctx, scope.Name)
	} else {
		a.metrics.miss(ctx, scope.Name)
	}
	return payload, Fingerprint(payload), nil
}

// Group returns one group's payload and its ETag.
func (a *Aggregator) Group(ctx context.Context, group string, opts Options) (*GroupDashboard, string, error) {
	configs, err := a.configs.Load()
	if err != nil {
		return nil, "", fmt.Errorf("load provider configs: %w", err)
	}

	var members []provider.Config
	for _, c := range configs {
		if c.Group == group {
			members = append(members, c)
		}
	}
	if len(members) == 0 {
		return nil, "", ErrGroupNotFound
	}

	scope := snapshot.Scope{
		Name:         "group:" + group,
		Configs:      members,
		PollInterval: a.pollInterval,
		Period:       string(opts.TrendPeriod),
	}
	key := scope.Key()
	ttl := a.groupCache.TTLFor(a.pollInterval)

	if opts.ForceRefresh {
		a.metrics.miss(ctx, scope.Name)
		payload := a.composeGroup(ctx, scope, group, opts, snapshot.ModeAlways, ttl)
		return payload, Fingerprint(payload), nil
	}

	if entry := a.groupCache.Fresh(key); entry != nil {
		a.metrics.hit(ctx, scope.Name)
		cp := *entry.Payload
		cp.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
		return &cp, entry.Fingerprint, nil
	}

	payload, joined, err := a.groupCache.Do(ctx, key, func(ctx context.Context) (*GroupDashboard, error) {
		return a.composeGroup(ctx, scope, group, opts, snapshot.ModeMissing, ttl), nil
	})
	if err != nil {
		return nil, "", err
	}
	if joined {
		a.metrics.inflight(ctx, scope.Name)
	} else {
		a.metrics.miss(ctx, scope.Name)
	}
	return payload, Fingerprint(payload), nil
}

func (a *Aggregator) composeDashboard(ctx context.Context, scope snapshot.Scope, configs []provider.Config, opts Options, mode snapshot.Mode, ttl time.Duration) *Dashboard {
	snap := a.engine.Snapshot(ctx, scope, mode)
	timelines := snapshot.BuildTimelines(snap, provider.MaintenanceConfigs(scope.Configs), a.official)

	payload := &Dashboard{
		GeneratedAt:         time.Now().UTC().Format(time.RFC3339),
		LastUpdatedAt:       latestUpdated(timelines),
		TrendPeriod:         opts.TrendPeriod,
		PollIntervalSeconds: int(a.pollInterval.Seconds()),
		Timelines:           timelines,
		Availability:        a.stats.Availability(ctx, scope.AllowedIDs(), opts.TrendPeriod),
		Groups:              groupInfos(configs),
	}

	a.dashCache.SetWithFingerprint(scope.Key(), payload, ttl, Fingerprint(payload))
	return payload
}

func (a *Aggregator) composeGroup(ctx context.Context, scope snapshot.Scope, group string, opts Options, mode snapshot.Mode, ttl time.Duration) *GroupDashboard {
	snap := a.engine.Snapshot(ctx, scope, mode)
	timelines := snapshot.BuildTimelines(snap, provider.MaintenanceConfigs(scope.Configs), a.official)

	payload := &GroupDashboard{
		Group:               group,
		GeneratedAt:         time.Now().UTC().Format(time.RFC3339),
		LastUpdatedAt:       latestUpdated(timelines),
		TrendPeriod:         opts.TrendPeriod,
		PollIntervalSeconds: int(a.pollInterval.Seconds()),
		Timelines:           timelines,
		Availability:        a.stats.Availability(ctx, scope.AllowedIDs(), opts.TrendPeriod),
	}

	a.groupCache.SetWithFingerprint(scope.Key(), payload, ttl, Fingerprint(payload))
	return payload
}

// latestUpdated returns the max latest.checkedAt across timelines,
// skipping entries whose timestamp does not parse (e.g. maintenance
// placeholders).
func latestUpdated(timelines []snapshot.Timeline) string {
	var max time.Time
	for _, tl := range timelines {
		ts, err := time.Parse(time.RFC3339, tl.Latest.CheckedAt)
		if err != nil {
			continue
		}
		if ts.After(max) {
			max = ts
		}
	}
	if max.IsZero() {
		return ""
	}
	return max.UTC().Format(time.RFC3339)
}

// groupInfos derives group metadata from the config set, in first-seen
// order for deterministic payloads.
func groupInfos(configs []provider.Config) []GroupInfo {
	counts := map[string]int{}
	var order []string
	for _, c := range configs {
		if c.Group == "" {
			continue
		}
		if _, seen := counts[c.Group]; !seen {
			order = append(order, c.Group)
		}
		counts[c.Group]++
	}
	infos := make([]GroupInfo, 0, len(order))
	for _, name := range order {
		infos = append(infos, GroupInfo{Name: name, ConfigCount: counts[name]})
	}
	return infos
}
