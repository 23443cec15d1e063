package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aipulse/aipulse/internal/history"
	"github.com/aipulse/aipulse/internal/provider"
	"github.com/aipulse/aipulse/internal/snapshot"
	"github.com/aipulse/aipulse/internal/stats"
)

type stubConfigs struct {
	configs []provider.Config
	err     error
}

func (s *stubConfigs) Load() ([]provider.Config, error) { return s.configs, s.err }

type stubEngine struct {
	mu    sync.Mutex
	calls int64
	modes []snapshot.Mode
	names []string
	snap  history.Snapshot
	delay time.Duration
}

func (s *stubEngine) Snapshot(_ context.Context, scope snapshot.Scope, mode snapshot.Mode) history.Snapshot {
	atomic.AddInt64(&s.calls, 1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	s.modes = append(s.modes, mode)
	s.names = append(s.names, scope.Name)
	s.mu.Unlock()
	return s.snap
}

func (s *stubEngine) callCount() int64 { return atomic.LoadInt64(&s.calls) }

func aggregatorConfigs() []provider.Config {
	return []provider.Config{
		{ID: "openai-gpt4o", DisplayName: "GPT-4o", Type: provider.TypeOpenAI, Model: "gpt-4o", Group: "OpenAI"},
		{ID: "openai-mini", DisplayName: "GPT-4o mini", Type: provider.TypeOpenAI, Model: "gpt-4o-mini", Group: "OpenAI"},
		{ID: "anthropic-claude", DisplayName: "Claude", Type: provider.TypeAnthropic, Model: "claude-sonnet-4", Group: "Anthropic"},
	}
}

func aggregatorSnap() history.Snapshot {
	return history.Snapshot{
		"openai-gpt4o": {{
			ConfigID:    "openai-gpt4o",
			DisplayName: "GPT-4o",
			Type:        provider.TypeOpenAI,
			Status:      provider.StatusOperational,
			CheckedAt:   "2026-08-26T10:00:00Z",
		}},
		"anthropic-claude": {{
			ConfigID:    "anthropic-claude",
			DisplayName: "Claude",
			Type:        provider.TypeAnthropic,
			Status:      provider.StatusOperational,
			CheckedAt:   "2026-08-26T10:02:00Z",
		}},
	}
}

func newTestAggregator(configs *stubConfigs, engine *stubEngine) *Aggregator {
	return NewAggregator(AggregatorConfig{
		Configs:      configs,
		Engine:       engine,
		Stats:        &stats.StaticProvider{},
		Logger:       zerolog.Nop(),
		PollInterval: time.Minute,
	})
}

func TestDashboardComposesPayload(t *testing.T) {
	engine := &stubEngine{snap: aggregatorSnap()}
	agg := newTestAggregator(&stubConfigs{configs: aggregatorConfigs()}, engine)

	payload, etag, err := agg.Dashboard(context.Background(), Options{TrendPeriod: stats.Period7d})
	require.NoError(t, err)

	assert.Equal(t, stats.Period7d, payload.TrendPeriod)
	assert.Equal(t, 60, payload.PollIntervalSeconds)
	assert.Equal(t, "2026-08-26T10:02:00Z", payload.LastUpdatedAt)
	assert.Len(t, payload.Timelines, 2)
	assert.Equal(t, []GroupInfo{{Name: "OpenAI", ConfigCount: 2}, {Name: "Anthropic", ConfigCount: 1}}, payload.Groups)
	assert.NotEmpty(t, payload.GeneratedAt)
	assert.Len(t, etag, 8)

	// Request path composes with ModeMissing.
	assert.Equal(t, []snapshot.Mode{snapshot.ModeMissing}, engine.modes)
}

func TestDashboardFreshHitSkipsCompose(t *testing.T) {
	engine := &stubEngine{snap: aggregatorSnap()}
	agg := newTestAggregator(&stubConfigs{configs: aggregatorConfigs()}, engine)

	first, etag1, err := agg.Dashboard(context.Background(), Options{TrendPeriod: stats.Period7d})
	require.NoError(t, err)
	second, etag2, err := agg.Dashboard(context.Background(), Options{TrendPeriod: stats.Period7d})
	require.NoError(t, err)

	assert.Equal(t, int64(1), engine.callCount(), "fresh hit must not recompose")
	assert.Equal(t, etag1, etag2, "unchanged data keeps its ETag")
	assert.Equal(t, first.Timelines, second.Timelines)
}

func TestDashboardDistinctPeriodsComposeSeparately(t *testing.T) {
	engine := &stubEngine{snap: aggregatorSnap()}
	agg := newTestAggregator(&stubConfigs{configs: aggregatorConfigs()}, engine)

	_, _, err := agg.Dashboard(context.Background(), Options{TrendPeriod: stats.Period7d})
	require.NoError(t, err)
	_, _, err = agg.Dashboard(context.Background(), Options{TrendPeriod: stats.Period30d})
	require.NoError(t, err)

	assert.Equal(t, int64(2), engine.callCount(), "periods must not share cache entries")
}

func TestDashboardForceRefreshBypassesCacheGate(t *testing.T) {
	engine := &stubEngine{snap: aggregatorSnap()}
	agg := newTestAggregator(&stubConfigs{configs: aggregatorConfigs()}, engine)

	_, _, err := agg.Dashboard(context.Background(), Options{TrendPeriod: stats.Period7d})
	require.NoError(t, err)
	_, _, err = agg.Dashboard(context.Background(), Options{TrendPeriod: stats.Period7d, ForceRefresh: true})
	require.NoError(t, err)

	require.Equal(t, int64(2), engine.callCount())
	assert.Equal(t, snapshot.ModeAlways, engine.modes[1], "forced compose takes the unconditional refresh path")

	// The forced result still lands in the cache for subsequent readers.
	_, _, err = agg.Dashboard(context.Background(), Options{TrendPeriod: stats.Period7d})
	require.NoError(t, err)
	assert.Equal(t, int64(2), engine.callCount())
}

func TestDashboardConcurrentMissesCollapse(t *testing.T) {
	engine := &stubEngine{snap: aggregatorSnap(), delay: 50 * time.Millisecond}
	agg := newTestAggregator(&stubConfigs{configs: aggregatorConfigs()}, engine)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := agg.Dashboard(context.Background(), Options{TrendPeriod: stats.Period7d})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), engine.callCount(), "concurrent composes must collapse to one")
}

func TestDashboardConfigLoadFailure(t *testing.T) {
	agg := newTestAggregator(&stubConfigs{err: errors.New("no providers file")}, &stubEngine{})

	_, _, err := agg.Dashboard(context.Background(), Options{})

	assert.Error(t, err)
}

func TestGroupComposesMemberScope(t *testing.T) {
	engine := &stubEngine{snap: aggregatorSnap()}
	agg := newTestAggregator(&stubConfigs{configs: aggregatorConfigs()}, engine)

	payload, etag, err := agg.Group(context.Background(), "OpenAI", Options{TrendPeriod: stats.Period15d})
	require.NoError(t, err)

	assert.Equal(t, "OpenAI", payload.Group)
	assert.Equal(t, stats.Period15d, payload.TrendPeriod)
	assert.NotEmpty(t, etag)
	assert.Equal(t, []string{"group:OpenAI"}, engine.names)
}

func TestGroupUnknownName(t *testing.T) {
	agg := newTestAggregator(&stubConfigs{configs: aggregatorConfigs()}, &stubEngine{})

	_, _, err := agg.Group(context.Background(), "nope", Options{})

	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestLatestUpdatedSkipsUnparsableTimestamps(t *testing.T) {
	timelines := []snapshot.Timeline{
		{Latest: provider.CheckResult{CheckedAt: "2026-08-26T09:00:00Z"}},
		{Latest: provider.CheckResult{CheckedAt: ""}},
		{Latest: provider.CheckResult{CheckedAt: "not-a-date"}},
		{Latest: provider.CheckResult{CheckedAt: "2026-08-26T10:00:00Z"}},
	}

	assert.Equal(t, "2026-08-26T10:00:00Z", latestUpdated(timelines))
}

func TestLatestUpdatedEmptyWhenNothingParses(t *testing.T) {
	timelines := []snapshot.Timeline{
		{Latest: provider.CheckResult{CheckedAt: ""}},
	}

	assert.Equal(t, "", latestUpdated(timelines))
}
