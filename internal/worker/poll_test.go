package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aipulse/aipulse/internal/history"
	"github.com/aipulse/aipulse/internal/provider"
	"github.com/aipulse/aipulse/internal/snapshot"
)

type fakeRefresher struct {
	mu     sync.Mutex
	scopes []snapshot.Scope
	modes  []snapshot.Mode
	snap   history.Snapshot
}

func (f *fakeRefresher) Snapshot(_ context.Context, scope snapshot.Scope, mode snapshot.Mode) history.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scopes = append(f.scopes, scope)
	f.modes = append(f.modes, mode)
	return f.snap
}

type fakeConfigSource struct {
	configs []provider.Config
	err     error
}

func (f *fakeConfigSource) Load() ([]provider.Config, error) {
	return f.configs, f.err
}

type fakePruner struct {
	calls int
	days  int
	err   error
}

func (f *fakePruner) Prune(_ context.Context, retentionDays int) error {
	f.calls++
	f.days = retentionDays
	return f.err
}

func testConfigs() []provider.Config {
	return []provider.Config{
		{ID: "openai-gpt4o", DisplayName: "GPT-4o", Type: provider.TypeOpenAI, Model: "gpt-4o"},
		{ID: "anthropic-claude", DisplayName: "Claude", Type: provider.TypeAnthropic, Model: "claude-sonnet-4"},
	}
}

func TestPollJobRunOnce(t *testing.T) {
	refresher := &fakeRefresher{snap: history.Snapshot{"openai-gpt4o": nil}}
	source := &fakeConfigSource{configs: testConfigs()}

	job := NewPollJob(PollJobConfig{
		Config:  PollConfig{PollInterval: time.Minute, RetentionDays: 30},
		Logger:  zerolog.Nop(),
		Engine:  refresher,
		Configs: source,
	})

	job.RunOnce(context.Background())

	require.Len(t, refresher.scopes, 1)
	assert.Equal(t, "dashboard", refresher.scopes[0].Name)
	assert.Len(t, refresher.scopes[0].Configs, 2)
	assert.Equal(t, time.Minute, refresher.scopes[0].PollInterval)
	assert.Equal(t, snapshot.ModeAlways, refresher.modes[0])

	metrics := job.GetMetrics()
	assert.Equal(t, int64(1), metrics.TotalRuns)
	assert.Equal(t, int64(0), metrics.ConfigLoadFails)
	assert.False(t, metrics.LastRunAt.IsZero())
}

func TestPollJobRunOnceConfigLoadFailure(t *testing.T) {
	refresher := &fakeRefresher{}
	source := &fakeConfigSource{err: errors.New("yaml parse error")}

	job := NewPollJob(PollJobConfig{
		Config:  PollConfig{PollInterval: time.Minute},
		Logger:  zerolog.Nop(),
		Engine:  refresher,
		Configs: source,
	})

	job.RunOnce(context.Background())

	assert.Empty(t, refresher.scopes, "must not probe without configs")

	metrics := job.GetMetrics()
	assert.Equal(t, int64(1), metrics.TotalRuns)
	assert.Equal(t, int64(1), metrics.ConfigLoadFails)
}

func TestPollJobRunFiresImmediately(t *testing.T) {
	refresher := &fakeRefresher{}
	source := &fakeConfigSource{configs: testConfigs()}

	job := NewPollJob(PollJobConfig{
		Config:  PollConfig{PollInterval: time.Hour},
		Logger:  zerolog.Nop(),
		Engine:  refresher,
		Configs: source,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- job.Run(ctx) }()

	assert.Eventually(t, func() bool {
		refresher.mu.Lock()
		defer refresher.mu.Unlock()
		return len(refresher.scopes) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPollJobPrune(t *testing.T) {
	pruner := &fakePruner{}
	job := NewPollJob(PollJobConfig{
		Config:  PollConfig{PollInterval: time.Minute, RetentionDays: 14},
		Logger:  zerolog.Nop(),
		Engine:  &fakeRefresher{},
		Configs: &fakeConfigSource{},
		Pruner:  pruner,
	})

	job.prune(context.Background())

	assert.Equal(t, 1, pruner.calls)
	assert.Equal(t, 14, pruner.days)

	metrics := job.GetMetrics()
	assert.Equal(t, int64(1), metrics.PruneRuns)
	assert.Equal(t, int64(0), metrics.PruneFails)
}

func TestPollJobPruneFailure(t *testing.T) {
	pruner := &fakePruner{err: errors.New("db down")}
	job := NewPollJob(PollJobConfig{
		Config:  PollConfig{PollInterval: time.Minute, RetentionDays: 14},
		Logger:  zerolog.Nop(),
		Engine:  &fakeRefresher{},
		Configs: &fakeConfigSource{},
		Pruner:  pruner,
	})

	job.prune(context.Background())

	metrics := job.GetMetrics()
	assert.Equal(t, int64(1), metrics.PruneRuns)
	assert.Equal(t, int64(1), metrics.PruneFails)
}
