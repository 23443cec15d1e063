package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aipulse/aipulse/internal/provider"
)

func resultAt(id string, status provider.Status, checkedAt string) provider.CheckResult {
	return provider.CheckResult{
		ConfigID:  id,
		Status:    status,
		CheckedAt: checkedAt,
	}
}

func TestMemoryStoreFetchFiltersAndOrders(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, []provider.CheckResult{
		resultAt("c-1", provider.StatusOperational, "2026-08-26T10:00:00Z"),
		resultAt("c-1", provider.StatusFailed, "2026-08-26T10:01:00Z"),
		resultAt("c-2", provider.StatusOperational, "2026-08-26T10:00:30Z"),
	}))

	snap, err := store.Fetch(ctx, FetchParams{AllowedIDs: []string{"c-1"}})
	require.NoError(t, err)

	require.Len(t, snap, 1)
	require.Len(t, snap["c-1"], 2)
	assert.Equal(t, provider.StatusFailed, snap["c-1"][0].Status, "newest result first")
	assert.NotContains(t, snap, "c-2")
}

func TestMemoryStoreFetchNoAllowedIDs(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, []provider.CheckResult{
		resultAt("c-1", provider.StatusOperational, "2026-08-26T10:00:00Z"),
	}))

	snap, err := store.Fetch(ctx, FetchParams{})
	require.NoError(t, err)

	assert.True(t, snap.Empty())
}

func TestMemoryStoreFetchCapsPerConfig(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	var batch []provider.CheckResult
	for i := 0; i < 10; i++ {
		batch = append(batch, resultAt("c-1", provider.StatusOperational,
			fmt.Sprintf("2026-08-26T10:%02d:00Z", i)))
	}
	require.NoError(t, store.Append(ctx, batch))

	snap, err := store.Fetch(ctx, FetchParams{AllowedIDs: []string{"c-1"}, LimitPerConfig: 3})
	require.NoError(t, err)

	require.Len(t, snap["c-1"], 3)
	assert.Equal(t, "2026-08-26T10:09:00Z", snap["c-1"][0].CheckedAt)
	assert.Equal(t, "2026-08-26T10:07:00Z", snap["c-1"][2].CheckedAt, "cap keeps the newest points")
}

func TestMemoryStorePruneDropsOldResults(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	old := time.Now().UTC().AddDate(0, 0, -10).Format(time.RFC3339)
	recent := time.Now().UTC().Format(time.RFC3339)
	require.NoError(t, store.Append(ctx, []provider.CheckResult{
		resultAt("c-1", provider.StatusOperational, old),
		resultAt("c-1", provider.StatusOperational, recent),
	}))

	require.NoError(t, store.Prune(ctx, 7))

	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreAppendPrunesWithRetention(t *testing.T) {
	store := NewMemoryStore(7)
	ctx := context.Background()

	old := time.Now().UTC().AddDate(0, 0, -10).Format(time.RFC3339)
	require.NoError(t, store.Append(ctx, []provider.CheckResult{
		resultAt("c-1", provider.StatusOperational, old),
	}))

	assert.Equal(t, 0, store.Len(), "append prunes beyond retention")
}

func TestSnapshotEmpty(t *testing.T) {
	assert.True(t, Snapshot{}.Empty())
	assert.True(t, Snapshot{"c-1": {}}.Empty())
	assert.False(t, Snapshot{"c-1": {resultAt("c-1", provider.StatusOperational, "")}}.Empty())
}

func TestCapNewestFirstStableForEqualTimestamps(t *testing.T) {
	ts := "2026-08-26T10:00:00Z"
	items := []provider.CheckResult{
		{ConfigID: "c-1", Message: "first", CheckedAt: ts},
		{ConfigID: "c-1", Message: "second", CheckedAt: ts},
	}

	capped := capNewestFirst(items, 10)

	assert.Equal(t, "first", capped[0].Message)
	assert.Equal(t, "second", capped[1].Message)
}
