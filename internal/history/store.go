// Package history persists probe results and rebuilds per-provider
// time-series snapshots from them.
package history

import (
	"context"
	"sort"

	"github.com/aipulse/aipulse/internal/provider"
)

// DefaultMaxPointsPerProvider caps the number of results returned per
// config when a fetch does not specify its own limit.
const DefaultMaxPointsPerProvider = 50

// Snapshot maps a config ID to its results, newest first, capped at the
// fetch limit. Snapshots are rebuilt on every read and never mutated.
type Snapshot map[string][]provider.CheckResult

// Empty reports whether the snapshot holds no results at all.
func (s Snapshot) Empty() bool {
	for _, items := range s {
		if len(items) > 0 {
			return false
		}
	}
	return true
}

// FetchParams scopes a snapshot read.
type FetchParams struct {
	// AllowedIDs restricts the snapshot to these config IDs. Empty means
	// no configs, which yields an empty snapshot.
	AllowedIDs []string

	// LimitPerConfig caps points per config. Zero or negative selects
	// DefaultMaxPointsPerProvider.
	LimitPerConfig int
}

func (p FetchParams) limit() int {
	if p.LimitPerConfig <= 0 {
		return DefaultMaxPointsPerProvider
	}
	return p.LimitPerConfig
}

// Store is the durable check-result store.
type Store interface {
	// Fetch rebuilds a snapshot for the allowed configs.
	Fetch(ctx context.Context, params FetchParams) (Snapshot, error)

	// Append records a batch of results. Implementations also prune
	// results older than their retention window as a side effect.
	Append(ctx context.Context, results []provider.CheckResult) error

	// Prune deletes results older than retentionDays.
	Prune(ctx context.Context, retentionDays int) error
}

// capNewestFirst sorts items newest first by CheckedAt (falling back to the
// stored order for equal or unparsable timestamps, sort is stable) and caps
// them to limit. Shared by the in-memory store and the fallback read path.
func capNewestFirst(items []provider.CheckResult, limit int) []provider.CheckResult {
	sorted := append([]provider.CheckResult(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CheckedAt > sorted[j].CheckedAt
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
