package history

import (
	"context"
	"sync"
	"time"

	"github.com/aipulse/aipulse/internal/provider"
)

// MemoryStore is an in-memory Store used in tests and local development.
type MemoryStore struct {
	retentionDays int

	mu      sync.Mutex
	results []provider.CheckResult
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(retentionDays int) *MemoryStore {
	return &MemoryStore{retentionDays: retentionDays}
}

// Fetch rebuilds a snapshot over the in-memory results.
func (s *MemoryStore) Fetch(_ context.Context, params FetchParams) (Snapshot, error) {
	if len(params.AllowedIDs) == 0 {
		return Snapshot{}, nil
	}
	allowed := make(map[string]struct{}, len(params.AllowedIDs))
	for _, id := range params.AllowedIDs {
		allowed[id] = struct{}{}
	}

	s.mu.Lock()
	byConfig := map[string][]provider.CheckResult{}
	for _, r := range s.results {
		if _, ok := allowed[r.ConfigID]; ok {
			byConfig[r.ConfigID] = append(byConfig[r.ConfigID], r)
		}
	}
	s.mu.Unlock()

	snap := Snapshot{}
	limit := params.limit()
	for id, items := range byConfig {
		snap[id] = capNewestFirst(items, limit)
	}
	return snap, nil
}

// Append records the batch and prunes in place.
func (s *MemoryStore) Append(ctx context.Context, results []provider.CheckResult) error {
	s.mu.Lock()
	s.results = append(s.results, results...)
	s.mu.Unlock()
	return s.Prune(ctx, s.retentionDays)
}

// Prune drops results older than retentionDays.
func (s *MemoryStore) Prune(_ context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(time.RFC3339)

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.results[:0]
	for _, r := range s.results {
		if r.CheckedAt >= cutoff {
			kept = append(kept, r)
		}
	}
	s.results = kept
	return nil
}

// Len returns the number of stored results.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}
