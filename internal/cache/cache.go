// Package cache provides a generic TTL cache with single-flight request
// collapsing. One Store instance is constructed per cache scope (snapshot
// refresh gate, dashboard responses, group responses) so tests can use
// fresh, isolated instances.
package cache

import (
	"context"
	"sync"
	"time"
)

// Entry holds one cached payload together with its freshness bookkeeping.
type Entry[V any] struct {
	Payload     V
	Timestamp   time.Time
	TTL         time.Duration
	Fingerprint string
}

// Expired reports whether the entry is stale at the given instant.
func (e Entry[V]) Expired(now time.Time) bool {
	return now.Sub(e.Timestamp) >= e.TTL
}

// Store is a keyed TTL cache. All methods are safe for concurrent use.
type Store[V any] struct {
	defaultTTL time.Duration

	mu       sync.Mutex
	entries  map[string]*Entry[V]
	inflight map[string]*flight[V]
}

type flight[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// New creates a Store whose entries default to defaultTTL when no
// per-entry TTL can be derived from the scope's poll interval.
func New[V any](defaultTTL time.Duration) *Store[V] {
	return &Store[V]{
		defaultTTL: defaultTTL,
		entries:    make(map[string]*Entry[V]),
		inflight:   make(map[string]*flight[V]),
	}
}

// TTLFor returns the poll interval when it is a finite positive duration,
// otherwise the store's default TTL.
func (s *Store[V]) TTLFor(pollInterval time.Duration) time.Duration {
	if pollInterval > 0 {
		return pollInterval
	}
	return s.defaultTTL
}

// Get returns the entry for key, or nil when absent. Expiry is not checked
// here: callers decide what staleness means for their mode.
func (s *Store[V]) Get(key string) *Entry[V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

// Fresh returns the entry for key only if it is present and within TTL.
func (s *Store[V]) Fresh(key string) *Entry[V] {
	e := s.Get(key)
	if e == nil || e.Expired(time.Now()) {
		return nil
	}
	return e
}

// Set stores payload under key with the given TTL.
func (s *Store[V]) Set(key string, payload V, ttl time.Duration) {
	s.SetWithFingerprint(key, payload, ttl, "")
}

// SetWithFingerprint stores payload together with a content fingerprint.
func (s *Store[V]) SetWithFingerprint(key string, payload V, ttl time.Duration, fingerprint string) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &Entry[V]{
		Payload:     payload,
		Timestamp:   time.Now(),
		TTL:         ttl,
		Fingerprint: fingerprint,
	}
}

// Touch refreshes the timestamp of an existing entry without changing its
// payload. Used when a conditional fetch reports "not modified".
func (s *Store[V]) Touch(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		e.Timestamp = time.Now()
	}
}

// Clear drops all entries. In-flight operations are unaffected.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*Entry[V])
}

// Len returns the number of cached entries.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Do executes fetch under single-flight semantics: if another call for the
// same key is already running, the caller blocks on that call's outcome
// instead of starting a second fetch. joined reports whether this caller
// reused an in-flight operation. The in-flight slot is released on both
// success and failure.
func (s *Store[V]) Do(ctx context.Context, key string, fetch func(context.Context) (V, error)) (value V, joined bool, err error) {
	s.mu.Lock()
	if f, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		select {
		case <-f.done:
			return f.value, true, f.err
		case <-ctx.Done():
			var zero V
			return zero, true, ctx.Err()
		}
	}
	f := &flight[V]{done: make(chan struct{})}
	s.inflight[key] = f
	s.mu.Unlock()

	defer func() {
		f.value = value
		f.err = err
		close(f.done)
		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
	}()

	value, err = fetch(ctx)
	return value, false, err
}

// InFlight reports whether a fetch for key is currently running.
func (s *Store[V]) InFlight(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[key]
	return ok
}
