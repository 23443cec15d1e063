package official

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aipulse/aipulse/internal/provider"
)

func TestLookupUnknownProviderType(t *testing.T) {
	f := NewFetcher(FetcherConfig{Logger: zerolog.Nop()})

	// Gemini has no public statuspage endpoint configured.
	assert.Empty(t, f.Lookup(provider.TypeGemini))
}

func TestLookupFetchesInBackground(t *testing.T) {
	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.Write([]byte(`{"status":{"indicator":"none","description":"All Systems Operational"}}`))
	}))
	defer ts.Close()

	f := NewFetcher(FetcherConfig{
		Logger: zerolog.Nop(),
		TTL:    time.Minute,
		Pages:  map[provider.Type]string{provider.TypeOpenAI: ts.URL},
	})

	// First lookup misses and kicks off the fetch.
	assert.Empty(t, f.Lookup(provider.TypeOpenAI))

	assert.Eventually(t, func() bool {
		return f.Lookup(provider.TypeOpenAI) == "All Systems Operational"
	}, 2*time.Second, 10*time.Millisecond)

	// Fresh entries are served from cache.
	f.Lookup(provider.TypeOpenAI)
	assert.Equal(t, int32(1), requests.Load())
}

func TestLookupFallsBackToIndicator(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status":{"indicator":"major"}}`))
	}))
	defer ts.Close()

	f := NewFetcher(FetcherConfig{
		Logger: zerolog.Nop(),
		TTL:    time.Minute,
		Pages:  map[provider.Type]string{provider.TypeAnthropic: ts.URL},
	})

	f.Lookup(provider.TypeAnthropic)
	assert.Eventually(t, func() bool {
		return f.Lookup(provider.TypeAnthropic) == "major"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLookupServesStaleWhileRefreshFails(t *testing.T) {
	healthy := atomic.Bool{}
	healthy.Store(true)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"status":{"description":"operational"}}`))
	}))
	defer ts.Close()

	f := NewFetcher(FetcherConfig{
		Logger: zerolog.Nop(),
		TTL:    20 * time.Millisecond,
		Pages:  map[provider.Type]string{provider.TypeMistral: ts.URL},
	})

	f.Lookup(provider.TypeMistral)
	assert.Eventually(t, func() bool {
		return f.Lookup(provider.TypeMistral) == "operational"
	}, 2*time.Second, 5*time.Millisecond)

	healthy.Store(false)
	time.Sleep(30 * time.Millisecond)

	// The entry is stale and the refresh now fails, but the last known
	// status keeps being served.
	assert.Equal(t, "operational", f.Lookup(provider.TypeMistral))
}
