// Package official resolves each provider's self-reported status from its
// public status-page API. Lookups are synchronous and cache-only; fetches
// happen in the background so timeline enrichment never blocks on an
// upstream status page.
package official

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aipulse/aipulse/internal/cache"
	"github.com/aipulse/aipulse/internal/provider"
)

// statusPages maps provider types to their statuspage summary endpoints.
// Types without a public status page resolve to "".
var statusPages = map[provider.Type]string{
	provider.TypeOpenAI:     "https://status.openai.com/api/v2/status.json",
	provider.TypeAnthropic:  "https://status.anthropic.com/api/v2/status.json",
	provider.TypeMistral:    "https://status.mistral.ai/api/v2/status.json",
	provider.TypeGroq:       "https://groqstatus.com/api/v2/status.json",
	provider.TypeOpenRouter: "https://status.openrouter.ai/api/v2/status.json",
}

type statusPayload struct {
	Status struct {
		Indicator   string `json:"indicator"`
		Description string `json:"description"`
	} `json:"status"`
}

// FetcherConfig tunes the status-page fetcher.
type FetcherConfig struct {
	Logger zerolog.Logger

	// TTL is how long a fetched status stays fresh. Default 3 minutes.
	TTL time.Duration

	// Pages overrides the status-page endpoints, mainly for tests.
	Pages map[provider.Type]string

	// HTTPClient overrides the underlying client. Default 5s timeout.
	HTTPClient *http.Client
}

// Fetcher caches official statuses per provider type.
type Fetcher struct {
	logger zerolog.Logger
	client *http.Client
	pages  map[provider.Type]string
	cache  *cache.Store[string]
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.TTL <= 0 {
		cfg.TTL = 3 * time.Minute
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	if cfg.Pages == nil {
		cfg.Pages = statusPages
	}
	return &Fetcher{
		logger: cfg.Logger,
		client: cfg.HTTPClient,
		pages:  cfg.Pages,
		cache:  cache.New[string](cfg.TTL),
	}
}

// Lookup returns the last known official status for the provider type, or
// "" when none is known. A stale or missing entry triggers one background
// refresh; the current value is returned unchanged.
func (f *Fetcher) Lookup(t provider.Type) string {
	url, ok := f.pages[t]
	if !ok {
		return ""
	}
	key := string(t)

	if entry := f.cache.Fresh(key); entry != nil {
		return entry.Payload
	}

	if !f.cache.InFlight(key) {
		go f.revalidate(key, url)
	}

	// Serve stale while the background refresh runs.
	if entry := f.cache.Get(key); entry != nil {
		return entry.Payload
	}
	return ""
}

func (f *Fetcher) revalidate(key, url string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _, err := f.cache.Do(ctx, key, func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", err
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("status page returned %d", resp.StatusCode)
		}

		var payload statusPayload
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return "", err
		}
		status := payload.Status.Description
		if status == "" {
			status = payload.Status.Indicator
		}
		f.cache.Set(key, status, 0)
		return status, nil
	})
	if err != nil {
		f.logger.Debug().Err(err).Str("provider", key).Msg("official status refresh failed")
	}
}
