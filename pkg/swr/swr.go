// Package swr is a stale-while-revalidate HTTP client for the dashboard
// API. It mirrors the server's cache shape: entries keyed by (resource,
// period), fresh hits served without a network call, stale hits served
// immediately while a single deduplicated revalidation runs in the
// background, and conditional requests that turn unchanged payloads into
// cheap freshness extensions.
package swr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aipulse/aipulse/internal/cache"
)

// Result is one cache read or fetch outcome.
type Result struct {
	// Data is the raw JSON payload.
	Data json.RawMessage

	// ETag is the fingerprint the server attached to the payload.
	ETag string

	// Stale reports that Data came from an expired cache entry and a
	// background revalidation is running.
	Stale bool

	// FromCache reports that no network fetch produced this result.
	FromCache bool
}

// RevalidateFunc is notified when a background revalidation finishes.
type RevalidateFunc func(Result, error)

// Options tune a single Get call.
type Options struct {
	// Period selects the trend window ("7d", "15d", "30d"). Part of the
	// cache key, so distinct periods never share entries.
	Period string

	// ForceFresh issues an unconditional fetch, bypassing the cache read.
	ForceFresh bool

	// Revalidate requests a non-blocking background refresh even when the
	// cached entry is still fresh.
	Revalidate bool

	// OnRevalidate is called when a background revalidation completes.
	OnRevalidate RevalidateFunc
}

// ClientConfig holds configuration for the SWR client.
type ClientConfig struct {
	// BaseURL is the dashboard API origin, e.g. "https://api.aipulse.dev".
	BaseURL string

	// TTL is how long fetched entries count as fresh. Default 60s.
	TTL time.Duration

	// HTTPClient overrides the underlying client. Default 15s timeout.
	HTTPClient *http.Client

	Logger zerolog.Logger
}

// Client caches dashboard payloads with stale-while-revalidate reads.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *cache.Store[json.RawMessage]
	logger  zerolog.Logger
}

// NewClient creates an SWR client for the given API origin.
func NewClient(cfg ClientConfig) *Client {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		cache:   cache.New[json.RawMessage](ttl),
		logger:  cfg.Logger,
	}
}

// Get returns the payload for a resource path such as "/api/dashboard" or
// "/api/group/openai".
//
// Fresh entries are returned without touching the network. Expired entries
// are returned immediately with Stale set, while exactly one background
// revalidation refreshes the entry. A miss fetches synchronously, joining
// any prefetch already in flight for the same key.
func (c *Client) Get(ctx context.Context, resource string, opts Options) (Result, error) {
	key := cacheKey(resource, opts.Period)

	if opts.ForceFresh {
		return c.forceFetch(ctx, key, resource, opts.Period)
	}

	if entry := c.cache.Get(key); entry != nil {
		result := Result{
			Data:      entry.Payload,
			ETag:      entry.Fingerprint,
			Stale:     entry.Expired(time.Now()),
			FromCache: true,
		}
		if result.Stale || opts.Revalidate {
			c.revalidate(key, resource, opts.Period, opts.OnRevalidate)
		}
		return result, nil
	}

	// True miss, or a join on an in-flight prefetch.
	data, joined, err := c.cache.Do(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		return c.fetch(ctx, key, resource, opts.Period, true)
	})
	if err != nil {
		return Result{}, err
	}

	etag := ""
	if entry := c.cache.Get(key); entry != nil {
		etag = entry.Fingerprint
	}
	return Result{Data: data, ETag: etag, FromCache: joined}, nil
}

// Prefetch starts fetching a resource in the background so a later Get
// joins the in-flight request instead of missing. No-op when the entry is
// already fresh or a fetch is already running.
func (c *Client) Prefetch(resource, period string) {
	key := cacheKey(resource, period)
	if c.cache.Fresh(key) != nil || c.cache.InFlight(key) {
		return
	}
	c.revalidate(key, resource, period, nil)
}

// Invalidate drops every cached entry.
func (c *Client) Invalidate() {
	c.cache.Clear()
}

func (c *Client) revalidate(key, resource, period string, notify RevalidateFunc) {
	if c.cache.InFlight(key) {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		data, joined, err := c.cache.Do(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
			return c.fetch(ctx, key, resource, period, true)
		})
		if joined {
			// Another goroutine owned the revalidation; it notifies.
			return
		}
		if err != nil {
			c.logger.Debug().Err(err).Str("resource", resource).Msg("background revalidation failed")
			if notify != nil {
				notify(Result{}, err)
			}
			return
		}
		if notify != nil {
			etag := ""
			if entry := c.cache.Get(key); entry != nil {
				etag = entry.Fingerprint
			}
			notify(Result{Data: data, ETag: etag}, nil)
		}
	}()
}

// forceFetch bypasses the cache read and sends no conditional header. A 304
// is not expected here; when one arrives anyway the stale entry is served.
func (c *Client) forceFetch(ctx context.Context, key, resource, period string) (Result, error) {
	data, err := c.fetch(ctx, key, resource, period, false)
	if err != nil {
		if entry := c.cache.Get(key); entry != nil && err == errUnexpectedNotModified {
			return Result{Data: entry.Payload, ETag: entry.Fingerprint, Stale: true, FromCache: true}, nil
		}
		return Result{}, err
	}
	etag := ""
	if entry := c.cache.Get(key); entry != nil {
		etag = entry.Fingerprint
	}
	return Result{Data: data, ETag: etag}, nil
}

var errUnexpectedNotModified = fmt.Errorf("swr: not modified without conditional header")

// fetch performs one network request and updates the cache. When
// conditional is set and an ETag is stored, the request carries
// If-None-Match; a 304 extends the entry's freshness and returns the
// stored payload unchanged.
func (c *Client) fetch(ctx context.Context, key, resource, period string, conditional bool) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(resource, period), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	var cached *cache.Entry[json.RawMessage]
	if conditional {
		if cached = c.cache.Get(key); cached != nil && cached.Fingerprint != "" {
			req.Header.Set("If-None-Match", `"`+cached.Fingerprint+`"`)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if cached == nil {
			return nil, errUnexpectedNotModified
		}
		c.cache.Touch(key)
		return cached.Payload, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		etag := strings.Trim(resp.Header.Get("ETag"), `"`)
		c.cache.SetWithFingerprint(key, body, 0, etag)
		return body, nil
	default:
		return nil, fmt.Errorf("swr: unexpected status %d for %s", resp.StatusCode, resource)
	}
}

func (c *Client) requestURL(resource, period string) string {
	u := c.baseURL + resource
	if period != "" {
		u += "?trendPeriod=" + url.QueryEscape(period)
	}
	return u
}

func cacheKey(resource, period string) string {
	return resource + "|" + period
}
