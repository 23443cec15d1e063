package resilience

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned when the named breaker rejects the call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ClientConfig tunes the resilient probe client.
type ClientConfig struct {
	// Timeout bounds each individual HTTP attempt. Default 10s.
	Timeout time.Duration

	// MaxRetries bounds retry attempts on transport errors. Default 2.
	MaxRetries uint64

	// InitialInterval is the first retry backoff delay. Default 100ms.
	InitialInterval time.Duration

	// MaxInterval caps the retry backoff delay. Default 2s.
	MaxInterval time.Duration

	// Breaker configures breakers created per call name.
	Breaker BreakerConfig

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client executes probe requests through a per-name circuit breaker with
// bounded retries on transport errors. HTTP error statuses are returned to
// the caller as data, not errors: the prober classifies them itself. Only
// transport-level failures count against the breaker.
type Client struct {
	httpClient *http.Client
	config     ClientConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[int]
}

// NewClient creates a resilient probe client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.Transport != nil {
		httpClient.Transport = cfg.Transport
	}
	return &Client{
		httpClient: httpClient,
		config:     cfg,
		breakers:   make(map[string]*gobreaker.CircuitBreaker[int]),
	}
}

// Outcome is the observable result of one probe attempt.
type Outcome struct {
	StatusCode int
	Latency    time.Duration
}

// Probe sends the request built by build through the breaker registered
// under name. Latency covers the final attempt only, so retries do not
// inflate the recorded measurement. The response body is drained and closed.
func (c *Client) Probe(ctx context.Context, name string, build func(ctx context.Context) (*http.Request, error)) (Outcome, error) {
	breaker := c.breakerFor(name)

	var outcome Outcome

	attempt := func() error {
		status, err := breaker.Execute(func() (int, error) {
			req, err := build(ctx)
			if err != nil {
				return 0, backoff.Permanent(err)
			}
			start := time.Now()
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return 0, err
			}
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
			_ = resp.Body.Close()
			outcome.Latency = time.Since(start)
			return resp.StatusCode, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			return err
		}
		outcome.StatusCode = status
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0

	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx))
	if err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}

// State returns the breaker state for name, creating the breaker if needed.
func (c *Client) State(name string) gobreaker.State {
	return c.breakerFor(name).State()
}

func (c *Client) breakerFor(name string) *gobreaker.CircuitBreaker[int] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.breakers[name]; ok {
		return b
	}
	cfg := c.config.Breaker
	cfg.Name = name
	b := newBreaker(cfg)
	c.breakers[name] = b
	return b
}
