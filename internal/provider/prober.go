package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aipulse/aipulse/internal/provider/resilience"
)

// ProberConfig holds configuration for the endpoint prober.
type ProberConfig struct {
	Logger zerolog.Logger

	// Client is the resilient HTTP client used for probe requests.
	// A default client is created when nil.
	Client *resilience.Client

	// Concurrency is the number of configs probed in parallel. Default 4.
	Concurrency int

	// Timeout bounds one config's full probe (request + ping). Default 15s.
	Timeout time.Duration

	// DegradedThreshold marks 2xx responses slower than this as degraded.
	// Default 10s.
	DegradedThreshold time.Duration

	// APIKeys maps provider type to the credential sent with probes.
	// Missing keys are fine: an endpoint answering 401 still proves the
	// service is up, and is classified validation_failed.
	APIKeys map[Type]string
}

// Prober issues synthetic chat-completion requests against configured
// endpoints and classifies the outcomes.
type Prober struct {
	logger            zerolog.Logger
	client            *resilience.Client
	concurrency       int
	timeout           time.Duration
	degradedThreshold time.Duration
	apiKeys           map[Type]string
}

// NewProber creates a Prober.
func NewProber(cfg ProberConfig) *Prober {
	if cfg.Client == nil {
		cfg.Client = resilience.NewClient(resilience.ClientConfig{})
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.DegradedThreshold == 0 {
		cfg.DegradedThreshold = 10 * time.Second
	}
	return &Prober{
		logger:            cfg.Logger,
		client:            cfg.Client,
		concurrency:       cfg.Concurrency,
		timeout:           cfg.Timeout,
		degradedThreshold: cfg.DegradedThreshold,
		apiKeys:           cfg.APIKeys,
	}
}

// RunChecks probes every config and returns exactly one result per input,
// in input order. Failures never abort the batch: they are encoded in the
// result's status and message.
func (p *Prober) RunChecks(ctx context.Context, configs []Config) []CheckResult {
	results := make([]CheckResult, len(configs))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < p.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.checkOne(ctx, configs[i])
			}
		}()
	}
	for i := range configs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

func (p *Prober) checkOne(ctx context.Context, cfg Config) CheckResult {
	if cfg.Maintenance {
		return NewCheckResult(cfg, StatusMaintenance, "under maintenance")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// Network-only latency, measured independently of the probe so an
	// application-level slowdown is distinguishable from a slow path.
	pingMS := p.ping(ctx, cfg)

	outcome, err := p.client.Probe(ctx, string(cfg.Type), func(ctx context.Context) (*http.Request, error) {
		return p.buildProbeRequest(ctx, cfg)
	})
	if err != nil {
		p.logger.Warn().
			Str("config_id", cfg.ID).
			Str("type", string(cfg.Type)).
			Err(err).
			Msg("probe request failed")
		result := NewCheckResult(cfg, StatusError, err.Error())
		result.PingMS = pingMS
		return result
	}

	result := NewCheckResult(cfg, classify(outcome, p.degradedThreshold), http.StatusText(outcome.StatusCode))
	result.PingMS = pingMS
	latency := outcome.Latency.Milliseconds()
	result.LatencyMS = &latency
	if result.Status == StatusOperational {
		result.Message = fmt.Sprintf("ok (%dms)", latency)
	}
	return result
}

func classify(outcome resilience.Outcome, degradedThreshold time.Duration) Status {
	switch {
	case outcome.StatusCode >= 200 && outcome.StatusCode < 300:
		if outcome.Latency >= degradedThreshold {
			return StatusDegraded
		}
		return StatusOperational
	case outcome.StatusCode == http.StatusUnauthorized || outcome.StatusCode == http.StatusForbidden:
		return StatusValidationFailed
	default:
		return StatusFailed
	}
}

// buildProbeRequest constructs a minimal chat-completion request for the
// config's provider type. The switch is exhaustive over Type.
func (p *Prober) buildProbeRequest(ctx context.Context, cfg Config) (*http.Request, error) {
	endpoint := cfg.EffectiveEndpoint()
	key := p.apiKeys[cfg.Type]

	var body map[string]any
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")

	switch cfg.Type {
	case TypeAnthropic:
		body = map[string]any{
			"model":      cfg.Model,
			"max_tokens": 1,
			"messages":   []map[string]string{{"role": "user", "content": "ping"}},
		}
		if key != "" {
			headers.Set("x-api-key", key)
		}
		headers.Set("anthropic-version", "2023-06-01")
	case TypeGemini:
		endpoint = fmt.Sprintf("%s/%s:generateContent", endpoint, cfg.Model)
		body = map[string]any{
			"contents": []map[string]any{
				{"parts": []map[string]string{{"text": "ping"}}},
			},
			"generationConfig": map[string]any{"maxOutputTokens": 1},
		}
		if key != "" {
			headers.Set("x-goog-api-key", key)
		}
	case TypeOpenAI, TypeMistral, TypeGroq, TypeOpenRouter:
		body = map[string]any{
			"model":      cfg.Model,
			"max_tokens": 1,
			"messages":   []map[string]string{{"role": "user", "content": "ping"}},
		}
		if key != "" {
			headers.Set("Authorization", "Bearer "+key)
		}
	default:
		return nil, fmt.Errorf("unsupported provider type %q", cfg.Type)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header = headers
	return req, nil
}

// ping measures raw reachability of the endpoint with a HEAD request,
// outside the breaker so an open circuit still yields a network reading.
func (p *Prober) ping(ctx context.Context, cfg Config) *int64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, cfg.EffectiveEndpoint(), nil)
	if err != nil {
		return nil
	}
	client := &http.Client{Timeout: 5 * time.Second}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil
	}
	_ = resp.Body.Close()
	ms := time.Since(start).Milliseconds()
	return &ms
}
