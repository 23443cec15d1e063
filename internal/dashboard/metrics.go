package dashboard

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/aipulse/aipulse/internal/dashboard"

// Metrics counts aggregator cache outcomes. An in-flight join is neither a
// hit nor a miss: the caller paid for a compose it did not start.
type Metrics struct {
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
	inflightJoins metric.Int64Counter
}

// NewMetrics creates the aggregator metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	hits, err := meter.Int64Counter(
		"dashboard.cache.hits",
		metric.WithDescription("Aggregator responses served from the fresh cache"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return nil, err
	}
	misses, err := meter.Int64Counter(
		"dashboard.cache.misses",
		metric.WithDescription("Aggregator responses that triggered a compose"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return nil, err
	}
	joins, err := meter.Int64Counter(
		"dashboard.cache.inflight_joins",
		metric.WithDescription("Aggregator responses that joined an in-flight compose"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{cacheHits: hits, cacheMisses: misses, inflightJoins: joins}, nil
}

func (m *Metrics) hit(ctx context.Context, scope string) {
	if m == nil {
		return
	}
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", scope)))
}

func (m *Metrics) miss(ctx context.Context, scope string) {
	if m == nil {
		return
	}
	m.cacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", scope)))
}

func (m *Metrics) inflight(ctx context.Context, scope string) {
	if m == nil {
		return
	}
	m.inflightJoins.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", scope)))
}
