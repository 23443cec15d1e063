// Package stats computes availability statistics over the recorded probe
// history. Failures degrade to empty results: a dashboard without trend
// numbers beats no dashboard.
package stats

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Period is a trend window selector.
type Period string

// Supported trend periods.
const (
	Period7d  Period = "7d"
	Period15d Period = "15d"
	Period30d Period = "30d"
)

// DefaultPeriod is used when a request omits or mangles trendPeriod.
const DefaultPeriod = Period7d

// ParsePeriod normalizes a raw query value to a supported period.
func ParsePeriod(raw string) Period {
	switch Period(raw) {
	case Period7d, Period15d, Period30d:
		return Period(raw)
	}
	return DefaultPeriod
}

// Days returns the window length in days.
func (p Period) Days() int {
	switch p {
	case Period15d:
		return 15
	case Period30d:
		return 30
	default:
		return 7
	}
}

// Availability summarizes one config's uptime over a period.
type Availability struct {
	Percentage  float64 `json:"percentage"`
	Total       int     `json:"total"`
	Operational int     `json:"operational"`
}

// Provider produces per-config availability for a trend period.
type Provider interface {
	Availability(ctx context.Context, configIDs []string, period Period) map[string]Availability
}

// PostgresProvider computes availability with one grouped count query.
type PostgresProvider struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresProvider creates a PostgresProvider.
func NewPostgresProvider(pool *pgxpool.Pool, logger zerolog.Logger) *PostgresProvider {
	return &PostgresProvider{pool: pool, logger: logger}
}

// Availability implements Provider. Query failures are logged and yield an
// empty map.
func (p *PostgresProvider) Availability(ctx context.Context, configIDs []string, period Period) map[string]Availability {
	out := make(map[string]Availability, len(configIDs))
	if len(configIDs) == 0 {
		return out
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -period.Days())
	query := `
		SELECT config_id,
		       count(*),
		       count(*) FILTER (WHERE status IN ('operational', 'degraded'))
		FROM check_results
		WHERE config_id = ANY($1) AND checked_at >= $2
		GROUP BY config_id
	`
	rows, err := p.pool.Query(ctx, query, configIDs, cutoff)
	if err != nil {
		p.logger.Warn().Err(err).Str("period", string(period)).Msg("availability query failed")
		return out
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var total, operational int
		if err := rows.Scan(&id, &total, &operational); err != nil {
			p.logger.Warn().Err(err).Msg("availability row scan failed")
			return map[string]Availability{}
		}
		a := Availability{Total: total, Operational: operational}
		if total > 0 {
			a.Percentage = float64(operational) / float64(total) * 100
		}
		out[id] = a
	}
	if err := rows.Err(); err != nil {
		p.logger.Warn().Err(err).Msg("availability rows failed")
		return map[string]Availability{}
	}
	return out
}

// StaticProvider returns fixed availability data, for tests.
type StaticProvider struct {
	Data map[string]Availability
}

// Availability implements Provider.
func (s *StaticProvider) Availability(context.Context, []string, Period) map[string]Availability {
	if s.Data == nil {
		return map[string]Availability{}
	}
	return s.Data
}
