package history

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/aipulse/aipulse/internal/provider"
)

const schema = `
CREATE TABLE IF NOT EXISTS check_results (
	id            BIGSERIAL PRIMARY KEY,
	config_id     TEXT NOT NULL,
	display_name  TEXT NOT NULL,
	provider_type TEXT NOT NULL,
	endpoint      TEXT NOT NULL,
	model         TEXT NOT NULL,
	status        TEXT NOT NULL,
	latency_ms    BIGINT,
	ping_ms       BIGINT,
	checked_at    TIMESTAMPTZ NOT NULL,
	message       TEXT NOT NULL DEFAULT '',
	group_name    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_check_results_config_checked
	ON check_results (config_id, checked_at DESC);
`

// PostgresStore is the pgx-backed Store implementation.
type PostgresStore struct {
	pool          *pgxpool.Pool
	logger        zerolog.Logger
	retentionDays int

	// optimizedUnavailable flips when the window-function query path
	// fails, so later reads go straight to the fallback scan.
	optimizedUnavailable atomic.Bool
}

// NewPostgresStore creates a PostgresStore. retentionDays bounds how much
// history Append keeps around.
func NewPostgresStore(pool *pgxpool.Pool, logger zerolog.Logger, retentionDays int) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger, retentionDays: retentionDays}
}

// EnsureSchema creates the check_results table and index if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure check_results schema: %w", err)
	}
	return nil
}

// Fetch rebuilds the snapshot via a bounded-sampling window query, falling
// back to a raw scan with an in-process cap when that path is unavailable.
// Both paths produce per-config sequences newest first with the same cap.
func (s *PostgresStore) Fetch(ctx context.Context, params FetchParams) (Snapshot, error) {
	if len(params.AllowedIDs) == 0 {
		return Snapshot{}, nil
	}

	if !s.optimizedUnavailable.Load() {
		snap, err := s.fetchSampled(ctx, params)
		if err == nil {
			return snap, nil
		}
		s.optimizedUnavailable.Store(true)
		s.logger.Warn().Err(err).Msg("sampled history query unavailable, switching to fallback scan")
	}

	return s.fetchScan(ctx, params)
}

func (s *PostgresStore) fetchSampled(ctx context.Context, params FetchParams) (Snapshot, error) {
	query := `
		SELECT config_id, display_name, provider_type, endpoint, model,
		       status, latency_ms, ping_ms, checked_at, message, group_name
		FROM (
			SELECT *, row_number() OVER (
				PARTITION BY config_id ORDER BY checked_at DESC, id DESC
			) AS rn
			FROM check_results
			WHERE config_id = ANY($1)
		) sampled
		WHERE rn <= $2
		ORDER BY config_id, checked_at DESC
	`
	rows, err := s.pool.Query(ctx, query, params.AllowedIDs, params.limit())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnapshot(rows)
}

func (s *PostgresStore) fetchScan(ctx context.Context, params FetchParams) (Snapshot, error) {
	query := `
		SELECT config_id, display_name, provider_type, endpoint, model,
		       status, latency_ms, ping_ms, checked_at, message, group_name
		FROM check_results
		WHERE config_id = ANY($1)
		ORDER BY checked_at DESC, id DESC
	`
	rows, err := s.pool.Query(ctx, query, params.AllowedIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snap, err := scanSnapshot(rows)
	if err != nil {
		return nil, err
	}
	limit := params.limit()
	for id, items := range snap {
		snap[id] = capNewestFirst(items, limit)
	}
	return snap, nil
}

func scanSnapshot(rows pgx.Rows) (Snapshot, error) {
	snap := Snapshot{}
	for rows.Next() {
		var r provider.CheckResult
		var checkedAt time.Time
		err := rows.Scan(
			&r.ConfigID,
			&r.DisplayName,
			&r.Type,
			&r.Endpoint,
			&r.Model,
			&r.Status,
			&r.LatencyMS,
			&r.PingMS,
			&checkedAt,
			&r.Message,
			&r.Group,
		)
		if err != nil {
			return nil, err
		}
		r.CheckedAt = checkedAt.UTC().Format(time.RFC3339)
		snap[r.ConfigID] = append(snap[r.ConfigID], r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Append inserts the batch and prunes expired rows in the same call.
func (s *PostgresStore) Append(ctx context.Context, results []provider.CheckResult) error {
	if len(results) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range results {
		checkedAt, err := time.Parse(time.RFC3339, r.CheckedAt)
		if err != nil {
			checkedAt = time.Now().UTC()
		}
		batch.Queue(`
			INSERT INTO check_results (
				config_id, display_name, provider_type, endpoint, model,
				status, latency_ms, ping_ms, checked_at, message, group_name
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			r.ConfigID, r.DisplayName, r.Type, r.Endpoint, r.Model,
			r.Status, r.LatencyMS, r.PingMS, checkedAt, r.Message, r.Group,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		return fmt.Errorf("append check results: %w", err)
	}

	if err := s.Prune(ctx, s.retentionDays); err != nil {
		// Retention is best effort on the append path; the daily worker
		// prune will catch up.
		s.logger.Warn().Err(err).Msg("retention prune after append failed")
	}
	return nil
}

// Prune deletes rows older than retentionDays.
func (s *PostgresStore) Prune(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	tag, err := s.pool.Exec(ctx, `DELETE FROM check_results WHERE checked_at < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("prune check results: %w", err)
	}
	if tag.RowsAffected() > 0 {
		s.logger.Debug().
			Int64("rows", tag.RowsAffected()).
			Int("retention_days", retentionDays).
			Msg("pruned expired check results")
	}
	return nil
}
