package leadership

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const leaseSchema = `
CREATE TABLE IF NOT EXISTS leadership_leases (
	name       TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
`

// LeaseConfig holds configuration for the lease-backed coordinator.
type LeaseConfig struct {
	Pool   *pgxpool.Pool
	Logger zerolog.Logger

	// LeaseName identifies the lease row. Default "aipulse-poller".
	LeaseName string

	// TTL is how long an un-renewed lease stays valid. A crashed leader is
	// replaceable after at most this long. Default 90s.
	TTL time.Duration
}

// LeaseCoordinator implements Coordinator over a PostgreSQL lease row.
// Acquire-or-renew runs as a single conditional upsert so there is no
// read-modify-write race between instances.
type LeaseCoordinator struct {
	pool      *pgxpool.Pool
	logger    zerolog.Logger
	leaseName string
	ttl       time.Duration
	owner     string

	leader atomic.Bool
}

// NewLeaseCoordinator creates a coordinator with a fresh owner identity.
func NewLeaseCoordinator(cfg LeaseConfig) *LeaseCoordinator {
	if cfg.LeaseName == "" {
		cfg.LeaseName = "aipulse-poller"
	}
	if cfg.TTL == 0 {
		cfg.TTL = 90 * time.Second
	}
	return &LeaseCoordinator{
		pool:      cfg.Pool,
		logger:    cfg.Logger,
		leaseName: cfg.LeaseName,
		ttl:       cfg.TTL,
		owner:     uuid.NewString(),
	}
}

// EnsureSchema creates the lease table if missing.
func (c *LeaseCoordinator) EnsureSchema(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, leaseSchema); err != nil {
		return fmt.Errorf("ensure leadership_leases schema: %w", err)
	}
	return nil
}

// EnsureLeadership acquires the lease when free or expired, renews it when
// owned, and records the outcome. Losing an election is not an error; only
// lease store failures are.
func (c *LeaseCoordinator) EnsureLeadership(ctx context.Context) error {
	query := `
		INSERT INTO leadership_leases (name, owner, expires_at)
		VALUES ($1, $2, now() + $3)
		ON CONFLICT (name) DO UPDATE
			SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at
			WHERE leadership_leases.owner = EXCLUDED.owner
			   OR leadership_leases.expires_at < now()
	`
	tag, err := c.pool.Exec(ctx, query, c.leaseName, c.owner, c.ttl)
	if err != nil {
		c.leader.Store(false)
		return &ElectionError{Err: err}
	}

	won := tag.RowsAffected() > 0
	if won != c.leader.Load() {
		c.logger.Info().
			Str("lease", c.leaseName).
			Str("owner", c.owner).
			Bool("leader", won).
			Msg("leadership changed")
	}
	c.leader.Store(won)
	return nil
}

// IsLeader implements Coordinator.
func (c *LeaseCoordinator) IsLeader() bool {
	return c.leader.Load()
}

// Owner returns this instance's lease identity, for logging.
func (c *LeaseCoordinator) Owner() string { return c.owner }
