// Package leadership coordinates which process instance is allowed to run
// active probing. Election is lease-based: whoever owns the named lease row
// and keeps renewing it before expiry is the leader. Reads never depend on
// election health; callers fall back to read-only paths on election errors.
package leadership

import (
	"context"
	"fmt"
)

// Coordinator decides whether this process may probe.
type Coordinator interface {
	// EnsureLeadership acquires, renews, or confirms the lease. It returns
	// an *ElectionError when the election mechanism itself is unreachable;
	// being a follower is not an error.
	EnsureLeadership(ctx context.Context) error

	// IsLeader reflects the last known election outcome. It performs no I/O.
	IsLeader() bool
}

// ElectionError wraps failures of the election mechanism itself (lease
// store unreachable, query failure). Callers must not probe when they see
// one, and must not surface it to end callers.
type ElectionError struct {
	Err error
}

func (e *ElectionError) Error() string {
	return fmt.Sprintf("leadership election failed: %v", e.Err)
}

func (e *ElectionError) Unwrap() error { return e.Err }

// Static is a fixed-outcome Coordinator for tests and single-instance
// deployments where no lease store exists.
type Static struct {
	Leader bool
	// Err, when set, is returned from EnsureLeadership wrapped in an
	// ElectionError to simulate an unreachable lease store.
	Err error
}

// EnsureLeadership implements Coordinator.
func (s *Static) EnsureLeadership(context.Context) error {
	if s.Err != nil {
		return &ElectionError{Err: s.Err}
	}
	return nil
}

// IsLeader implements Coordinator.
func (s *Static) IsLeader() bool { return s.Leader }
