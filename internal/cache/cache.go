// Package cache provides the process-external key/value store holding each
// user's short-term turn buffer, plus a per-user lease lock used to serialize
// buffer writes across worker replicas.
package cache

import (
	"context"
	"time"

	"github.com/wayfarer-ai/wayfarer/internal/model"
)

// Store is the cache-store contract consumed by the short-term memory manager.
type Store interface {
	// GetTurns returns the user's buffer, oldest first. A missing key is a
	// valid empty-buffer state, not an error; only connectivity failures
	// return an error.
	GetTurns(ctx context.Context, userID string) ([]model.Turn, error)

	// AppendTurns atomically appends turns to the end of the buffer and
	// trims it from the front so at most window turns remain.
	AppendTurns(ctx context.Context, userID string, turns []model.Turn, window int) error

	// AcquireLease takes the per-user write lease for at most ttl.
	// Returns model.ErrBufferLocked when another holder has it.
	AcquireLease(ctx context.Context, userID string, ttl time.Duration) (Lease, error)
}

// Lease is a held per-user lock. Release is safe to call once; an expired
// lease releases itself server-side after its TTL, so a crashed holder cannot
// deadlock other replicas.
type Lease interface {
	Release(ctx context.Context) error
}
