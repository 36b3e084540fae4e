// Package archive provides the process-external similarity-search store
// holding long-term turn embeddings with per-user metadata.
package archive

import (
	"context"

	"github.com/wayfarer-ai/wayfarer/internal/model"
)

// Index is the vector-archive contract consumed by the long-term memory
// manager. The archive is append-only: records are inserted once and never
// updated in place.
type Index interface {
	// Insert stores one archived turn. Inserting a record whose TurnID is
	// already present is a no-op success so queue redeliveries stay
	// idempotent.
	Insert(ctx context.Context, rec model.ArchivedTurn) error

	// Query performs a similarity search restricted to records whose
	// userId metadata equals userID, most similar first, up to k results.
	// The restriction is applied inside the store, not by filtering the
	// result set afterwards.
	Query(ctx context.Context, userID string, vec []float32, k int) ([]model.ArchiveHit, error)
}
