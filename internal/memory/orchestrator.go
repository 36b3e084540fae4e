package memory

import (
	"context"
	"fmt"

	"github.com/wayfarer-ai/wayfarer/internal/model"
)

// DefaultTopK bounds long-term retrieval width: enough to surface a handful
// of relevant past facts without unbounded prompt growth.
const DefaultTopK = 5

// ShortTerm is the short-term manager contract the orchestrator composes over.
type ShortTerm interface {
	GetRecent(ctx context.Context, userID string) ([]model.Turn, error)
	AppendAndTrim(ctx context.Context, userID string, turns []model.Turn) error
}

// LongTerm is the long-term manager contract the orchestrator composes over.
type LongTerm interface {
	Save(ctx context.Context, userID string, turns []model.Turn) error
	Search(ctx context.Context, userID, queryText string, k int) ([]model.Turn, error)
}

// Orchestrator composes short-term and long-term memory with the current
// input into one ordered context, and keeps both memories in sync after every
// turn. It is stateless: it holds no data of its own between calls.
type Orchestrator struct {
	short ShortTerm
	long  LongTerm
	topK  int
}

func NewOrchestrator(short ShortTerm, long LongTerm, topK int) *Orchestrator {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Orchestrator{short: short, long: long, topK: topK}
}

// BuildContext returns long-term results (by descending similarity), then the
// short-term buffer (chronological), then a synthesized human turn for the
// incoming message. Context building is all-or-nothing: any store failure
// fails the whole call and no partial context is returned.
func (o *Orchestrator) BuildContext(ctx context.Context, userID, incomingMessage string) ([]model.Turn, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID must not be empty")
	}
	longTerm, err := o.long.Search(ctx, userID, incomingMessage, o.topK)
	if err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}
	shortTerm, err := o.short.GetRecent(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}
	out := make([]model.Turn, 0, len(longTerm)+len(shortTerm)+1)
	out = append(out, longTerm...)
	out = append(out, shortTerm...)
	out = append(out, model.NewTurn(userID, model.RoleHuman, incomingMessage))
	return out, nil
}

// PersistTurns writes the same turn set to both memories. Both stores are
// always updated per persisted set; a failure reports which memory failed via
// PersistError so callers can reason about partial persistence. The
// short-term buffer is written first (lock-guarded, cheap), the archive
// second.
func (o *Orchestrator) PersistTurns(ctx context.Context, userID string, turns []model.Turn) error {
	if userID == "" {
		return fmt.Errorf("userID must not be empty")
	}
	if len(turns) == 0 {
		return nil
	}
	if err := o.short.AppendAndTrim(ctx, userID, turns); err != nil {
		return model.PersistError{Stage: "short-term", Err: err}
	}
	if err := o.long.Save(ctx, userID, turns); err != nil {
		return model.PersistError{Stage: "long-term", Err: err}
	}
	return nil
}
