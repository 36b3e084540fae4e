package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wayfarer-ai/wayfarer/internal/archive"
	"github.com/wayfarer-ai/wayfarer/internal/embeddings"
	"github.com/wayfarer-ai/wayfarer/internal/model"
)

// LongTermConfig tunes the long-term manager.
type LongTermConfig struct {
	MaxAttempts int           // bounded retries per embed/insert call
	BaseDelay   time.Duration // initial backoff delay
}

// LongTermManager writes turn embeddings to the vector archive on save and
// performs user-scoped similarity search on read.
type LongTermManager struct {
	idx archive.Index
	emb embeddings.Provider
	cfg LongTermConfig
	log zerolog.Logger
}

func NewLongTermManager(idx archive.Index, emb embeddings.Provider, cfg LongTermConfig, log zerolog.Logger) *LongTermManager {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	return &LongTermManager{idx: idx, emb: emb, cfg: cfg, log: log}
}

// Save embeds each turn and inserts one archived record tagged with the
// owning user and role. A turn that cannot be embedded or inserted is retried
// up to the bounded attempt count; if retries exhaust, the error surfaces
// rather than reporting success for a partially saved batch.
func (m *LongTermManager) Save(ctx context.Context, userID string, turns []model.Turn) error {
	if userID == "" {
		return fmt.Errorf("userID must not be empty")
	}
	for i, t := range turns {
		if !t.Role.Valid() {
			return fmt.Errorf("turn %d has invalid role %q", i, t.Role)
		}
		vec, err := m.embedWithRetry(ctx, t.Content)
		if err != nil {
			return fmt.Errorf("archive turn %d of %d for user %s: %w", i+1, len(turns), userID, err)
		}
		rec := model.ArchivedTurn{
			TurnID:       t.TurnID(),
			UserID:       userID,
			Role:         t.Role,
			Content:      t.Content,
			CreationTime: t.Timestamp,
			Vector:       vec,
		}
		if err := m.insertWithRetry(ctx, rec); err != nil {
			return fmt.Errorf("archive turn %d of %d for user %s: %w", i+1, len(turns), userID, err)
		}
	}
	return nil
}

// Search embeds queryText and returns up to k archived turns for userID,
// most similar first. The user restriction is a pre-condition of the store
// query; a result owned by anyone else is a scope violation and is fatal,
// never retried.
func (m *LongTermManager) Search(ctx context.Context, userID, queryText string, k int) ([]model.Turn, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID must not be empty")
	}
	vec, err := m.embedWithRetry(ctx, queryText)
	if err != nil {
		return nil, err
	}
	hits, err := m.queryWithRetry(ctx, userID, vec, k)
	if err != nil {
		return nil, err
	}
	turns := make([]model.Turn, 0, len(hits))
	for _, h := range hits {
		if h.UserID != userID {
			return nil, model.UserScopeViolationError{
				RequestedUser: userID,
				FoundUser:     h.UserID,
				TurnID:        h.TurnID,
			}
		}
		turns = append(turns, h.Turn())
	}
	return turns, nil
}

func (m *LongTermManager) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt < m.cfg.MaxAttempts; attempt++ {
		vec, err := m.emb.Embed(ctx, text)
		if err == nil {
			if len(vec) == 0 {
				return nil, model.EmbeddingError{Err: fmt.Errorf("provider returned empty vector")}
			}
			return vec, nil
		}
		lastErr = model.EmbeddingError{Err: err}
		m.log.Warn().Err(err).Int("attempt", attempt+1).Msg("embedding failed, retrying")
		if err := sleep(ctx, backoffDelay(m.cfg.BaseDelay, attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (m *LongTermManager) insertWithRetry(ctx context.Context, rec model.ArchivedTurn) error {
	var lastErr error
	for attempt := 0; attempt < m.cfg.MaxAttempts; attempt++ {
		err := m.idx.Insert(ctx, rec)
		if err == nil {
			return nil
		}
		lastErr = model.NewStoreUnavailable("archive", err)
		m.log.Warn().Err(err).Str("turnId", rec.TurnID).Int("attempt", attempt+1).Msg("archive insert failed, retrying")
		if err := sleep(ctx, backoffDelay(m.cfg.BaseDelay, attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

func (m *LongTermManager) queryWithRetry(ctx context.Context, userID string, vec []float32, k int) ([]model.ArchiveHit, error) {
	var lastErr error
	for attempt := 0; attempt < m.cfg.MaxAttempts; attempt++ {
		hits, err := m.idx.Query(ctx, userID, vec, k)
		if err == nil {
			return hits, nil
		}
		lastErr = model.NewStoreUnavailable("archive", err)
		m.log.Warn().Err(err).Str("userId", userID).Int("attempt", attempt+1).Msg("archive query failed, retrying")
		if err := sleep(ctx, backoffDelay(m.cfg.BaseDelay, attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}
