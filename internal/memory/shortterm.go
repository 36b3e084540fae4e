// Package memory implements the hybrid memory subsystem: a bounded
// recent-turn buffer per user, an unbounded similarity-searched archive, and
// the orchestrator that composes both into the context for one model
// invocation.
package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wayfarer-ai/wayfarer/internal/cache"
	"github.com/wayfarer-ai/wayfarer/internal/model"
)

// ShortTermConfig tunes the short-term manager.
type ShortTermConfig struct {
	Window      int           // maximum buffered turns per user
	LockTTL     time.Duration // per-user lease duration
	MaxAttempts int           // bounded retries for lock contention and store failures
	BaseDelay   time.Duration // initial backoff delay
}

// ShortTermManager reads and writes the bounded recent-turn buffer in the
// cache store.
type ShortTermManager struct {
	store cache.Store
	cfg   ShortTermConfig
	log   zerolog.Logger
}

func NewShortTermManager(store cache.Store, cfg ShortTermConfig, log zerolog.Logger) *ShortTermManager {
	if cfg.Window <= 0 {
		cfg.Window = 10
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	return &ShortTermManager{store: store, cfg: cfg, log: log}
}

// Window returns the configured buffer size.
func (m *ShortTermManager) Window() int { return m.cfg.Window }

// GetRecent returns the user's buffer, chronological oldest first. A user
// with no recorded history (or an evicted buffer) yields an empty slice; a
// store-connectivity failure surfaces as a retryable error and is never
// reported as an empty buffer.
func (m *ShortTermManager) GetRecent(ctx context.Context, userID string) ([]model.Turn, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID must not be empty")
	}
	var lastErr error
	for attempt := 0; attempt < m.cfg.MaxAttempts; attempt++ {
		turns, err := m.store.GetTurns(ctx, userID)
		if err == nil {
			return turns, nil
		}
		lastErr = err
		if !model.IsStoreUnavailable(err) {
			return nil, err
		}
		m.log.Warn().Err(err).Str("userId", userID).Int("attempt", attempt+1).Msg("short-term read failed, retrying")
		if err := sleep(ctx, backoffDelay(m.cfg.BaseDelay, attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// AppendAndTrim appends turns to the end of the user's buffer and trims the
// front so at most Window turns remain. The read-modify-write is serialized
// per user via a cache-store lease; contention surfaces as ErrBufferLocked
// internally and is retried with backoff up to the bounded attempt count.
func (m *ShortTermManager) AppendAndTrim(ctx context.Context, userID string, turns []model.Turn) error {
	if userID == "" {
		return fmt.Errorf("userID must not be empty")
	}
	if len(turns) == 0 {
		return nil
	}
	var lastErr error
	for attempt := 0; attempt < m.cfg.MaxAttempts; attempt++ {
		err := m.appendOnce(ctx, userID, turns)
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.Is(err, model.ErrBufferLocked) && !model.IsStoreUnavailable(err) {
			return err
		}
		m.log.Warn().Err(err).Str("userId", userID).Int("attempt", attempt+1).Msg("short-term append failed, retrying")
		if err := sleep(ctx, backoffDelay(m.cfg.BaseDelay, attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

func (m *ShortTermManager) appendOnce(ctx context.Context, userID string, turns []model.Turn) error {
	lease, err := m.store.AcquireLease(ctx, userID, m.cfg.LockTTL)
	if err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			m.log.Warn().Err(err).Str("userId", userID).Msg("lease release failed; lease will expire on its own")
		}
	}()
	return m.store.AppendTurns(ctx, userID, turns, m.cfg.Window)
}
