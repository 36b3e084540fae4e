// Package pipeline executes the per-message task a worker runs for each
// inbound chat message: build memory context, generate a response, persist
// the new turns to both memories, acknowledge.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/wayfarer-ai/wayfarer/internal/convlog"
	"github.com/wayfarer-ai/wayfarer/internal/memory"
	"github.com/wayfarer-ai/wayfarer/internal/model"
	"github.com/wayfarer-ai/wayfarer/internal/responder"
)

// Handler processes conversation tasks. A non-nil return leaves the message
// unacknowledged so the dispatcher redelivers it (at-least-once); scope
// violations are the one exception and fail the task permanently.
type Handler struct {
	mem         *memory.Orchestrator
	resp        responder.Responder
	history     *convlog.Log // optional; nil disables the durable log
	callTimeout time.Duration
	log         zerolog.Logger
}

func NewHandler(mem *memory.Orchestrator, resp responder.Responder, history *convlog.Log, callTimeout time.Duration, log zerolog.Logger) *Handler {
	if callTimeout <= 0 {
		callTimeout = 15 * time.Second
	}
	return &Handler{mem: mem, resp: resp, history: history, callTimeout: callTimeout, log: log}
}

// ProcessTask walks the message through
// received -> context_built -> response_generated -> persisted -> acknowledged.
// Re-processing the same payload after a redelivery is safe: archive inserts
// deduplicate on the deterministic turn ID, and short-term duplicates are
// bounded by the buffer window.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ConversationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		// Malformed payloads never become valid; do not redeliver.
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	log := h.log.With().Str("userId", p.UserID).Logger()
	log.Info().Msg("processing conversation message")

	// context_built
	buildCtx, cancel := context.WithTimeout(ctx, h.callTimeout)
	defer cancel()
	composed, err := h.mem.BuildContext(buildCtx, p.UserID, p.Message)
	if err != nil {
		if model.IsUserScopeViolation(err) {
			log.Error().Stack().Err(err).Msg("user scope violation while building context")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		log.Error().Stack().Err(err).Msg("context build failed; leaving message for redelivery")
		return err
	}
	humanTurn := composed[len(composed)-1]

	// response_generated: bounded like every other external call so a hung
	// completion endpoint cannot stall the worker.
	genCtx, cancelGen := context.WithTimeout(ctx, h.callTimeout)
	defer cancelGen()
	reply, err := h.resp.Generate(genCtx, composed)
	if err != nil {
		log.Error().Stack().Err(err).Msg("response generation failed; leaving message for redelivery")
		return err
	}
	assistantTurn := model.NewTurn(p.UserID, model.RoleAssistant, reply)

	// persisted: both memories always receive the same turn set
	newTurns := []model.Turn{humanTurn, assistantTurn}
	persistCtx, cancelPersist := context.WithTimeout(ctx, h.callTimeout)
	defer cancelPersist()
	if err := h.mem.PersistTurns(persistCtx, p.UserID, newTurns); err != nil {
		var pe model.PersistError
		if errors.As(err, &pe) {
			log.Error().Stack().Err(err).Str("stage", pe.Stage).Msg("memory persist failed; leaving message for redelivery")
		} else {
			log.Error().Stack().Err(err).Msg("memory persist failed; leaving message for redelivery")
		}
		return err
	}

	// The durable history log is best-effort: memories are already
	// consistent and the response exists, so a log failure must not
	// trigger a redelivery that would re-run generation.
	if h.history != nil {
		if err := h.history.Append(ctx, newTurns); err != nil {
			log.Warn().Err(err).Msg("conversation history append failed")
		}
	}

	result := ConversationResult{
		Response:           reply,
		UpdatedContextSize: len(composed) + 1,
	}
	if rw := t.ResultWriter(); rw != nil {
		if b, err := json.Marshal(result); err == nil {
			if _, err := rw.Write(b); err != nil {
				log.Warn().Err(err).Msg("task result write failed")
			}
		}
	}
	log.Info().Int("contextSize", result.UpdatedContextSize).Msg("conversation message processed")
	return nil
}
