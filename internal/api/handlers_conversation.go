package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/wayfarer-ai/wayfarer/internal/api/respond"
	"github.com/wayfarer-ai/wayfarer/internal/convlog"
	"github.com/wayfarer-ai/wayfarer/internal/pipeline"
)

// Enqueuer abstracts the task-queue client (satisfied by *asynq.Client).
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ConversationHandler accepts chat messages and dispatches them to the
// worker queue. The gateway never touches memory directly; the pipeline owns
// every store interaction.
type ConversationHandler struct {
	queue    Enqueuer
	history  *convlog.Log // optional; nil disables the endpoint's data source
	queueNm  string
	maxRetry int
}

func NewConversationHandler(queue Enqueuer, history *convlog.Log, queueName string, maxRetry int) *ConversationHandler {
	return &ConversationHandler{queue: queue, history: history, queueNm: queueName, maxRetry: maxRetry}
}

// CreateConversation handles POST /api/conversations.
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var p pipeline.ConversationPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}
	task, err := pipeline.NewConversationTask(p)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	taskID := uuid.NewString()
	info, err := h.queue.EnqueueContext(r.Context(), task,
		asynq.TaskID(taskID),
		asynq.Queue(h.queueNm),
		asynq.MaxRetry(h.maxRetry),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		log.Error().Err(err).Str("userId", p.UserID).Msg("enqueue failed")
		respond.WriteError(w, http.StatusServiceUnavailable, "queue unavailable")
		return
	}

	respond.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"taskId": info.ID,
		"queue":  info.Queue,
		"state":  info.State.String(),
	})
}

// GetHistory handles GET /api/users/{userId}/history.
func (h *ConversationHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		respond.WriteBadRequest(w, "userId is required")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respond.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if h.history == nil {
		respond.WriteNotFound(w, "conversation history is not configured")
		return
	}
	turns, err := h.history.Recent(r.Context(), userID, limit)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("history query failed")
		respond.WriteInternalError(w, "failed to read history")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"userId": userID,
		"turns":  turns,
		"count":  len(turns),
	})
}
