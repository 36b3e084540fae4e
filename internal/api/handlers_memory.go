package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/wayfarer-ai/wayfarer/internal/api/respond"
	"github.com/wayfarer-ai/wayfarer/internal/model"
)

// Searcher exposes long-term recall, satisfied by the long-term memory
// manager. The gateway serves it read-only for operator debugging; the
// conversational path always goes through the queue.
type Searcher interface {
	Search(ctx context.Context, userID, queryText string, k int) ([]model.Turn, error)
}

// MemoryHandler serves read-only memory inspection endpoints.
type MemoryHandler struct {
	search Searcher
}

func NewMemoryHandler(search Searcher) *MemoryHandler {
	return &MemoryHandler{search: search}
}

// SearchMemory handles GET /api/users/{userId}/memory/search.
func (h *MemoryHandler) SearchMemory(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		respond.WriteBadRequest(w, "userId is required")
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		respond.WriteBadRequest(w, "q is required")
		return
	}
	k := 5
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respond.WriteBadRequest(w, "k must be a positive integer")
			return
		}
		k = n
	}
	if h.search == nil {
		respond.WriteNotFound(w, "memory search is not configured")
		return
	}
	turns, err := h.search.Search(r.Context(), userID, query, k)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("memory search failed")
		respond.WriteInternalError(w, "memory search failed")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"userId": userID,
		"query":  query,
		"turns":  turns,
		"count":  len(turns),
	})
}
