package api

import (
	"github.com/gorilla/mux"

	"github.com/wayfarer-ai/wayfarer/internal/api/recovery"
	"github.com/wayfarer-ai/wayfarer/internal/convlog"
)

// NewRouter wires gateway HTTP routes to handlers.
func NewRouter(queue Enqueuer, history *convlog.Log, search Searcher, queueName string, taskMaxRetry int) *mux.Router {
	root := mux.NewRouter()
	root.Use(recovery.Middleware)

	conv := NewConversationHandler(queue, history, queueName, taskMaxRetry)
	root.HandleFunc("/api/conversations", conv.CreateConversation).Methods("POST")
	root.HandleFunc("/api/users/{userId}/history", conv.GetHistory).Methods("GET")

	mem := NewMemoryHandler(search)
	root.HandleFunc("/api/users/{userId}/memory/search", mem.SearchMemory).Methods("GET")

	healthHandler := NewHealthHandler()
	root.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")

	return root
}
