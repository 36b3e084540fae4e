package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TypeConversationProcess is the task type for one inbound chat message.
const TypeConversationProcess = "conversation:process"

// anonymousUserID replaces the client placeholder "string" so throwaway
// frontend sessions still share one memory scope.
const anonymousUserID = "default-anonymous-user"

// ConversationPayload is the pipeline input contract.
type ConversationPayload struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// Validate normalizes and checks the payload. The user ID must never be
// empty: every memory operation is scoped by it.
func (p *ConversationPayload) Validate() error {
	if p.UserID == "string" {
		p.UserID = anonymousUserID
	}
	if p.UserID == "" {
		return fmt.Errorf("user_id must not be empty")
	}
	if p.Message == "" {
		return fmt.Errorf("message must not be empty")
	}
	return nil
}

// ConversationResult is the pipeline output contract, recorded as the task
// result alongside the persisted-memory side effect.
type ConversationResult struct {
	Response           string `json:"response"`
	UpdatedContextSize int    `json:"updated_context_size"`
}

// NewConversationTask builds the asynq task for a payload.
func NewConversationTask(p ConversationPayload) (*asynq.Task, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeConversationProcess, b), nil
}
