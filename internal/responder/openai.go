package responder

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/wayfarer-ai/wayfarer/internal/model"
)

const systemPrompt = "You are a helpful tourism assistant. Use the earlier " +
	"conversation turns as context about the traveler when answering."

// OpenAIResponder generates replies via an OpenAI-compatible chat endpoint.
type OpenAIResponder struct {
	client *openai.Client
	model  string
}

// NewOpenAI returns a responder using apiKey and model. baseURL overrides the
// API endpoint when non-empty.
func NewOpenAI(apiKey, baseURL, chatModel string) *OpenAIResponder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIResponder{client: openai.NewClientWithConfig(cfg), model: chatModel}
}

func (r *OpenAIResponder) Generate(ctx context.Context, turns []model.Turn) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, t := range turns {
		role := openai.ChatMessageRoleUser
		if t.Role == model.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    r.model,
		Messages: msgs,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
