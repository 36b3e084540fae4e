// Package responder generates assistant replies from a composed context. The
// generation strategy itself is an external concern; this package only adapts
// the composed turn sequence to a chat-completion call.
package responder

import (
	"context"

	"github.com/wayfarer-ai/wayfarer/internal/model"
)

// Responder produces one assistant reply for a composed context.
type Responder interface {
	Generate(ctx context.Context, turns []model.Turn) (string, error)
}
