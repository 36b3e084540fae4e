package embeddings

import "context"

// Provider produces vector representations for text. Implementations must be
// deterministic for identical input so retrieval tests are reproducible.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
