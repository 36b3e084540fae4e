// Package factory constructs configured dependencies for the services.
package factory

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/wayfarer-ai/wayfarer/internal/archive"
	"github.com/wayfarer-ai/wayfarer/internal/cache"
	"github.com/wayfarer-ai/wayfarer/internal/config"
	"github.com/wayfarer-ai/wayfarer/internal/convlog"
	"github.com/wayfarer-ai/wayfarer/internal/embeddings"
	"github.com/wayfarer-ai/wayfarer/internal/embeddings/ollama"
	aiopenai "github.com/wayfarer-ai/wayfarer/internal/embeddings/openai"
	"github.com/wayfarer-ai/wayfarer/internal/responder"
)

// NewCacheStore connects to the Redis cache store.
func NewCacheStore(ctx context.Context, cfg *config.Config) (*cache.RedisStore, error) {
	return cache.NewRedisStore(ctx, cfg.RedisURL)
}

// NewArchiveIndex creates the Weaviate-backed archive and bootstraps its
// schema asynchronously so startup is not blocked on the index.
func NewArchiveIndex(ctx context.Context, cfg *config.Config, log zerolog.Logger) (archive.Index, error) {
	idx, err := archive.NewWeaviateIndex(cfg.WeaviateURL)
	if err != nil {
		return nil, err
	}
	go func() {
		bctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := archive.Bootstrap(bctx, cfg.WeaviateURL); err != nil {
			log.Warn().Err(err).Str("url", cfg.WeaviateURL).Msg("archive schema bootstrap failed")
		} else {
			log.Debug().Str("url", cfg.WeaviateURL).Msg("archive schema bootstrap completed")
		}
	}()
	return idx, nil
}

// NewEmbeddingProvider creates an embedding provider based on config.
func NewEmbeddingProvider(cfg *config.Config, log zerolog.Logger) embeddings.Provider {
	switch cfg.EmbedProvider {
	case "openai":
		return aiopenai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbedModel)
	case "", "ollama":
		return ollama.New(cfg.OllamaURL, cfg.EmbedModel)
	default:
		log.Warn().Str("provider", cfg.EmbedProvider).Msg("unknown embedding provider; using ollama")
		return ollama.New(cfg.OllamaURL, cfg.EmbedModel)
	}
}

// NewResponder creates the chat-completion response generator.
func NewResponder(cfg *config.Config) responder.Responder {
	return responder.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ChatModel)
}

// NewConversationLog opens the optional durable history log. Returns nil
// without error when no DSN is configured.
func NewConversationLog(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*convlog.Log, error) {
	if cfg.PostgresDSN == "" {
		log.Info().Msg("conversation history log disabled (no Postgres DSN)")
		return nil, nil
	}
	return convlog.Open(ctx, cfg.PostgresDSN)
}
