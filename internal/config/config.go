package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config holds the configuration for the wayfarer services.
// Environment variables are parsed from the WAYFARER_ prefix,
// e.g. WAYFARER_REDIS_URL, WAYFARER_SHORT_TERM_WINDOW.
type Config struct {
	// Redis backs both the cache store (short-term buffers, per-user
	// leases) and the task queue.
	RedisURL string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`

	// Weaviate backs the long-term vector archive. host:port, no scheme.
	WeaviateURL string `envconfig:"WEAVIATE_URL" default:"localhost:8081"`

	// Embedding provider: "ollama" or "openai".
	EmbedProvider string `envconfig:"EMBED_PROVIDER" default:"ollama"`
	EmbedModel    string `envconfig:"EMBED_MODEL" default:"nomic-embed-text"`
	OllamaURL     string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`

	// Chat completion settings for the response generator.
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:""`
	ChatModel     string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`

	// Optional Postgres DSN for the durable conversation log. Empty
	// disables the log; memory persistence is unaffected.
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Memory tuning.
	ShortTermWindow int `envconfig:"SHORT_TERM_WINDOW" default:"10"`
	LongTermTopK    int `envconfig:"LONG_TERM_TOP_K" default:"5"`

	// Retry and timeout policy for store calls.
	RetryMaxAttempts   int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelayMS   int `envconfig:"RETRY_BASE_DELAY_MS" default:"100"`
	CallTimeoutSeconds int `envconfig:"CALL_TIMEOUT_SECONDS" default:"15"`
	LockTTLSeconds     int `envconfig:"LOCK_TTL_SECONDS" default:"5"`

	// Queue / worker.
	Queue             string `envconfig:"QUEUE" default:"conversations"`
	WorkerConcurrency int    `envconfig:"WORKER_CONCURRENCY" default:"1"`
	TaskMaxRetry      int    `envconfig:"TASK_MAX_RETRY" default:"5"`

	// Gateway HTTP.
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Health monitoring.
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
}

// Validate rejects values the services cannot operate with.
func (c *Config) Validate() error {
	if c.ShortTermWindow <= 0 {
		return fmt.Errorf("SHORT_TERM_WINDOW must be positive, got %d", c.ShortTermWindow)
	}
	if c.LongTermTopK <= 0 {
		return fmt.Errorf("LONG_TERM_TOP_K must be positive, got %d", c.LongTermTopK)
	}
	if c.RetryMaxAttempts <= 0 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be positive, got %d", c.RetryMaxAttempts)
	}
	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.WorkerConcurrency)
	}
	switch c.EmbedProvider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unsupported EMBED_PROVIDER: %s", c.EmbedProvider)
	}
	return nil
}

// CallTimeout returns the per-call timeout for external store calls.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// LockTTL returns the lease duration for per-user buffer locks.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// RetryBaseDelay returns the initial backoff delay for retried store calls.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

// GetHTTPAddr returns the gateway HTTP listen address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// New creates a Config by parsing WAYFARER_-prefixed environment variables.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("WAYFARER", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Info().
		Str("redis_url", cfg.RedisURL).
		Str("weaviate_url", cfg.WeaviateURL).
		Str("embed_provider", cfg.EmbedProvider).
		Str("embed_model", cfg.EmbedModel).
		Int("short_term_window", cfg.ShortTermWindow).
		Int("long_term_top_k", cfg.LongTermTopK).
		Str("queue", cfg.Queue).
		Int("worker_concurrency", cfg.WorkerConcurrency).
		Str("postgres_dsn_present", func() string {
			if cfg.PostgresDSN != "" {
				return "true"
			}
			return "false"
		}()).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting returns a config with test-friendly defaults and no
// environment parsing.
func NewForTesting() *Config {
	return &Config{
		RedisURL:                  "redis://localhost:6379/1",
		WeaviateURL:               "localhost:8082",
		EmbedProvider:             "ollama",
		EmbedModel:                "nomic-embed-text",
		OllamaURL:                 "http://localhost:11434",
		ChatModel:                 "gpt-4o-mini",
		ShortTermWindow:           10,
		LongTermTopK:              5,
		RetryMaxAttempts:          3,
		RetryBaseDelayMS:          1,
		CallTimeoutSeconds:        5,
		LockTTLSeconds:            2,
		Queue:                     "conversations",
		WorkerConcurrency:         1,
		TaskMaxRetry:              5,
		HTTPPort:                  8080,
		HealthIntervalSeconds:     30,
		HealthProbeTimeoutSeconds: 2,
	}
}
