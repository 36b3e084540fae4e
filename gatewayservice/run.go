// Package gatewayservice wires and runs the HTTP gateway: it validates
// inbound chat requests and dispatches them onto the conversation queue.
package gatewayservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/wayfarer-ai/wayfarer/internal/api"
	"github.com/wayfarer-ai/wayfarer/internal/config"
	"github.com/wayfarer-ai/wayfarer/internal/factory"
	"github.com/wayfarer-ai/wayfarer/internal/health"
	"github.com/wayfarer-ai/wayfarer/internal/logger"
	"github.com/wayfarer-ai/wayfarer/internal/memory"
)

// Run starts the gateway HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("wayfarer-gateway")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		log.Error().Err(err).Msg("Invalid Redis URL")
		return err
	}
	client := asynq.NewClient(redisOpt)
	defer func() { _ = client.Close() }()

	history, err := factory.NewConversationLog(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Conversation log unavailable")
		return err
	}
	if history != nil {
		defer func() { _ = history.Close() }()
	}

	// The queue and the cache share one Redis.
	cacheStore, err := factory.NewCacheStore(ctx, cfg)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Cache store unavailable")
		return err
	}
	defer func() { _ = cacheStore.Close() }()

	// The archive backs the read-only memory-search debug endpoint.
	idx, err := factory.NewArchiveIndex(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Vector archive unavailable")
		return err
	}
	embProvider := factory.NewEmbeddingProvider(cfg, log)
	longTerm := memory.NewLongTermManager(idx, embProvider, memory.LongTermConfig{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay(),
	}, log)

	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second
	cacheChecker := health.NewPingChecker("cache", cacheStore, log, probeTimeout)
	go cacheChecker.Start(ctx, interval)
	checkers := []health.HealthChecker{cacheChecker}
	if pinger, ok := idx.(health.HealthPinger); ok {
		idxChecker := health.NewPingChecker("archive", pinger, log, probeTimeout)
		go idxChecker.Start(ctx, interval)
		checkers = append(checkers, idxChecker)
	}
	svcHealth := health.NewServiceHealthChecker(log, checkers...)
	go svcHealth.Start(ctx, interval)
	api.BindServiceHealth(svcHealth.IsHealthy)

	router := api.NewRouter(client, history, longTerm, cfg.Queue, cfg.TaskMaxRetry)
	server := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return fmt.Errorf("http server: %w", err)
	}
}
