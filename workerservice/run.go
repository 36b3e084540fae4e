// Package workerservice wires and runs the conversation worker: an asynq
// server that consumes conversation tasks and drives the memory pipeline.
package workerservice

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/wayfarer-ai/wayfarer/internal/archive"
	"github.com/wayfarer-ai/wayfarer/internal/config"
	"github.com/wayfarer-ai/wayfarer/internal/embeddings"
	"github.com/wayfarer-ai/wayfarer/internal/factory"
	"github.com/wayfarer-ai/wayfarer/internal/health"
	"github.com/wayfarer-ai/wayfarer/internal/logger"
	"github.com/wayfarer-ai/wayfarer/internal/memory"
	"github.com/wayfarer-ai/wayfarer/internal/pipeline"
)

// Run starts the worker and blocks until shutdown or error.
func Run() error {
	log := logger.New("wayfarer-worker")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// -------- Stores and collaborators ------
	cacheStore, err := factory.NewCacheStore(ctx, cfg)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Cache store unavailable")
		return err
	}
	defer func() { _ = cacheStore.Close() }()

	idx, err := factory.NewArchiveIndex(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Vector archive unavailable")
		return err
	}

	embProvider := factory.NewEmbeddingProvider(cfg, log)
	respGen := factory.NewResponder(cfg)

	history, err := factory.NewConversationLog(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Conversation log unavailable")
		return err
	}
	if history != nil {
		defer func() { _ = history.Close() }()
	}

	// -------- Memory subsystem -------------
	shortTerm := memory.NewShortTermManager(cacheStore, memory.ShortTermConfig{
		Window:      cfg.ShortTermWindow,
		LockTTL:     cfg.LockTTL(),
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay(),
	}, log)
	longTerm := memory.NewLongTermManager(idx, embProvider, memory.LongTermConfig{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay(),
	}, log)
	orch := memory.NewOrchestrator(shortTerm, longTerm, cfg.LongTermTopK)

	handler := pipeline.NewHandler(orch, respGen, history, cfg.CallTimeout(), log)

	// -------- Health monitoring -------------
	startHealthCheckers(ctx, cfg, log, cacheStore, idx, embProvider)

	// -------- Queue server ------------------
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		log.Error().Err(err).Msg("Invalid Redis URL")
		return err
	}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		// One message at a time per process; replicas scale horizontally.
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{cfg.Queue: 1},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(pipeline.TypeConversationProcess, handler.ProcessTask)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("queue", cfg.Queue).Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
		errCh <- srv.Run(mux)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down worker")
		srv.Shutdown()
		log.Info().Msg("Worker exited")
		return nil
	case err := <-errCh:
		if err != nil {
			log.Error().Stack().Err(err).Msg("worker failed")
		}
		return err
	}
}

func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, cacheStore health.HealthPinger, idx archive.Index, embProvider embeddings.Provider) {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	var checkers []health.HealthChecker

	cacheChecker := health.NewPingChecker("cache", cacheStore, log, probeTimeout)
	go cacheChecker.Start(ctx, interval)
	checkers = append(checkers, cacheChecker)

	if pinger, ok := idx.(health.HealthPinger); ok {
		idxChecker := health.NewPingChecker("archive", pinger, log, probeTimeout)
		go idxChecker.Start(ctx, interval)
		checkers = append(checkers, idxChecker)
	}

	embChecker := embeddings.NewProviderHealthChecker(embProvider, log, probeTimeout)
	go embChecker.Start(ctx, interval)
	checkers = append(checkers, embChecker)

	svcHealth := health.NewServiceHealthChecker(log, checkers...)
	go svcHealth.Start(ctx, interval)
}
