package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smartats/ats-backend/internal/audit"
	"github.com/smartats/ats-backend/internal/config"
	"github.com/smartats/ats-backend/internal/dashboard"
	"github.com/smartats/ats-backend/internal/events"
	"github.com/smartats/ats-backend/internal/extractor"
	httpserver "github.com/smartats/ats-backend/internal/http"
	"github.com/smartats/ats-backend/internal/http/handlers"
	"github.com/smartats/ats-backend/internal/queue"
	"github.com/smartats/ats-backend/internal/repository"
	"github.com/smartats/ats-backend/internal/service"
	"github.com/smartats/ats-backend/internal/storage"
	"github.com/smartats/ats-backend/internal/taskstore"
	"github.com/smartats/ats-backend/internal/webhook"
	"github.com/smartats/ats-backend/internal/worker"
)

func main() {
	logger := log.New(os.Stdout, "[ats-backend] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	retention := time.Duration(cfg.TaskRetentionHours) * time.Hour

	tasks, tasksCloser := setupTaskStore(ctx, cfg, retention, logger)
	defer tasksCloser()

	webhooksRepo, repoCloser := setupWebhooksRepository(ctx, cfg, logger)
	defer repoCloser()

	producer, consumer, queueCloser := setupQueue(ctx, cfg, logger)
	defer queueCloser()

	files := storage.NewMemoryStorage(cfg.StorageBaseURL)

	auditor, auditCloser := setupAudit(ctx, cfg, logger)
	defer auditCloser()

	bus := events.NewBus(ctx, cfg.EventBusBuffer, logger)
	defer bus.Close()

	dispatcher := webhook.NewDispatcher(ctx, webhooksRepo, webhook.DispatcherConfig{
		MaxAttempts:      cfg.WebhookMaxAttempts,
		DisableThreshold: cfg.WebhookFailureThreshold,
		Timeout:          time.Duration(cfg.WebhookTimeoutMS) * time.Millisecond,
		Backoff: webhook.BackoffSchedule{
			Base: time.Duration(cfg.WebhookBackoffBaseMS) * time.Millisecond,
			Max:  time.Duration(cfg.WebhookBackoffMaxMS) * time.Millisecond,
		},
	}, logger)
	defer dispatcher.Close()
	bus.Subscribe("webhook-dispatcher", "*", dispatcher.HandleEvent)

	broadcaster := dashboard.NewBroadcaster(cfg.DashboardBuffer, logger)
	bus.Subscribe("dashboard", "resume.*", broadcaster.HandleEvent)

	resumesService := service.NewResumesService(tasks, files, producer, bus, auditor, logger)
	webhooksService := service.NewWebhooksService(webhooksRepo, dispatcher, auditor, logger)
	api := handlers.NewAPI(resumesService, webhooksService, broadcaster)

	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      cfg.AuthToken,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	if cfg.WorkerEnabled {
		processor := worker.NewProcessor(
			consumer,
			tasks,
			files,
			setupExtractor(cfg, logger),
			bus,
			time.Duration(cfg.ExtractorTimeoutMS)*time.Millisecond,
			logger,
		)
		go processor.Start(ctx)
		logger.Printf("parse worker enabled and started")
	} else {
		logger.Printf("parse worker disabled by configuration")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      0, // SSE connections stay open indefinitely
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("api listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func setupTaskStore(
	ctx context.Context,
	cfg config.Config,
	retention time.Duration,
	logger *log.Logger,
) (taskstore.Store, func()) {
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using in-memory task store")
		return taskstore.NewMemoryStore(retention), func() {}
	}

	redisStore, err := taskstore.NewRedisStore(ctx, taskstore.RedisConfig{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		Retention: retention,
	})
	if err != nil {
		logger.Printf("failed to initialize redis task store, fallback to memory: %v", err)
		return taskstore.NewMemoryStore(retention), func() {}
	}
	logger.Printf("redis task store initialized")
	return redisStore, func() {
		_ = redisStore.Close()
	}
}

func setupWebhooksRepository(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (repository.WebhooksRepository, func()) {
	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, using in-memory webhooks repository")
		return repository.NewMemoryWebhooksRepository(), func() {}
	}

	pgRepo, err := repository.NewPostgresWebhooksRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres webhooks repository, fallback to memory: %v", err)
		return repository.NewMemoryWebhooksRepository(), func() {}
	}
	logger.Printf("postgres webhooks repository initialized")
	return pgRepo, func() {
		pgRepo.Close()
	}
}

func setupQueue(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (queue.Producer, queue.Consumer, func()) {
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using local queue fallback")
		local := queue.NewLocalQueue(512, 3, logger)
		return local, local, func() {}
	}

	streams, err := queue.NewStreamsQueue(ctx, queue.StreamsConfig{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		Stream:      cfg.RedisStream,
		DLQStream:   cfg.RedisDLQ,
		Group:       cfg.RedisGroup,
		Consumer:    cfg.RedisConsumer,
		MaxAttempts: 3,
	})
	if err != nil {
		logger.Printf("failed to initialize redis streams queue, fallback to local: %v", err)
		local := queue.NewLocalQueue(512, 3, logger)
		return local, local, func() {}
	}
	logger.Printf("redis streams queue initialized")
	return streams, streams, func() {
		_ = streams.Close()
	}
}

func setupAudit(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (audit.Recorder, func()) {
	if cfg.DatabaseURL == "" {
		return audit.NewLogRecorder(logger), func() {}
	}

	pgRecorder, err := audit.NewPostgresRecorder(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Printf("failed to initialize postgres audit recorder, fallback to log: %v", err)
		return audit.NewLogRecorder(logger), func() {}
	}
	logger.Printf("postgres audit recorder initialized")
	return pgRecorder, func() {
		pgRecorder.Close()
	}
}

func setupExtractor(cfg config.Config, logger *log.Logger) extractor.Extractor {
	client := extractor.NewClient(extractor.ClientConfig{
		APIKey:  cfg.ExtractorAPIKey,
		BaseURL: cfg.ExtractorBaseURL,
		Model:   cfg.ExtractorModel,
		Timeout: time.Duration(cfg.ExtractorTimeoutMS) * time.Millisecond,
	})
	if client.Available() {
		logger.Printf("model extractor initialized model=%s", cfg.ExtractorModel)
		return client
	}
	logger.Printf("EXTRACTOR_API_KEY not configured, using heuristic extractor")
	return extractor.NewHeuristicExtractor()
}
