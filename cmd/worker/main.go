// Package main is the entrypoint for the callpipe worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"callpipe/internal/ai"
	"callpipe/internal/cache"
	"callpipe/internal/config"
	"callpipe/internal/media"
	"callpipe/internal/queue"
	"callpipe/internal/speech"
	"callpipe/internal/stage"
	"callpipe/internal/storage"
	"callpipe/internal/store"
	"callpipe/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Optional in production; local runs keep settings in .env.
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"ai_provider", cfg.AI.Provider,
		"worker_id", cfg.Worker.ID,
		"concurrency", cfg.Worker.Concurrency)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Status cache; disabled when no Redis URL is configured
	var statusCache cache.Cache = cache.Noop{}
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		statusCache = redisCache
		slog.Info("redis connected")
	}

	// 5. Object storage
	storageClient, err := storage.NewMinioClient(cfg.Storage)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}

	// 6. AI provider
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name())

	// 7. Speech client
	speechClient := speech.NewHTTPClient(speech.Config{
		APIKey:            cfg.Speech.APIKey,
		FolderID:          cfg.Speech.FolderID,
		Language:          cfg.Speech.Language,
		Model:             cfg.Speech.Model,
		ProfanityFilter:   cfg.Speech.ProfanityFilter,
		Diarization:       cfg.Speech.Diarization,
		RecognizeEndpoint: cfg.Speech.RecognizeEndpoint,
		OperationEndpoint: cfg.Speech.OperationEndpoint,
		Timeout:           cfg.Speech.Timeout,
	})

	// 8. Store, queue, stage runner
	pgStore := store.NewPostgresStore(pool)
	jobQueue := queue.NewPostgresQueue(pool)

	runner := stage.NewRunner(stage.Deps{
		Store:           pgStore,
		Queue:           jobQueue,
		Storage:         storageClient,
		Bucket:          cfg.Storage.Bucket,
		StorageEndpoint: cfg.Storage.Endpoint,
		Transcoder:      &media.FFmpeg{},
		Speech:          speechClient,
		AI:              aiProvider,
		PollInterval:    cfg.Speech.PollInterval,
		Language:        cfg.Speech.Language,
	})

	// 9. Worker pool
	workerErrCh := make(chan error, cfg.Worker.Concurrency)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		id := fmt.Sprintf("%s-%d", cfg.Worker.ID, i)
		w := worker.New(jobQueue, runner, statusCache, slog.Default(), id, cfg.Worker.PollInterval)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				workerErrCh <- err
			}
		}()
	}

	// 10. Health endpoint
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", healthHandler(pgStore, statusCache))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		slog.Info("health endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
		close(serverErrCh)
	}()

	var runErr error
	select {
	case err := <-workerErrCh:
		runErr = fmt.Errorf("worker error: %w", err)
		stop()
	case err := <-serverErrCh:
		runErr = fmt.Errorf("server error: %w", err)
		stop()
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining workers...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("server shutdown: %w", err)
	}

	wg.Wait()
	if runErr != nil {
		return runErr
	}
	slog.Info("worker stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}
		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		status := http.StatusOK
		overall := "ok"
		if checks["database"] != "ok" || checks["cache"] != "ok" {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":   overall,
			"services": checks,
		})
	}
}
