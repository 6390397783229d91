package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"vidforge/internal/assets"
	"vidforge/internal/infra"
	"vidforge/internal/queue"
	"vidforge/internal/render"
	"vidforge/internal/storage"
	"vidforge/internal/transition"
	"vidforge/internal/webhook"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer db.Close()

	jobs := queue.New(db)
	if err := jobs.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("worker: ensure job schema")
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: storage init failed")
	}

	cache := assets.NewCache(cfg.AssetCacheDir, 60*time.Second, cfg.AssetTTL, logger)
	renderer := render.NewRenderer(cfg.FFmpegPath, cfg.FFprobePath, logger)
	hooks := webhook.NewDispatcher(10*time.Second, cfg.WebhookSecret, logger)

	blending := transition.Options{
		Tolerance:   cfg.TransitionTolerance,
		MaxDuration: cfg.TransitionMaxDuration,
	}
	executor := render.NewExecutor(
		jobs, cache, store, renderer, hooks,
		os.TempDir(),
		cfg.RenderTimeout, cfg.RetryBase, cfg.RetryCap,
		blending,
		logger,
	)

	// Periodic cache eviction alongside the pool.
	go func() {
		ticker := time.NewTicker(cfg.AssetTTL)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cache.Sweep(); err != nil {
					logger.Warn().Err(err).Msg("worker: asset sweep failed")
				}
			}
		}
	}()

	pool := render.NewPool(jobs, executor, cfg.WorkerCount, cfg.JobPollInterval, logger)
	pool.Run(ctx)
}

// newStore prefers object storage when configured, falling back to the
// local filesystem for development.
func newStore(ctx context.Context, cfg *infra.Config) (storage.Store, error) {
	if cfg.S3Endpoint != "" {
		return storage.NewObjectStore(ctx,
			cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey,
			cfg.S3Bucket, cfg.S3PublicURL, cfg.S3UseSSL,
		)
	}
	return storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
}
