package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/scenedex/internal/config"
	"github.com/hszk-dev/scenedex/internal/domain/repository"
	"github.com/hszk-dev/scenedex/internal/infrastructure/cache"
	"github.com/hszk-dev/scenedex/internal/infrastructure/postgres"
	"github.com/hszk-dev/scenedex/internal/infrastructure/queue"
	"github.com/hszk-dev/scenedex/internal/infrastructure/storage"
	"github.com/hszk-dev/scenedex/internal/media"
	"github.com/hszk-dev/scenedex/internal/mis"
	"github.com/hszk-dev/scenedex/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Worker.TempDir, 0755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN()))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pgClient.Close()
	logger.Info("connected to PostgreSQL")

	gateway, err := storage.NewGateway(ctx, storage.GatewayConfig{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		UseSSL:    cfg.MinIO.UseSSL,
		Buckets: map[repository.Bucket]string{
			repository.BucketUploads:  cfg.MinIO.BucketUploads,
			repository.BucketSidecars: cfg.MinIO.BucketSidecars,
			repository.BucketTmp:      cfg.MinIO.BucketTmp,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to connect to MinIO: %w", err)
	}
	logger.Info("connected to MinIO")

	queueCfg := queue.DefaultClientConfig(cfg.RabbitMQ.URL())
	queueCfg.MaxRetries = cfg.Worker.MaxRetries
	queueClient, err := queue.NewClient(ctx, queueCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	processor := media.NewFFmpegProcessor(media.FFmpegConfig{
		FFmpegPath:      cfg.Worker.FFmpegPath,
		FFprobePath:     cfg.Worker.FFprobePath,
		SceneThreshold:  cfg.Worker.SceneThreshold,
		MinSceneLengthS: cfg.Worker.MinSceneLength.Seconds(),
	})

	inference := mis.NewClient(mis.ClientConfig{
		BaseURL:     cfg.ModelClient.BaseURL,
		Timeout:     cfg.ModelClient.Timeout,
		MaxAttempts: cfg.ModelClient.MaxAttempts,
		BackoffBase: cfg.ModelClient.BackoffBase,
	})

	indexSvc := usecase.NewIndexService(
		postgres.NewVideoRepository(pgClient.Pool()),
		postgres.NewJobRepository(pgClient.Pool()),
		postgres.NewFaceProfileRepository(pgClient.Pool()),
		postgres.NewIndexCommitter(pgClient.Pool()),
		postgres.NewAdvisoryLocker(pgClient.Pool()),
		gateway,
		cache.NewRedisStatusCache(redisClient),
		processor,
		inference,
		usecase.IndexServiceConfig{
			TempDir:            cfg.Worker.TempDir,
			MaxRetries:         cfg.Worker.MaxRetries,
			ASRLanguage:        cfg.Worker.ASRLanguage,
			FaceMatchThreshold: 0.5,
		},
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting worker, consuming index tasks")
		err := queueClient.ConsumeIndexTasks(ctx, func(task repository.IndexTask) error {
			wg.Add(1)
			defer wg.Done()

			// Bound each pipeline run; a stuck external tool must not
			// hold the delivery forever.
			taskCtx, taskCancel := context.WithTimeout(ctx, cfg.Worker.TaskTimeout)
			defer taskCancel()

			logger.Info("processing task",
				slog.String("video_id", task.VideoID.String()),
				slog.Int("retry_count", task.RetryCount),
			)

			start := time.Now()
			if err := indexSvc.ProcessTask(taskCtx, task); err != nil {
				logger.Error("task processing failed",
					slog.String("video_id", task.VideoID.String()),
					slog.Int("retry_count", task.RetryCount),
					slog.Duration("elapsed", time.Since(start)),
					slog.String("error", err.Error()),
				)
				return err
			}

			logger.Info("task completed",
				slog.String("video_id", task.VideoID.String()),
				slog.Duration("elapsed", time.Since(start)),
			)
			return nil
		})
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all in-flight tasks completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some tasks may not have completed")
	}

	logger.Info("worker stopped")
	return nil
}
