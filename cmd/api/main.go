package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/scenedex/internal/api/handler"
	"github.com/hszk-dev/scenedex/internal/api/middleware"
	"github.com/hszk-dev/scenedex/internal/config"
	"github.com/hszk-dev/scenedex/internal/domain/repository"
	"github.com/hszk-dev/scenedex/internal/infrastructure/cache"
	"github.com/hszk-dev/scenedex/internal/infrastructure/postgres"
	"github.com/hszk-dev/scenedex/internal/infrastructure/queue"
	"github.com/hszk-dev/scenedex/internal/infrastructure/storage"
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

	pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN()))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pgClient.Close()
	logger.Info("connected to PostgreSQL")

	gateway, err := storage.NewGateway(ctx, storage.GatewayConfig{
		Endpoint:       cfg.MinIO.Endpoint,
		PublicEndpoint: cfg.MinIO.PublicEndpoint,
		AccessKey:      cfg.MinIO.AccessKey,
		SecretKey:      cfg.MinIO.SecretKey,
		UseSSL:         cfg.MinIO.UseSSL,
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

	queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()))
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

	videoRepo := postgres.NewVideoRepository(pgClient.Pool())
	jobRepo := postgres.NewJobRepository(pgClient.Pool())
	sceneRepo := postgres.NewSceneRepository(pgClient.Pool())
	userRepo := postgres.NewUserRepository(pgClient.Pool())
	statusCache := cache.NewRedisStatusCache(redisClient)

	videoSvc := usecase.NewVideoService(videoRepo, jobRepo, sceneRepo, gateway, queueClient, usecase.VideoServiceConfig{
		UploadURLTTL: cfg.Server.UploadURLTTL,
	})
	cachedSvc := usecase.NewCachedVideoService(videoSvc, statusCache, usecase.CachedVideoServiceConfig{
		StatusTTL: cfg.Server.StatusCacheTTL,
	})

	r := setupRouter(logger, userRepo, cachedSvc)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func setupRouter(logger *slog.Logger, users repository.UserRepository, videoSvc usecase.VideoService) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Get("/health", handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	videoHandler := handler.NewVideoHandler(videoSvc)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Auth(users, logger))

		r.Route("/videos", func(r chi.Router) {
			r.Get("/", videoHandler.List)
			r.Post("/upload/init", videoHandler.InitUpload)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", videoHandler.Get)
				r.Get("/status", videoHandler.Status)
				r.Get("/scenes", videoHandler.Scenes)
				r.Post("/upload/complete", videoHandler.CompleteUpload)
			})
		})
	})

	return r
}
