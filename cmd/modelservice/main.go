package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hszk-dev/scenedex/internal/config"
	"github.com/hszk-dev/scenedex/internal/mis/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	msCfg := cfg.ModelService

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Missing model files abort startup; serving without a model would
	// only fail later, per request.
	registry, err := server.NewRegistry(server.RegistryConfig{
		ModelsDir:   msCfg.ModelsDir,
		Device:      msCfg.Device,
		ASRModel:    msCfg.ASRModel,
		TextModel:   msCfg.TextModel,
		ImageModel:  msCfg.ImageModel,
		FaceModel:   msCfg.FaceModel,
		FaceEnabled: msCfg.FaceEnabled,
	})
	if err != nil {
		return fmt.Errorf("model registry: %w", err)
	}
	logger.Info("models resolved",
		slog.String("models_dir", msCfg.ModelsDir),
		slog.String("device", msCfg.Device),
		slog.Int("count", len(registry.Models())),
	)

	transcriber := server.NewWhisperCLI(server.WhisperCLIConfig{
		BinPath:   msCfg.ASRBin,
		ModelPath: registry.ModelPath(msCfg.ASRModel),
	})
	embedder := server.NewEmbedRunner(server.EmbedRunnerConfig{
		BinPath:        msCfg.TextEmbedBin,
		TextModelPath:  registry.ModelPath(msCfg.TextModel),
		ImageModelPath: registry.ModelPath(msCfg.ImageModel),
		Device:         msCfg.Device,
	})

	var faceDetector server.FaceDetector
	if msCfg.FaceEnabled {
		faceDetector = server.NewFaceDetect(server.DefaultFaceDetectConfig(
			msCfg.FaceBin,
			registry.ModelPath(msCfg.FaceModel),
		))
	}

	srv := server.NewServer(server.Config{
		MaxConcurrency: msCfg.MaxConcurrency,
	}, registry, transcriber, embedder, embedder, faceDetector, logger)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", msCfg.Port),
		Handler:      srv.Router(),
		ReadTimeout:  msCfg.ReadTimeout,
		WriteTimeout: msCfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting model service", slog.Int("port", msCfg.Port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down model service", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), msCfg.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("model service stopped")
	return nil
}
