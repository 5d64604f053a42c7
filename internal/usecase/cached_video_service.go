package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/hszk-dev/scenedex/internal/domain/model"
	"github.com/hszk-dev/scenedex/internal/infrastructure/cache"
	"github.com/hszk-dev/scenedex/internal/infrastructure/metrics"
)

// CachedVideoServiceConfig holds configuration for the status cache
// decorator.
type CachedVideoServiceConfig struct {
	// StatusTTL bounds how stale a polled status may be.
	StatusTTL time.Duration
}

// DefaultCachedVideoServiceConfig returns the default configuration.
func DefaultCachedVideoServiceConfig() CachedVideoServiceConfig {
	return CachedVideoServiceConfig{
		StatusTTL: 5 * time.Second,
	}
}

// cachedVideoService wraps VideoService with a short-TTL status cache.
// Status polling is the hot read path; everything else passes through.
type cachedVideoService struct {
	delegate VideoService
	cache    cache.StatusCache
	sfGroup  singleflight.Group

	statusTTL time.Duration
}

// NewCachedVideoService creates the caching decorator around a VideoService.
func NewCachedVideoService(
	delegate VideoService,
	statusCache cache.StatusCache,
	cfg CachedVideoServiceConfig,
) VideoService {
	return &cachedVideoService{
		delegate:  delegate,
		cache:     statusCache,
		statusTTL: cfg.StatusTTL,
	}
}

// InitUpload delegates to the underlying service.
func (s *cachedVideoService) InitUpload(ctx context.Context, input InitUploadInput) (*InitUploadOutput, error) {
	return s.delegate.InitUpload(ctx, input)
}

// CompleteUpload invalidates the cached status before delegating so
// the next poll reflects the hand-off to the pipeline.
func (s *cachedVideoService) CompleteUpload(ctx context.Context, userID, videoID uuid.UUID) (model.VideoState, error) {
	if err := s.cache.Delete(ctx, videoID); err != nil {
		// Log but don't fail - cache invalidation failure is non-critical
		slog.Warn("failed to invalidate status cache on complete upload",
			"video_id", videoID,
			"error", err,
		)
	}

	return s.delegate.CompleteUpload(ctx, userID, videoID)
}

// ListVideos delegates to the underlying service.
func (s *cachedVideoService) ListVideos(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Video, error) {
	return s.delegate.ListVideos(ctx, userID, limit, offset)
}

// GetVideo delegates to the underlying service.
func (s *cachedVideoService) GetVideo(ctx context.Context, userID, videoID uuid.UUID) (*model.Video, error) {
	return s.delegate.GetVideo(ctx, userID, videoID)
}

// ListScenes delegates to the underlying service.
func (s *cachedVideoService) ListScenes(ctx context.Context, userID, videoID uuid.UUID) ([]SceneView, error) {
	return s.delegate.ListScenes(ctx, userID, videoID)
}

// GetStatus serves the snapshot cache-aside, with singleflight so a
// poller stampede on one video costs a single database read.
//
// The cache key is the video ID alone; ownership is still checked on
// every cache miss, and a hit can only exist after an owner-scoped
// read populated it.
func (s *cachedVideoService) GetStatus(ctx context.Context, userID, videoID uuid.UUID) (*model.VideoStatus, error) {
	key := userID.String() + ":" + videoID.String()
	result, err, shared := s.sfGroup.Do(key, func() (any, error) {
		return s.getStatusWithCache(ctx, userID, videoID)
	})

	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightInitiated).Inc()
	}

	if err != nil {
		return nil, err
	}

	return result.(*model.VideoStatus), nil
}

// getStatusWithCache implements the cache-aside pattern.
func (s *cachedVideoService) getStatusWithCache(ctx context.Context, userID, videoID uuid.UUID) (*model.VideoStatus, error) {
	status, err := s.cache.Get(ctx, videoID)
	if err != nil {
		// Log cache error but continue to database
		slog.Warn("status cache get failed, falling back to database",
			"video_id", videoID,
			"error", err,
		)
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusError, metrics.CacheTypeRedis).Inc()
	}

	if status != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusHit, metrics.CacheTypeRedis).Inc()
		// Ownership is enforced against the database even on a hit.
		if _, err := s.delegate.GetVideo(ctx, userID, videoID); err != nil {
			return nil, err
		}
		return status, nil
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusMiss, metrics.CacheTypeRedis).Inc()

	status, err = s.delegate.GetStatus(ctx, userID, videoID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, status, s.statusTTL); err != nil {
		slog.Warn("failed to cache status",
			"video_id", videoID,
			"error", err,
		)
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusError, metrics.CacheTypeRedis).Inc()
	} else {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusSuccess, metrics.CacheTypeRedis).Inc()
	}

	return status, nil
}
