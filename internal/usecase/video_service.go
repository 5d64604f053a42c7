package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hszk-dev/scenedex/internal/domain/model"
	"github.com/hszk-dev/scenedex/internal/domain/repository"
	"github.com/hszk-dev/scenedex/internal/infrastructure/metrics"
)

var (
	// ErrUploadNotReady is returned by CompleteUpload when the object
	// has not arrived in storage yet.
	ErrUploadNotReady = errors.New("uploaded object not found in storage")

	// ErrVideoNotProcessable is returned when a video is in a terminal
	// state that cannot accept the requested operation.
	ErrVideoNotProcessable = errors.New("video is in a terminal state")
)

// InitUploadInput contains the input parameters for starting an upload.
type InitUploadInput struct {
	UserID      uuid.UUID
	Filename    string
	MimeType    string
	SizeBytes   int64
	Title       string
	Description string
}

// InitUploadOutput contains the created video and the presigned PUT.
type InitUploadOutput struct {
	Video     *model.Video
	UploadURL string
	ExpiresAt time.Time
}

// VideoService defines the control-plane operations for videos.
type VideoService interface {
	// InitUpload registers video metadata and returns a presigned
	// upload URL bound to the declared content type and size.
	InitUpload(ctx context.Context, input InitUploadInput) (*InitUploadOutput, error)

	// CompleteUpload confirms the object landed in storage and hands
	// the video to the indexing pipeline, returning the resulting
	// state. Idempotent: a video already past uploading reports its
	// current state without a second hand-off.
	CompleteUpload(ctx context.Context, userID, videoID uuid.UUID) (model.VideoState, error)

	// ListVideos retrieves a page of the user's videos, newest first.
	ListVideos(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Video, error)

	// GetVideo retrieves one of the user's videos.
	GetVideo(ctx context.Context, userID, videoID uuid.UUID) (*model.Video, error)

	// GetStatus returns the polling snapshot for one of the user's videos.
	GetStatus(ctx context.Context, userID, videoID uuid.UUID) (*model.VideoStatus, error)

	// ListScenes returns the indexed scenes of one of the user's videos,
	// each with a presigned sidecar download when a sidecar exists.
	ListScenes(ctx context.Context, userID, videoID uuid.UUID) ([]SceneView, error)
}

// SceneView pairs a scene with its presigned sidecar URL.
type SceneView struct {
	Scene      *model.Scene
	SidecarURL string
}

// VideoServiceConfig holds configuration for VideoService.
type VideoServiceConfig struct {
	UploadURLTTL time.Duration
}

// DefaultVideoServiceConfig returns the default configuration.
func DefaultVideoServiceConfig() VideoServiceConfig {
	return VideoServiceConfig{
		UploadURLTTL: 15 * time.Minute,
	}
}

type videoService struct {
	videos  repository.VideoRepository
	jobs    repository.JobRepository
	scenes  repository.SceneRepository
	storage repository.ObjectStorage
	queue   repository.TaskQueue

	uploadURLTTL time.Duration
}

// NewVideoService creates a new VideoService instance.
func NewVideoService(
	videos repository.VideoRepository,
	jobs repository.JobRepository,
	scenes repository.SceneRepository,
	storage repository.ObjectStorage,
	queue repository.TaskQueue,
	cfg VideoServiceConfig,
) VideoService {
	return &videoService{
		videos:       videos,
		jobs:         jobs,
		scenes:       scenes,
		storage:      storage,
		queue:        queue,
		uploadURLTTL: cfg.UploadURLTTL,
	}
}

// InitUpload validates the declared metadata, persists the video in
// the uploading state, and presigns a PUT for the client.
func (s *videoService) InitUpload(ctx context.Context, input InitUploadInput) (*InitUploadOutput, error) {
	video, err := model.NewVideo(input.UserID, input.Filename, input.MimeType, input.SizeBytes, input.Title, input.Description)
	if err != nil {
		return nil, err
	}

	presigned, err := s.storage.PresignUpload(ctx, repository.BucketUploads, video.StorageKey, video.MimeType, video.SizeBytes, s.uploadURLTTL)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	if err := s.videos.Create(ctx, video); err != nil {
		return nil, fmt.Errorf("create video: %w", err)
	}

	return &InitUploadOutput{
		Video:     video,
		UploadURL: presigned.URL,
		ExpiresAt: presigned.ExpiresAt,
	}, nil
}

// CompleteUpload hands an uploaded video to the pipeline. The state
// CAS makes concurrent completions race safely: exactly one caller
// moves uploading->validating and enqueues the task.
func (s *videoService) CompleteUpload(ctx context.Context, userID, videoID uuid.UUID) (model.VideoState, error) {
	video, err := s.videos.GetOwned(ctx, userID, videoID)
	if err != nil {
		return "", err
	}

	switch video.State {
	case model.VideoStateUploading:
		// proceed
	case model.VideoStateValidating, model.VideoStateProcessing, model.VideoStateIndexed, model.VideoStateFailed:
		return video.State, nil // already handed off, report where it landed
	default:
		return "", fmt.Errorf("%w: %s", ErrVideoNotProcessable, video.State)
	}

	exists, err := s.storage.Exists(ctx, repository.BucketUploads, video.StorageKey)
	if err != nil {
		return "", fmt.Errorf("check uploaded object: %w", err)
	}
	if !exists {
		return "", ErrUploadNotReady
	}

	if err := s.videos.UpdateState(ctx, videoID, model.VideoStateUploading, model.VideoStateValidating); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return model.VideoStateValidating, nil // a concurrent completion won the race
		}
		return "", fmt.Errorf("transition to validating: %w", err)
	}

	if _, err := s.jobs.CreatePending(ctx, videoID, model.StageUploadValidate); err != nil {
		// A leftover pending job from an interrupted hand-off is fine;
		// the pipeline promotes it on entry.
		if !errors.Is(err, repository.ErrDuplicateJob) {
			return "", fmt.Errorf("create validate job: %w", err)
		}
	}

	if err := s.queue.PublishIndexTask(ctx, repository.IndexTask{VideoID: videoID}); err != nil {
		return "", fmt.Errorf("publish index task: %w", err)
	}
	metrics.TasksPublishedTotal.Inc()

	return model.VideoStateValidating, nil
}

// ListVideos retrieves a page of the user's videos.
func (s *videoService) ListVideos(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Video, error) {
	return s.videos.ListByUser(ctx, userID, limit, offset)
}

// GetVideo retrieves one of the user's videos.
func (s *videoService) GetVideo(ctx context.Context, userID, videoID uuid.UUID) (*model.Video, error) {
	return s.videos.GetOwned(ctx, userID, videoID)
}

// GetStatus assembles the status snapshot from the video row and its
// stage jobs.
func (s *videoService) GetStatus(ctx context.Context, userID, videoID uuid.UUID) (*model.VideoStatus, error) {
	video, err := s.videos.GetOwned(ctx, userID, videoID)
	if err != nil {
		return nil, err
	}

	jobs, err := s.jobs.ListByVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	return model.NewVideoStatus(video, jobs), nil
}

// ListScenes returns the scenes of an owned video in start order. An
// empty list for a not-yet-indexed video is not an error; scenes only
// exist after the commit stage.
func (s *videoService) ListScenes(ctx context.Context, userID, videoID uuid.UUID) ([]SceneView, error) {
	if _, err := s.videos.GetOwned(ctx, userID, videoID); err != nil {
		return nil, err
	}

	scenes, err := s.scenes.ListByVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}

	views := make([]SceneView, 0, len(scenes))
	for _, scene := range scenes {
		view := SceneView{Scene: scene}
		if scene.SidecarKey != "" {
			url, err := s.storage.PresignDownload(ctx, repository.BucketSidecars, scene.SidecarKey, s.uploadURLTTL)
			if err != nil {
				return nil, fmt.Errorf("presign sidecar %s: %w", scene.SidecarKey, err)
			}
			view.SidecarURL = url
		}
		views = append(views, view)
	}

	return views, nil
}
