package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hszk-dev/scenedex/internal/domain/model"
	"github.com/hszk-dev/scenedex/internal/domain/repository"
)

func newTestVideo(t *testing.T, userID uuid.UUID, state model.VideoState) *model.Video {
	t.Helper()
	video, err := model.NewVideo(userID, "clip.mp4", "video/mp4", 1024, "Clip", "")
	if err != nil {
		t.Fatalf("NewVideo() error = %v", err)
	}
	video.State = state
	return video
}

func TestVideoService_InitUpload(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name    string
		input   InitUploadInput
		storage *mockObjectStorage
		videos  *mockVideoRepository
		wantErr error
	}{
		{
			name: "successful init",
			input: InitUploadInput{
				UserID:    userID,
				Filename:  "holiday.mp4",
				MimeType:  "video/mp4",
				SizeBytes: 2048,
				Title:     "Holiday",
			},
			storage: &mockObjectStorage{},
			videos:  &mockVideoRepository{},
		},
		{
			name: "unsupported mime type",
			input: InitUploadInput{
				UserID:    userID,
				Filename:  "notes.txt",
				MimeType:  "text/plain",
				SizeBytes: 10,
			},
			storage: &mockObjectStorage{},
			videos:  &mockVideoRepository{},
			wantErr: model.ErrInvalidMimeType,
		},
		{
			name: "oversized file",
			input: InitUploadInput{
				UserID:    userID,
				Filename:  "huge.mp4",
				MimeType:  "video/mp4",
				SizeBytes: model.MaxVideoSizeBytes + 1,
			},
			storage: &mockObjectStorage{},
			videos:  &mockVideoRepository{},
			wantErr: model.ErrInvalidSize,
		},
		{
			name: "presign failure",
			input: InitUploadInput{
				UserID:    userID,
				Filename:  "clip.mp4",
				MimeType:  "video/mp4",
				SizeBytes: 2048,
			},
			storage: &mockObjectStorage{
				presignUploadFn: func(ctx context.Context, bucket repository.Bucket, key, contentType string, sizeBytes int64, ttl time.Duration) (*repository.PresignedPut, error) {
					return nil, errors.New("minio unreachable")
				},
			},
			videos:  &mockVideoRepository{},
			wantErr: errors.New("presign upload"),
		},
		{
			name: "create failure",
			input: InitUploadInput{
				UserID:    userID,
				Filename:  "clip.mp4",
				MimeType:  "video/mp4",
				SizeBytes: 2048,
			},
			storage: &mockObjectStorage{},
			videos: &mockVideoRepository{
				createFn: func(ctx context.Context, video *model.Video) error {
					return errors.New("insert failed")
				},
			},
			wantErr: errors.New("create video"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewVideoService(tt.videos, &mockJobRepository{}, &mockSceneRepository{}, tt.storage, &mockTaskQueue{}, DefaultVideoServiceConfig())

			out, err := svc.InitUpload(context.Background(), tt.input)
			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("InitUpload() error = nil, want %v", tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("InitUpload() error = %v", err)
			}
			if out.Video.State != model.VideoStateUploading {
				t.Errorf("video state = %v, want uploading", out.Video.State)
			}
			if out.UploadURL == "" {
				t.Error("upload URL is empty")
			}
			if out.Video.StorageKey == "" {
				t.Error("storage key is empty")
			}
		})
	}
}

func TestVideoService_InitUpload_BindsContentTypeAndSize(t *testing.T) {
	var gotContentType string
	var gotSize int64
	storage := &mockObjectStorage{
		presignUploadFn: func(ctx context.Context, bucket repository.Bucket, key, contentType string, sizeBytes int64, ttl time.Duration) (*repository.PresignedPut, error) {
			gotContentType = contentType
			gotSize = sizeBytes
			return &repository.PresignedPut{URL: "http://example.com/put", ExpiresAt: time.Now().Add(ttl)}, nil
		},
	}
	svc := NewVideoService(&mockVideoRepository{}, &mockJobRepository{}, &mockSceneRepository{}, storage, &mockTaskQueue{}, DefaultVideoServiceConfig())

	_, err := svc.InitUpload(context.Background(), InitUploadInput{
		UserID:    uuid.New(),
		Filename:  "clip.webm",
		MimeType:  "video/webm",
		SizeBytes: 512,
	})
	if err != nil {
		t.Fatalf("InitUpload() error = %v", err)
	}
	if gotContentType != "video/webm" {
		t.Errorf("presigned content type = %q, want %q", gotContentType, "video/webm")
	}
	if gotSize != 512 {
		t.Errorf("presigned size = %d, want 512", gotSize)
	}
}

func TestVideoService_CompleteUpload(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name        string
		state       model.VideoState
		exists      bool
		updateErr   error
		jobErr      error
		wantErr     error
		wantState   model.VideoState
		wantPublish bool
	}{
		{
			name:        "hand-off from uploading",
			state:       model.VideoStateUploading,
			exists:      true,
			wantState:   model.VideoStateValidating,
			wantPublish: true,
		},
		{
			name:      "idempotent when already validating",
			state:     model.VideoStateValidating,
			exists:    true,
			wantState: model.VideoStateValidating,
		},
		{
			name:      "idempotent when already indexed",
			state:     model.VideoStateIndexed,
			exists:    true,
			wantState: model.VideoStateIndexed,
		},
		{
			name:      "idempotent when already failed",
			state:     model.VideoStateFailed,
			wantState: model.VideoStateFailed,
		},
		{
			name:    "deleted video is not processable",
			state:   model.VideoStateDeleted,
			wantErr: ErrVideoNotProcessable,
		},
		{
			name:    "object not uploaded yet",
			state:   model.VideoStateUploading,
			exists:  false,
			wantErr: ErrUploadNotReady,
		},
		{
			name:      "lost the completion race",
			state:     model.VideoStateUploading,
			exists:    true,
			updateErr: repository.ErrStaleState,
			wantState: model.VideoStateValidating,
		},
		{
			name:        "leftover pending job tolerated",
			state:       model.VideoStateUploading,
			exists:      true,
			jobErr:      repository.ErrDuplicateJob,
			wantState:   model.VideoStateValidating,
			wantPublish: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			video := newTestVideo(t, userID, tt.state)

			videos := &mockVideoRepository{
				getOwnedFn: func(ctx context.Context, gotUserID, id uuid.UUID) (*model.Video, error) {
					if gotUserID != userID {
						t.Errorf("GetOwned userID = %v, want %v", gotUserID, userID)
					}
					return video, nil
				},
				updateStateFn: func(ctx context.Context, id uuid.UUID, from, to model.VideoState) error {
					if from != model.VideoStateUploading || to != model.VideoStateValidating {
						t.Errorf("UpdateState %v->%v, want uploading->validating", from, to)
					}
					return tt.updateErr
				},
			}
			jobs := &mockJobRepository{
				createPendingFn: func(ctx context.Context, videoID uuid.UUID, stage model.JobStage) (*model.Job, error) {
					if stage != model.StageUploadValidate {
						t.Errorf("CreatePending stage = %v, want %v", stage, model.StageUploadValidate)
					}
					if tt.jobErr != nil {
						return nil, tt.jobErr
					}
					return model.NewJob(videoID, stage), nil
				},
			}
			storage := &mockObjectStorage{
				existsFn: func(ctx context.Context, bucket repository.Bucket, key string) (bool, error) {
					return tt.exists, nil
				},
			}
			published := false
			queue := &mockTaskQueue{
				publishFn: func(ctx context.Context, task repository.IndexTask) error {
					published = true
					if task.VideoID != video.ID {
						t.Errorf("published video ID = %v, want %v", task.VideoID, video.ID)
					}
					if task.RetryCount != 0 {
						t.Errorf("published retry count = %d, want 0", task.RetryCount)
					}
					return nil
				},
			}

			svc := NewVideoService(videos, jobs, &mockSceneRepository{}, storage, queue, DefaultVideoServiceConfig())
			state, err := svc.CompleteUpload(context.Background(), userID, video.ID)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CompleteUpload() error = %v, want %v", err, tt.wantErr)
				}
			} else {
				if err != nil {
					t.Fatalf("CompleteUpload() error = %v", err)
				}
				if state != tt.wantState {
					t.Errorf("CompleteUpload() state = %v, want %v", state, tt.wantState)
				}
			}
			if published != tt.wantPublish {
				t.Errorf("published = %v, want %v", published, tt.wantPublish)
			}
		})
	}
}

func TestVideoService_CompleteUpload_NotOwned(t *testing.T) {
	videos := &mockVideoRepository{
		getOwnedFn: func(ctx context.Context, userID, id uuid.UUID) (*model.Video, error) {
			return nil, repository.ErrVideoNotFound
		},
	}
	svc := NewVideoService(videos, &mockJobRepository{}, &mockSceneRepository{}, &mockObjectStorage{}, &mockTaskQueue{}, DefaultVideoServiceConfig())

	_, err := svc.CompleteUpload(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, repository.ErrVideoNotFound) {
		t.Errorf("CompleteUpload() error = %v, want %v", err, repository.ErrVideoNotFound)
	}
}

func TestVideoService_GetStatus(t *testing.T) {
	userID := uuid.New()
	video := newTestVideo(t, userID, model.VideoStateProcessing)

	job := model.NewJob(video.ID, model.StageASR)
	job.State = model.JobStateRunning
	job.Progress = 40

	videos := &mockVideoRepository{
		getOwnedFn: func(ctx context.Context, gotUserID, id uuid.UUID) (*model.Video, error) {
			return video, nil
		},
	}
	jobs := &mockJobRepository{
		listByVideoFn: func(ctx context.Context, videoID uuid.UUID) ([]*model.Job, error) {
			return []*model.Job{job}, nil
		},
	}

	svc := NewVideoService(videos, jobs, &mockSceneRepository{}, &mockObjectStorage{}, &mockTaskQueue{}, DefaultVideoServiceConfig())
	status, err := svc.GetStatus(context.Background(), userID, video.ID)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}

	if status.VideoID != video.ID {
		t.Errorf("status video ID = %v, want %v", status.VideoID, video.ID)
	}
	if status.State != model.VideoStateProcessing {
		t.Errorf("status state = %v, want processing", status.State)
	}
	if len(status.Stages) != 1 {
		t.Fatalf("stages = %d, want 1", len(status.Stages))
	}
	if status.Stages[0].Stage != model.StageASR || status.Stages[0].Progress != 40 {
		t.Errorf("stage snapshot = %+v", status.Stages[0])
	}
}

func TestVideoService_ListVideos(t *testing.T) {
	userID := uuid.New()
	want := []*model.Video{
		newTestVideo(t, userID, model.VideoStateIndexed),
		newTestVideo(t, userID, model.VideoStateUploading),
	}

	videos := &mockVideoRepository{
		listByUserFn: func(ctx context.Context, gotUserID uuid.UUID, limit, offset int) ([]*model.Video, error) {
			if limit != 20 || offset != 40 {
				t.Errorf("list page = (%d, %d), want (20, 40)", limit, offset)
			}
			return want, nil
		},
	}

	svc := NewVideoService(videos, &mockJobRepository{}, &mockSceneRepository{}, &mockObjectStorage{}, &mockTaskQueue{}, DefaultVideoServiceConfig())
	got, err := svc.ListVideos(context.Background(), userID, 20, 40)
	if err != nil {
		t.Fatalf("ListVideos() error = %v", err)
	}
	if len(got) != len(want) {
		t.Errorf("ListVideos() returned %d videos, want %d", len(got), len(want))
	}
}

func TestVideoService_ListScenes(t *testing.T) {
	userID := uuid.New()
	video := newTestVideo(t, userID, model.VideoStateIndexed)

	withSidecar, err := model.NewScene(video.ID, 0, 5)
	if err != nil {
		t.Fatalf("NewScene() error = %v", err)
	}
	withSidecar.SidecarKey = model.SidecarKey(userID, video.ID, withSidecar.ID)
	withoutSidecar, err := model.NewScene(video.ID, 5, 10)
	if err != nil {
		t.Fatalf("NewScene() error = %v", err)
	}

	videos := &mockVideoRepository{
		getOwnedFn: func(ctx context.Context, gotUserID, id uuid.UUID) (*model.Video, error) {
			if gotUserID != userID {
				return nil, repository.ErrVideoNotFound
			}
			return video, nil
		},
	}
	scenes := &mockSceneRepository{
		listByVideoFn: func(ctx context.Context, videoID uuid.UUID) ([]*model.Scene, error) {
			return []*model.Scene{withSidecar, withoutSidecar}, nil
		},
	}
	storage := &mockObjectStorage{
		presignDownloadFn: func(ctx context.Context, bucket repository.Bucket, key string, ttl time.Duration) (string, error) {
			if bucket != repository.BucketSidecars {
				t.Errorf("presign bucket = %s, want sidecars", bucket)
			}
			if key != withSidecar.SidecarKey {
				t.Errorf("presign key = %q, want %q", key, withSidecar.SidecarKey)
			}
			return "https://store.example.com/" + key, nil
		},
	}

	svc := NewVideoService(videos, &mockJobRepository{}, scenes, storage, &mockTaskQueue{}, DefaultVideoServiceConfig())
	views, err := svc.ListScenes(context.Background(), userID, video.ID)
	if err != nil {
		t.Fatalf("ListScenes() error = %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("ListScenes() returned %d scenes, want 2", len(views))
	}
	if views[0].SidecarURL == "" {
		t.Error("scene with a sidecar got no download URL")
	}
	if views[1].SidecarURL != "" {
		t.Errorf("scene without a sidecar got URL %q", views[1].SidecarURL)
	}

	// Ownership failure is uniform not-found.
	if _, err := svc.ListScenes(context.Background(), uuid.New(), video.ID); !errors.Is(err, repository.ErrVideoNotFound) {
		t.Errorf("ListScenes() for non-owner error = %v, want %v", err, repository.ErrVideoNotFound)
	}
}
