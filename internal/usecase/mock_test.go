package usecase

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/hszk-dev/scenedex/internal/domain/model"
	"github.com/hszk-dev/scenedex/internal/domain/repository"
	"github.com/hszk-dev/scenedex/internal/media"
	"github.com/hszk-dev/scenedex/internal/mis"
)

// mockVideoRepository provides a configurable mock for VideoRepository.
type mockVideoRepository struct {
	createFn      func(ctx context.Context, video *model.Video) error
	getByIDFn     func(ctx context.Context, id uuid.UUID) (*model.Video, error)
	getOwnedFn    func(ctx context.Context, userID, id uuid.UUID) (*model.Video, error)
	listByUserFn  func(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Video, error)
	updateStateFn func(ctx context.Context, id uuid.UUID, from, to model.VideoState) error
	setDurationFn func(ctx context.Context, id uuid.UUID, durationS float64) error
	markFailedFn  func(ctx context.Context, id uuid.UUID, errorText string) error
}

func (m *mockVideoRepository) Create(ctx context.Context, video *model.Video) error {
	if m.createFn != nil {
		return m.createFn(ctx, video)
	}
	return nil
}

func (m *mockVideoRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Video, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrVideoNotFound
}

func (m *mockVideoRepository) GetOwned(ctx context.Context, userID, id uuid.UUID) (*model.Video, error) {
	if m.getOwnedFn != nil {
		return m.getOwnedFn(ctx, userID, id)
	}
	return nil, repository.ErrVideoNotFound
}

func (m *mockVideoRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Video, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID, limit, offset)
	}
	return nil, nil
}

func (m *mockVideoRepository) UpdateState(ctx context.Context, id uuid.UUID, from, to model.VideoState) error {
	if m.updateStateFn != nil {
		return m.updateStateFn(ctx, id, from, to)
	}
	return nil
}

func (m *mockVideoRepository) SetDuration(ctx context.Context, id uuid.UUID, durationS float64) error {
	if m.setDurationFn != nil {
		return m.setDurationFn(ctx, id, durationS)
	}
	return nil
}

func (m *mockVideoRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorText string) error {
	if m.markFailedFn != nil {
		return m.markFailedFn(ctx, id, errorText)
	}
	return nil
}

// mockJobRepository provides a configurable mock for JobRepository.
type mockJobRepository struct {
	createPendingFn func(ctx context.Context, videoID uuid.UUID, stage model.JobStage) (*model.Job, error)
	startStageFn    func(ctx context.Context, videoID uuid.UUID, stage model.JobStage) (*model.Job, error)
	setProgressFn   func(ctx context.Context, jobID uuid.UUID, progress int) error
	completeFn      func(ctx context.Context, jobID uuid.UUID) error
	failFn          func(ctx context.Context, jobID uuid.UUID, errorText string) error
	listByVideoFn   func(ctx context.Context, videoID uuid.UUID) ([]*model.Job, error)
	hasActiveFn     func(ctx context.Context, videoID uuid.UUID, stage model.JobStage) (bool, error)
}

func (m *mockJobRepository) CreatePending(ctx context.Context, videoID uuid.UUID, stage model.JobStage) (*model.Job, error) {
	if m.createPendingFn != nil {
		return m.createPendingFn(ctx, videoID, stage)
	}
	return model.NewJob(videoID, stage), nil
}

func (m *mockJobRepository) StartStage(ctx context.Context, videoID uuid.UUID, stage model.JobStage) (*model.Job, error) {
	if m.startStageFn != nil {
		return m.startStageFn(ctx, videoID, stage)
	}
	job := model.NewJob(videoID, stage)
	job.State = model.JobStateRunning
	return job, nil
}

func (m *mockJobRepository) SetProgress(ctx context.Context, jobID uuid.UUID, progress int) error {
	if m.setProgressFn != nil {
		return m.setProgressFn(ctx, jobID, progress)
	}
	return nil
}

func (m *mockJobRepository) Complete(ctx context.Context, jobID uuid.UUID) error {
	if m.completeFn != nil {
		return m.completeFn(ctx, jobID)
	}
	return nil
}

func (m *mockJobRepository) Fail(ctx context.Context, jobID uuid.UUID, errorText string) error {
	if m.failFn != nil {
		return m.failFn(ctx, jobID, errorText)
	}
	return nil
}

func (m *mockJobRepository) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*model.Job, error) {
	if m.listByVideoFn != nil {
		return m.listByVideoFn(ctx, videoID)
	}
	return nil, nil
}

func (m *mockJobRepository) HasActive(ctx context.Context, videoID uuid.UUID, stage model.JobStage) (bool, error) {
	if m.hasActiveFn != nil {
		return m.hasActiveFn(ctx, videoID, stage)
	}
	return false, nil
}

// mockSceneRepository provides a configurable mock for SceneRepository.
type mockSceneRepository struct {
	listByVideoFn func(ctx context.Context, videoID uuid.UUID) ([]*model.Scene, error)
}

func (m *mockSceneRepository) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*model.Scene, error) {
	if m.listByVideoFn != nil {
		return m.listByVideoFn(ctx, videoID)
	}
	return nil, nil
}

// mockObjectStorage provides a configurable mock for ObjectStorage.
type mockObjectStorage struct {
	presignUploadFn   func(ctx context.Context, bucket repository.Bucket, key, contentType string, sizeBytes int64, ttl time.Duration) (*repository.PresignedPut, error)
	presignDownloadFn func(ctx context.Context, bucket repository.Bucket, key string, ttl time.Duration) (string, error)
	putFn             func(ctx context.Context, bucket repository.Bucket, key string, reader io.Reader, size int64, contentType string) error
	getFn             func(ctx context.Context, bucket repository.Bucket, key string) (io.ReadCloser, error)
	statFn            func(ctx context.Context, bucket repository.Bucket, key string) (*repository.ObjectInfo, error)
	existsFn          func(ctx context.Context, bucket repository.Bucket, key string) (bool, error)
	deleteFn          func(ctx context.Context, bucket repository.Bucket, key string) error
}

func (m *mockObjectStorage) PresignUpload(ctx context.Context, bucket repository.Bucket, key, contentType string, sizeBytes int64, ttl time.Duration) (*repository.PresignedPut, error) {
	if m.presignUploadFn != nil {
		return m.presignUploadFn(ctx, bucket, key, contentType, sizeBytes, ttl)
	}
	return &repository.PresignedPut{URL: "http://example.com/upload", ExpiresAt: time.Now().Add(ttl)}, nil
}

func (m *mockObjectStorage) PresignDownload(ctx context.Context, bucket repository.Bucket, key string, ttl time.Duration) (string, error) {
	if m.presignDownloadFn != nil {
		return m.presignDownloadFn(ctx, bucket, key, ttl)
	}
	return "http://example.com/download", nil
}

func (m *mockObjectStorage) Put(ctx context.Context, bucket repository.Bucket, key string, reader io.Reader, size int64, contentType string) error {
	if m.putFn != nil {
		return m.putFn(ctx, bucket, key, reader, size, contentType)
	}
	return nil
}

func (m *mockObjectStorage) Get(ctx context.Context, bucket repository.Bucket, key string) (io.ReadCloser, error) {
	if m.getFn != nil {
		return m.getFn(ctx, bucket, key)
	}
	return nil, repository.ErrObjectNotFound
}

func (m *mockObjectStorage) Stat(ctx context.Context, bucket repository.Bucket, key string) (*repository.ObjectInfo, error) {
	if m.statFn != nil {
		return m.statFn(ctx, bucket, key)
	}
	return nil, repository.ErrObjectNotFound
}

func (m *mockObjectStorage) Exists(ctx context.Context, bucket repository.Bucket, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, bucket, key)
	}
	return false, nil
}

func (m *mockObjectStorage) Delete(ctx context.Context, bucket repository.Bucket, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, bucket, key)
	}
	return nil
}

// mockTaskQueue provides a configurable mock for TaskQueue.
type mockTaskQueue struct {
	publishFn func(ctx context.Context, task repository.IndexTask) error
	consumeFn func(ctx context.Context, handler func(task repository.IndexTask) error) error
}

func (m *mockTaskQueue) PublishIndexTask(ctx context.Context, task repository.IndexTask) error {
	if m.publishFn != nil {
		return m.publishFn(ctx, task)
	}
	return nil
}

func (m *mockTaskQueue) ConsumeIndexTasks(ctx context.Context, handler func(task repository.IndexTask) error) error {
	if m.consumeFn != nil {
		return m.consumeFn(ctx, handler)
	}
	return nil
}

func (m *mockTaskQueue) Close() error { return nil }

// mockVideoLocker provides a configurable mock for VideoLocker.
type mockVideoLocker struct {
	tryLockFn func(ctx context.Context, videoID uuid.UUID) (func(), bool, error)
}

func (m *mockVideoLocker) TryLock(ctx context.Context, videoID uuid.UUID) (func(), bool, error) {
	if m.tryLockFn != nil {
		return m.tryLockFn(ctx, videoID)
	}
	return func() {}, true, nil
}

// mockCommitter provides a configurable mock for Committer.
type mockCommitter struct {
	commitFn func(ctx context.Context, commit repository.IndexCommit) error
}

func (m *mockCommitter) CommitIndex(ctx context.Context, commit repository.IndexCommit) error {
	if m.commitFn != nil {
		return m.commitFn(ctx, commit)
	}
	return nil
}

// mockFaceProfileRepository provides a configurable mock for FaceProfileRepository.
type mockFaceProfileRepository struct {
	listByUserFn func(ctx context.Context, userID uuid.UUID) ([]*model.FaceProfile, error)
}

func (m *mockFaceProfileRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.FaceProfile, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID)
	}
	return nil, nil
}

// mockProcessor provides a configurable mock for media.Processor.
type mockProcessor struct {
	probeFn        func(ctx context.Context, inputPath string) (*media.ProbeResult, error)
	extractAudioFn func(ctx context.Context, inputPath, outputPath string) error
	detectScenesFn func(ctx context.Context, inputPath string, durationS float64) ([]media.Span, error)
	extractFrameFn func(ctx context.Context, inputPath string, atS float64, outputPath string) error
}

func (m *mockProcessor) Probe(ctx context.Context, inputPath string) (*media.ProbeResult, error) {
	if m.probeFn != nil {
		return m.probeFn(ctx, inputPath)
	}
	return &media.ProbeResult{DurationS: 10, HasAudio: true, HasVideo: true}, nil
}

func (m *mockProcessor) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	if m.extractAudioFn != nil {
		return m.extractAudioFn(ctx, inputPath, outputPath)
	}
	return nil
}

func (m *mockProcessor) DetectScenes(ctx context.Context, inputPath string, durationS float64) ([]media.Span, error) {
	if m.detectScenesFn != nil {
		return m.detectScenesFn(ctx, inputPath, durationS)
	}
	return []media.Span{{StartS: 0, EndS: durationS}}, nil
}

func (m *mockProcessor) ExtractFrame(ctx context.Context, inputPath string, atS float64, outputPath string) error {
	if m.extractFrameFn != nil {
		return m.extractFrameFn(ctx, inputPath, atS, outputPath)
	}
	return nil
}

// mockInferenceClient provides a configurable mock for InferenceClient.
type mockInferenceClient struct {
	transcribeFn  func(ctx context.Context, wav []byte, language string) ([]mis.Segment, error)
	embedTextFn   func(ctx context.Context, texts []string) ([][]float32, error)
	embedImageFn  func(ctx context.Context, images [][]byte) ([][]float32, error)
	detectFacesFn func(ctx context.Context, image []byte) ([]mis.FaceDetection, error)
}

func (m *mockInferenceClient) Transcribe(ctx context.Context, wav []byte, language string) ([]mis.Segment, error) {
	if m.transcribeFn != nil {
		return m.transcribeFn(ctx, wav, language)
	}
	return nil, nil
}

func (m *mockInferenceClient) EmbedText(ctx context.Context, texts []string) ([][]float32, error) {
	if m.embedTextFn != nil {
		return m.embedTextFn(ctx, texts)
	}
	return unitVectors(len(texts), model.TextVecDim), nil
}

func (m *mockInferenceClient) EmbedImage(ctx context.Context, images [][]byte) ([][]float32, error) {
	if m.embedImageFn != nil {
		return m.embedImageFn(ctx, images)
	}
	return unitVectors(len(images), model.ImageVecDim), nil
}

func (m *mockInferenceClient) DetectFaces(ctx context.Context, image []byte) ([]mis.FaceDetection, error) {
	if m.detectFacesFn != nil {
		return m.detectFacesFn(ctx, image)
	}
	return nil, nil
}

// mockStatusCache provides a configurable mock for cache.StatusCache.
type mockStatusCache struct {
	getFn    func(ctx context.Context, videoID uuid.UUID) (*model.VideoStatus, error)
	setFn    func(ctx context.Context, status *model.VideoStatus, ttl time.Duration) error
	deleteFn func(ctx context.Context, videoID uuid.UUID) error
}

func (m *mockStatusCache) Get(ctx context.Context, videoID uuid.UUID) (*model.VideoStatus, error) {
	if m.getFn != nil {
		return m.getFn(ctx, videoID)
	}
	return nil, nil
}

func (m *mockStatusCache) Set(ctx context.Context, status *model.VideoStatus, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, status, ttl)
	}
	return nil
}

func (m *mockStatusCache) Delete(ctx context.Context, videoID uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, videoID)
	}
	return nil
}

// unitVectors builds n unit-norm vectors of the given dimension.
func unitVectors(n, dim int) [][]float32 {
	vectors := make([][]float32, n)
	for i := range vectors {
		v := make([]float32, dim)
		v[0] = 1
		vectors[i] = v
	}
	return vectors
}
