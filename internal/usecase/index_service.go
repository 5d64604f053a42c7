package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hszk-dev/scenedex/internal/domain/model"
	"github.com/hszk-dev/scenedex/internal/domain/repository"
	"github.com/hszk-dev/scenedex/internal/infrastructure/cache"
	"github.com/hszk-dev/scenedex/internal/infrastructure/metrics"
	"github.com/hszk-dev/scenedex/internal/media"
	"github.com/hszk-dev/scenedex/internal/mis"
)

// InferenceClient is the pipeline's view of the model inference
// service. *mis.Client satisfies it.
type InferenceClient interface {
	Transcribe(ctx context.Context, wav []byte, language string) ([]mis.Segment, error)
	EmbedText(ctx context.Context, texts []string) ([][]float32, error)
	EmbedImage(ctx context.Context, images [][]byte) ([][]float32, error)
	DetectFaces(ctx context.Context, image []byte) ([]mis.FaceDetection, error)
}

// fatalTaskError marks a pipeline failure that no retry can fix: bad
// media, validation breaches, oversized input. The video is marked
// failed and the task is acked.
type fatalTaskError struct {
	reason string
	err    error
}

func (e *fatalTaskError) Error() string {
	if e.err != nil {
		return e.reason + ": " + e.err.Error()
	}
	return e.reason
}

func (e *fatalTaskError) Unwrap() error { return e.err }

func fatalf(reason string, err error) error {
	return &fatalTaskError{reason: reason, err: err}
}

// IndexServiceConfig holds configuration for the indexing pipeline.
type IndexServiceConfig struct {
	// TempDir is the base directory for per-task scratch space.
	TempDir string
	// MaxRetries is the broker-side republish ceiling; at the ceiling
	// a transient failure finalizes the video as failed.
	MaxRetries int
	// ASRLanguage is the language hint for recognition ("" = auto).
	ASRLanguage string
	// FaceMatchThreshold is the cosine similarity above which a
	// detected face counts as an enrolled person.
	FaceMatchThreshold float64
}

// DefaultIndexServiceConfig returns the default configuration.
func DefaultIndexServiceConfig() IndexServiceConfig {
	return IndexServiceConfig{
		TempDir:            os.TempDir(),
		MaxRetries:         2,
		FaceMatchThreshold: 0.5,
	}
}

// IndexService runs the indexing pipeline for queued tasks.
type IndexService interface {
	// ProcessTask executes the full pipeline for one task. A nil
	// return acks the task; an error return lets the queue retry it.
	ProcessTask(ctx context.Context, task repository.IndexTask) error
}

type indexService struct {
	videos    repository.VideoRepository
	jobs      repository.JobRepository
	profiles  repository.FaceProfileRepository
	committer repository.Committer
	locker    repository.VideoLocker
	storage   repository.ObjectStorage
	cache     cache.StatusCache // may be nil
	processor media.Processor
	inference InferenceClient

	config IndexServiceConfig
}

// NewIndexService creates a new IndexService instance.
func NewIndexService(
	videos repository.VideoRepository,
	jobs repository.JobRepository,
	profiles repository.FaceProfileRepository,
	committer repository.Committer,
	locker repository.VideoLocker,
	storage repository.ObjectStorage,
	statusCache cache.StatusCache,
	processor media.Processor,
	inference InferenceClient,
	cfg IndexServiceConfig,
) IndexService {
	return &indexService{
		videos:    videos,
		jobs:      jobs,
		profiles:  profiles,
		committer: committer,
		locker:    locker,
		storage:   storage,
		cache:     statusCache,
		processor: processor,
		inference: inference,
		config:    cfg,
	}
}

// pipelineRun carries the artifacts between stages of one task.
type pipelineRun struct {
	video     *model.Video
	workDir   string
	inputPath string
	wavPath   string
	probe     *media.ProbeResult
	segments  []mis.Segment
	spans     []media.Span
	scenes    []*model.Scene
	frames    map[uuid.UUID][]byte
}

// ProcessTask executes the pipeline for one video.
//
// Entry is guarded twice: the state check filters duplicate
// deliveries, and the advisory lock serializes concurrent workers on
// the same video. Losing either guard is a silent no-op.
func (s *indexService) ProcessTask(ctx context.Context, task repository.IndexTask) error {
	video, err := s.videos.GetByID(ctx, task.VideoID)
	if err != nil {
		if errors.Is(err, repository.ErrVideoNotFound) {
			slog.Warn("index task for unknown video, dropping", "video_id", task.VideoID)
			metrics.PipelineRunsTotal.WithLabelValues(metrics.PipelineOutcomeSkipped).Inc()
			return nil
		}
		return fmt.Errorf("get video: %w", err)
	}

	if !s.eligible(video) {
		metrics.PipelineRunsTotal.WithLabelValues(metrics.PipelineOutcomeSkipped).Inc()
		return nil
	}

	release, ok, err := s.locker.TryLock(ctx, video.ID)
	if err != nil {
		return fmt.Errorf("acquire video lock: %w", err)
	}
	if !ok {
		slog.Info("video locked by another worker, skipping", "video_id", video.ID)
		metrics.PipelineRunsTotal.WithLabelValues(metrics.PipelineOutcomeSkipped).Inc()
		return nil
	}
	defer release()

	err = s.runPipeline(ctx, video)
	s.invalidateStatus(video.ID)

	if err == nil {
		metrics.PipelineRunsTotal.WithLabelValues(metrics.PipelineOutcomeIndexed).Inc()
		slog.Info("video indexed", "video_id", video.ID)
		return nil
	}

	var fatal *fatalTaskError
	if errors.As(err, &fatal) {
		s.finalizeFailed(ctx, video.ID, fatal.reason)
		return nil // fatal: ack, no retry
	}

	if task.RetryCount >= s.config.MaxRetries {
		s.finalizeFailed(ctx, video.ID, "retries exhausted: "+truncateReason(err.Error()))
		return err // the queue logs and drops at the ceiling
	}

	metrics.PipelineRunsTotal.WithLabelValues(metrics.PipelineOutcomeRetried).Inc()
	slog.Warn("pipeline failed, task will be retried",
		"video_id", video.ID,
		"retry_count", task.RetryCount,
		"error", err,
	)
	return err
}

// eligible applies the pipeline entry guard.
func (s *indexService) eligible(video *model.Video) bool {
	if video.IndexedAt != nil {
		return false
	}
	return video.State == model.VideoStateValidating || video.State == model.VideoStateProcessing
}

func (s *indexService) runPipeline(ctx context.Context, video *model.Video) error {
	workDir := filepath.Join(s.config.TempDir, "scenedex", video.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	run := &pipelineRun{
		video:   video,
		workDir: workDir,
		frames:  make(map[uuid.UUID][]byte),
	}

	stages := []struct {
		stage model.JobStage
		fn    func(ctx context.Context, job *model.Job, run *pipelineRun) error
	}{
		{model.StageUploadValidate, s.stageUploadValidate},
		{model.StageAudioExtract, s.stageAudioExtract},
		{model.StageASR, s.stageASR},
		{model.StageSceneDetect, s.stageSceneDetect},
		{model.StageAlign, s.stageAlign},
		{model.StageEmbedText, s.stageEmbedText},
		{model.StageSampleFrames, s.stageSampleFrames},
		{model.StageEmbedVision, s.stageEmbedVision},
		{model.StageBuildSidecar, s.stageBuildSidecar},
	}

	for _, st := range stages {
		if err := s.runStage(ctx, st.stage, run, st.fn); err != nil {
			return err
		}
	}

	return s.runCommit(ctx, run)
}

// runStage wraps one stage with job bookkeeping and metrics.
func (s *indexService) runStage(ctx context.Context, stage model.JobStage, run *pipelineRun, fn func(ctx context.Context, job *model.Job, run *pipelineRun) error) error {
	job, err := s.jobs.StartStage(ctx, run.video.ID, stage)
	if err != nil {
		return fmt.Errorf("start stage %s: %w", stage, err)
	}

	start := time.Now()
	err = fn(ctx, job, run)
	duration := time.Since(start).Seconds()

	if err != nil {
		metrics.StageDurationSeconds.WithLabelValues(stage.String(), metrics.StageOutcomeError).Observe(duration)
		s.failJob(job.ID, err)
		return fmt.Errorf("stage %s: %w", stage, err)
	}

	metrics.StageDurationSeconds.WithLabelValues(stage.String(), metrics.StageOutcomeSuccess).Observe(duration)
	if err := s.jobs.Complete(ctx, job.ID); err != nil {
		return fmt.Errorf("complete stage %s: %w", stage, err)
	}
	return nil
}

// stageUploadValidate downloads the original, verifies it against the
// declared limits, records the duration, and moves the video to
// processing.
func (s *indexService) stageUploadValidate(ctx context.Context, job *model.Job, run *pipelineRun) error {
	info, err := s.storage.Stat(ctx, repository.BucketUploads, run.video.StorageKey)
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			return fatalf("uploaded object missing from storage", err)
		}
		return fmt.Errorf("stat original: %w", err)
	}
	if info.Size > model.MaxVideoSizeBytes {
		return fatalf(fmt.Sprintf("file exceeds %d bytes", int64(model.MaxVideoSizeBytes)), nil)
	}

	inputPath, err := s.downloadOriginal(ctx, run.video.StorageKey, run.workDir)
	if err != nil {
		return fmt.Errorf("download original: %w", err)
	}
	run.inputPath = inputPath

	if err := s.jobs.SetProgress(ctx, job.ID, 50); err != nil {
		slog.Warn("failed to set job progress", "job_id", job.ID, "error", err)
	}

	probe, err := s.processor.Probe(ctx, inputPath)
	if err != nil {
		if errors.Is(err, media.ErrNoVideoStream) {
			return fatalf("file has no video stream", err)
		}
		return fatalf("file is not decodable video", err)
	}
	if probe.DurationS > model.MaxVideoDurationSeconds {
		return fatalf(fmt.Sprintf("duration %.1fs exceeds %.0fs limit", probe.DurationS, model.MaxVideoDurationSeconds), nil)
	}
	run.probe = probe

	if err := s.videos.SetDuration(ctx, run.video.ID, probe.DurationS); err != nil {
		return fmt.Errorf("set duration: %w", err)
	}
	run.video.DurationS = &probe.DurationS

	if run.video.State == model.VideoStateValidating {
		if err := s.videos.UpdateState(ctx, run.video.ID, model.VideoStateValidating, model.VideoStateProcessing); err != nil {
			// A resumed task may find the transition already done.
			if !errors.Is(err, repository.ErrStaleState) {
				return fmt.Errorf("transition to processing: %w", err)
			}
		}
		run.video.State = model.VideoStateProcessing
	}

	return nil
}

// stageAudioExtract produces the mono 16 kHz WAV speech recognition
// wants. Silent videos skip straight through.
func (s *indexService) stageAudioExtract(ctx context.Context, _ *model.Job, run *pipelineRun) error {
	if !run.probe.HasAudio {
		return nil
	}

	wavPath := filepath.Join(run.workDir, "audio.wav")
	if err := s.processor.ExtractAudio(ctx, run.inputPath, wavPath); err != nil {
		return fatalf("audio extraction failed", err)
	}
	run.wavPath = wavPath
	return nil
}

// stageASR transcribes the extracted audio. No audio means no segments.
func (s *indexService) stageASR(ctx context.Context, _ *model.Job, run *pipelineRun) error {
	if run.wavPath == "" {
		return nil
	}

	wav, err := os.ReadFile(run.wavPath)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}

	segments, err := s.inference.Transcribe(ctx, wav, s.config.ASRLanguage)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}
	run.segments = segments
	return nil
}

// stageSceneDetect splits the timeline on visual cuts.
func (s *indexService) stageSceneDetect(ctx context.Context, _ *model.Job, run *pipelineRun) error {
	spans, err := s.processor.DetectScenes(ctx, run.inputPath, run.probe.DurationS)
	if err != nil {
		return fatalf("scene detection failed", err)
	}
	run.spans = spans
	return nil
}

// stageAlign builds the scene entities and attaches each one the
// transcript text whose segments overlap its interval.
func (s *indexService) stageAlign(_ context.Context, _ *model.Job, run *pipelineRun) error {
	scenes := make([]*model.Scene, 0, len(run.spans))
	for _, span := range run.spans {
		scene, err := model.NewScene(run.video.ID, span.StartS, span.EndS)
		if err != nil {
			return fmt.Errorf("build scene for [%v, %v): %w", span.StartS, span.EndS, err)
		}
		scene.Transcript = alignTranscript(run.segments, span)
		scenes = append(scenes, scene)
	}
	run.scenes = scenes
	return nil
}

// stageEmbedText embeds non-empty transcripts in one batch. Scenes
// with no speech keep a null text vector.
func (s *indexService) stageEmbedText(ctx context.Context, _ *model.Job, run *pipelineRun) error {
	var texts []string
	var withText []*model.Scene
	for _, scene := range run.scenes {
		if strings.TrimSpace(scene.Transcript) == "" {
			continue
		}
		texts = append(texts, scene.Transcript)
		withText = append(withText, scene)
	}
	if len(texts) == 0 {
		return nil
	}

	vectors, err := s.inference.EmbedText(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed text: %w", err)
	}

	for i, scene := range withText {
		if err := scene.SetTextVec(vectors[i]); err != nil {
			return fatalf("text embedding rejected", err)
		}
	}
	return nil
}

// stageSampleFrames grabs one representative frame per scene: the
// midpoint, falling back to the scene start.
func (s *indexService) stageSampleFrames(ctx context.Context, _ *model.Job, run *pipelineRun) error {
	for i, scene := range run.scenes {
		framePath := filepath.Join(run.workDir, fmt.Sprintf("frame_%03d.jpg", i))

		midpoint := (scene.StartS + scene.EndS) / 2
		err := s.processor.ExtractFrame(ctx, run.inputPath, midpoint, framePath)
		if err != nil {
			err = s.processor.ExtractFrame(ctx, run.inputPath, scene.StartS, framePath)
		}
		if err != nil {
			slog.Warn("no frame extractable for scene, skipping visuals",
				"video_id", run.video.ID,
				"scene_start", scene.StartS,
				"error", err,
			)
			continue
		}

		frame, err := os.ReadFile(framePath)
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		run.frames[scene.ID] = frame
	}
	return nil
}

// stageEmbedVision embeds the sampled frames in one batch and tags
// scenes with enrolled people found in them.
func (s *indexService) stageEmbedVision(ctx context.Context, _ *model.Job, run *pipelineRun) error {
	var images [][]byte
	var withFrame []*model.Scene
	for _, scene := range run.scenes {
		frame, ok := run.frames[scene.ID]
		if !ok {
			continue
		}
		images = append(images, frame)
		withFrame = append(withFrame, scene)
	}
	if len(images) == 0 {
		return nil
	}

	vectors, err := s.inference.EmbedImage(ctx, images)
	if err != nil {
		return fmt.Errorf("embed images: %w", err)
	}
	for i, scene := range withFrame {
		if err := scene.SetImageVec(vectors[i]); err != nil {
			return fatalf("image embedding rejected", err)
		}
	}

	s.tagFaces(ctx, run, withFrame)
	return nil
}

// tagFaces annotates scenes with enrolled people. Face tagging is
// enrichment: any failure logs and moves on.
func (s *indexService) tagFaces(ctx context.Context, run *pipelineRun, scenes []*model.Scene) {
	profiles, err := s.profiles.ListByUser(ctx, run.video.UserID)
	if err != nil {
		slog.Warn("failed to load face profiles, skipping face tags",
			"user_id", run.video.UserID,
			"error", err,
		)
		return
	}

	for _, scene := range scenes {
		faces, err := s.inference.DetectFaces(ctx, run.frames[scene.ID])
		if err != nil {
			slog.Warn("face detection failed, skipping face tags",
				"video_id", run.video.ID,
				"scene_start", scene.StartS,
				"error", err,
			)
			return
		}
		if len(faces) == 0 {
			continue
		}

		tags := map[string]any{"face_count": len(faces)}
		if people := matchProfiles(faces, profiles, s.config.FaceMatchThreshold); len(people) > 0 {
			tags["people"] = people
		}
		scene.VisionTags = tags
	}
}

// sidecarDoc is the per-scene JSON artifact stored alongside the
// index, holding the full alignment detail the scenes table drops.
type sidecarDoc struct {
	SceneID    uuid.UUID      `json:"scene_id"`
	VideoID    uuid.UUID      `json:"video_id"`
	StartS     float64        `json:"start_s"`
	EndS       float64        `json:"end_s"`
	Transcript string         `json:"transcript"`
	Segments   []mis.Segment  `json:"segments"`
	VisionTags map[string]any `json:"vision_tags,omitempty"`
	Embedding  sidecarEmbed   `json:"embedding"`
	CreatedAt  time.Time      `json:"created_at"`
}

type sidecarEmbed struct {
	TextDim  int  `json:"text_dim"`
	ImageDim int  `json:"image_dim"`
	HasText  bool `json:"has_text"`
	HasImage bool `json:"has_image"`
}

// stageBuildSidecar uploads one JSON sidecar per scene and records its
// key on the scene row for the commit.
func (s *indexService) stageBuildSidecar(ctx context.Context, _ *model.Job, run *pipelineRun) error {
	for _, scene := range run.scenes {
		doc := sidecarDoc{
			SceneID:    scene.ID,
			VideoID:    scene.VideoID,
			StartS:     scene.StartS,
			EndS:       scene.EndS,
			Transcript: scene.Transcript,
			Segments:   overlappingSegments(run.segments, media.Span{StartS: scene.StartS, EndS: scene.EndS}),
			VisionTags: scene.VisionTags,
			Embedding: sidecarEmbed{
				TextDim:  model.TextVecDim,
				ImageDim: model.ImageVecDim,
				HasText:  scene.TextVec != nil,
				HasImage: scene.ImageVec != nil,
			},
			CreatedAt: scene.CreatedAt,
		}

		payload, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode sidecar: %w", err)
		}

		key := model.SidecarKey(run.video.UserID, run.video.ID, scene.ID)
		if err := s.storage.Put(ctx, repository.BucketSidecars, key, bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
			return fmt.Errorf("upload sidecar: %w", err)
		}
		scene.SidecarKey = key
	}
	return nil
}

// runCommit executes the commit stage: one serializable transaction
// writing every scene, the indexed transition, and the job completion.
func (s *indexService) runCommit(ctx context.Context, run *pipelineRun) error {
	job, err := s.jobs.StartStage(ctx, run.video.ID, model.StageCommit)
	if err != nil {
		return fmt.Errorf("start stage %s: %w", model.StageCommit, err)
	}

	duration := run.probe.DurationS
	if err := model.ValidateTimeline(run.scenes, duration); err != nil {
		s.failJob(job.ID, err)
		return fatalf("scene timeline invalid", err)
	}

	start := time.Now()
	err = s.committer.CommitIndex(ctx, repository.IndexCommit{
		VideoID:     run.video.ID,
		Scenes:      run.scenes,
		IndexedAt:   time.Now().UTC(),
		CompleteJob: job.ID,
	})
	elapsed := time.Since(start).Seconds()

	if err != nil {
		metrics.StageDurationSeconds.WithLabelValues(model.StageCommit.String(), metrics.StageOutcomeError).Observe(elapsed)
		s.failJob(job.ID, err)
		if errors.Is(err, repository.ErrStaleState) {
			return fatalf("video left processing before commit", err)
		}
		return fmt.Errorf("commit index: %w", err)
	}

	metrics.StageDurationSeconds.WithLabelValues(model.StageCommit.String(), metrics.StageOutcomeSuccess).Observe(elapsed)
	return nil
}

// failJob records the stage failure on a fresh context: a stage often
// fails precisely because the task context timed out or was cancelled,
// and the row must still land so the job does not stay running forever.
func (s *indexService) failJob(jobID uuid.UUID, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if failErr := s.jobs.Fail(ctx, jobID, truncateReason(err.Error())); failErr != nil {
		slog.Error("failed to mark job failed", "job_id", jobID, "error", failErr)
	}
}

// finalizeFailed moves the video to failed and records the outcome.
func (s *indexService) finalizeFailed(ctx context.Context, videoID uuid.UUID, reason string) {
	if err := s.videos.MarkFailed(ctx, videoID, reason); err != nil {
		slog.Error("failed to mark video failed",
			"video_id", videoID,
			"reason", reason,
			"error", err,
		)
	}
	s.invalidateStatus(videoID)
	metrics.PipelineRunsTotal.WithLabelValues(metrics.PipelineOutcomeFailed).Inc()
	slog.Warn("video indexing failed", "video_id", videoID, "reason", reason)
}

func (s *indexService) invalidateStatus(videoID uuid.UUID) {
	if s.cache == nil {
		return
	}
	// Best-effort on a fresh context: the task context may be dead.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, videoID); err != nil {
		slog.Warn("failed to invalidate status cache", "video_id", videoID, "error", err)
	}
}

// downloadOriginal streams the original upload to local scratch space.
func (s *indexService) downloadOriginal(ctx context.Context, key, workDir string) (string, error) {
	reader, err := s.storage.Get(ctx, repository.BucketUploads, key)
	if err != nil {
		return "", err
	}
	defer func() { _ = reader.Close() }()

	filename := filepath.Base(key)
	if filename == "." || filename == "/" {
		filename = "original"
	}

	localPath := filepath.Join(workDir, filename)
	file, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create local file: %w", err)
	}

	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("copy to local file: %w", err)
	}

	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close local file: %w", err)
	}

	return localPath, nil
}

// alignTranscript joins the text of every segment overlapping the span.
// Overlap is strict: a segment touching only the boundary contributes
// nothing.
func alignTranscript(segments []mis.Segment, span media.Span) string {
	var parts []string
	for _, seg := range overlappingSegments(segments, span) {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// overlappingSegments filters segments intersecting the open interval.
func overlappingSegments(segments []mis.Segment, span media.Span) []mis.Segment {
	var out []mis.Segment
	for _, seg := range segments {
		if seg.StartS < span.EndS && seg.EndS > span.StartS {
			out = append(out, seg)
		}
	}
	return out
}

// matchProfiles reports the distinct enrolled names whose embeddings
// sit close enough to any detected face. Vectors are unit-normalized,
// so the dot product is the cosine similarity.
func matchProfiles(faces []mis.FaceDetection, profiles []*model.FaceProfile, threshold float64) []string {
	var names []string
	seen := make(map[string]bool)
	for _, profile := range profiles {
		if len(profile.FaceVec) == 0 || seen[profile.Name] {
			continue
		}
		for _, face := range faces {
			if len(face.Vector) != len(profile.FaceVec) {
				continue
			}
			if dot(face.Vector, profile.FaceVec) >= threshold {
				names = append(names, profile.Name)
				seen[profile.Name] = true
				break
			}
		}
	}
	return names
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// truncateReason bounds stored failure reasons.
func truncateReason(reason string) string {
	const maxLen = 500
	if len(reason) <= maxLen {
		return reason
	}
	return reason[:maxLen]
}
