package model

import (
	"time"

	"github.com/google/uuid"
)

// JobStage identifies one of the ten pipeline stages.
type JobStage string

const (
	StageUploadValidate JobStage = "upload_validate"
	StageAudioExtract   JobStage = "audio_extract"
	StageASR            JobStage = "asr"
	StageSceneDetect    JobStage = "scene_detect"
	StageAlign          JobStage = "align"
	StageEmbedText      JobStage = "embed_text"
	StageSampleFrames   JobStage = "sample_frames"
	StageEmbedVision    JobStage = "embed_vision"
	StageBuildSidecar   JobStage = "build_sidecar"
	StageCommit         JobStage = "commit"
)

// PipelineStages lists all stages in execution order.
var PipelineStages = []JobStage{
	StageUploadValidate,
	StageAudioExtract,
	StageASR,
	StageSceneDetect,
	StageAlign,
	StageEmbedText,
	StageSampleFrames,
	StageEmbedVision,
	StageBuildSidecar,
	StageCommit,
}

func (s JobStage) IsValid() bool {
	for _, stage := range PipelineStages {
		if s == stage {
			return true
		}
	}
	return false
}

func (s JobStage) String() string { return string(s) }

// JobState is the execution state of a single stage job.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateCancelled JobState = "cancelled"
)

func (s JobState) IsValid() bool {
	switch s {
	case JobStatePending, JobStateRunning, JobStateCompleted, JobStateFailed, JobStateCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether the job still counts against the
// one-active-job-per-(video,stage) invariant.
func (s JobState) IsActive() bool {
	return s == JobStatePending || s == JobStateRunning
}

func (s JobState) String() string { return string(s) }

// Job tracks one pipeline stage for one video.
type Job struct {
	ID         uuid.UUID
	VideoID    uuid.UUID
	Stage      JobStage
	State      JobState
	Progress   int
	ErrorText  string
	StartedAt  *time.Time
	FinishedAt *time.Time
	CreatedAt  time.Time
}

// NewJob creates a pending job for a stage.
func NewJob(videoID uuid.UUID, stage JobStage) *Job {
	return &Job{
		ID:        uuid.New(),
		VideoID:   videoID,
		Stage:     stage,
		State:     JobStatePending,
		CreatedAt: time.Now(),
	}
}
