package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hszk-dev/scenedex/internal/domain/model"
)

// JobRepository defines persistence for pipeline stage jobs. At most
// one job per (video_id, stage) may be pending or running; the
// database enforces this with a partial unique index and StartStage
// leans on it.
type JobRepository interface {
	// CreatePending inserts a pending job for a stage.
	CreatePending(ctx context.Context, videoID uuid.UUID, stage model.JobStage) (*model.Job, error)

	// StartStage moves the stage's pending job to running, or inserts
	// a running job if none is pending. Returns the running job.
	StartStage(ctx context.Context, videoID uuid.UUID, stage model.JobStage) (*model.Job, error)

	// SetProgress updates a running job's progress (0-100).
	SetProgress(ctx context.Context, jobID uuid.UUID, progress int) error

	// Complete marks a job completed with progress 100.
	Complete(ctx context.Context, jobID uuid.UUID) error

	// Fail marks a job failed with a short reason.
	Fail(ctx context.Context, jobID uuid.UUID, errorText string) error

	// ListByVideo retrieves all jobs for a video in stage order.
	ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*model.Job, error)

	// HasActive reports whether any pending or running job exists for
	// the (video, stage) pair.
	HasActive(ctx context.Context, videoID uuid.UUID, stage model.JobStage) (bool, error)
}
