package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hszk-dev/scenedex/internal/domain/model"
	"github.com/hszk-dev/scenedex/internal/domain/repository"
)

const jobColumns = `job_id, video_id, stage, state, progress, error_text, started_at, finished_at, created_at`

// JobRepository implements repository.JobRepository using PostgreSQL.
// The jobs table carries a partial unique index on (video_id, stage)
// for pending/running rows, which backs the at-most-one-active-job
// invariant.
type JobRepository struct {
	db DBTX
}

// NewJobRepository creates a new JobRepository instance.
func NewJobRepository(db DBTX) *JobRepository {
	return &JobRepository{db: db}
}

// CreatePending inserts a pending job for a stage.
func (r *JobRepository) CreatePending(ctx context.Context, videoID uuid.UUID, stage model.JobStage) (*model.Job, error) {
	job := model.NewJob(videoID, stage)

	const query = `
		INSERT INTO jobs (job_id, video_id, stage, state, progress, created_at)
		VALUES ($1, $2, $3, $4, 0, $5)
	`

	_, err := r.db.Exec(ctx, query, job.ID, job.VideoID, job.Stage.String(), job.State.String(), job.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, repository.ErrDuplicateJob
		}
		return nil, fmt.Errorf("failed to create pending job: %w", err)
	}

	return job, nil
}

// StartStage promotes the stage's pending job to running, inserting a
// fresh running job if no active one exists (stages after the first
// have no pre-created row). A running row is also claimed: after a
// worker crash or message redelivery the orphaned row must not block
// the partial unique index, and the advisory lock guarantees no other
// worker holds it.
func (r *JobRepository) StartStage(ctx context.Context, videoID uuid.UUID, stage model.JobStage) (*model.Job, error) {
	const promote = `
		UPDATE jobs
		SET state = 'running', started_at = $3
		WHERE video_id = $1 AND stage = $2 AND state IN ('pending', 'running')
		RETURNING job_id, created_at
	`

	now := time.Now()
	job := &model.Job{
		VideoID:   videoID,
		Stage:     stage,
		State:     model.JobStateRunning,
		StartedAt: &now,
	}

	err := r.db.QueryRow(ctx, promote, videoID, stage.String(), now).Scan(&job.ID, &job.CreatedAt)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to promote pending job: %w", err)
	}

	const insert = `
		INSERT INTO jobs (job_id, video_id, stage, state, progress, started_at, created_at)
		VALUES ($1, $2, $3, 'running', 0, $4, $4)
	`

	job.ID = uuid.New()
	job.CreatedAt = now
	if _, err := r.db.Exec(ctx, insert, job.ID, videoID, stage.String(), now); err != nil {
		return nil, fmt.Errorf("failed to insert running job: %w", err)
	}

	return job, nil
}

// SetProgress updates a running job's progress.
func (r *JobRepository) SetProgress(ctx context.Context, jobID uuid.UUID, progress int) error {
	const query = `
		UPDATE jobs
		SET progress = $2
		WHERE job_id = $1 AND state = 'running'
	`

	tag, err := r.db.Exec(ctx, query, jobID, progress)
	if err != nil {
		return fmt.Errorf("failed to set job progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrJobNotFound
	}
	return nil
}

// Complete marks a job completed with progress 100.
func (r *JobRepository) Complete(ctx context.Context, jobID uuid.UUID) error {
	const query = `
		UPDATE jobs
		SET state = 'completed', progress = 100, finished_at = $2
		WHERE job_id = $1
	`

	tag, err := r.db.Exec(ctx, query, jobID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrJobNotFound
	}
	return nil
}

// Fail marks a job failed with a short reason.
func (r *JobRepository) Fail(ctx context.Context, jobID uuid.UUID, errorText string) error {
	const query = `
		UPDATE jobs
		SET state = 'failed', error_text = $2, finished_at = $3
		WHERE job_id = $1
	`

	tag, err := r.db.Exec(ctx, query, jobID, errorText, time.Now())
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrJobNotFound
	}
	return nil
}

// ListByVideo retrieves all jobs for a video in creation order.
func (r *JobRepository) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*model.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE video_id = $1
		ORDER BY created_at ASC, job_id ASC
	`

	rows, err := r.db.Query(ctx, query, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs by video ID: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return jobs, nil
}

// HasActive reports whether any pending or running job exists for the
// (video, stage) pair.
func (r *JobRepository) HasActive(ctx context.Context, videoID uuid.UUID, stage model.JobStage) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM jobs
			WHERE video_id = $1 AND stage = $2 AND state IN ('pending', 'running')
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, videoID, stage.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check active job: %w", err)
	}
	return exists, nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		job       model.Job
		stage     string
		state     string
		errorText *string
	)

	err := row.Scan(
		&job.ID,
		&job.VideoID,
		&stage,
		&state,
		&job.Progress,
		&errorText,
		&job.StartedAt,
		&job.FinishedAt,
		&job.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Stage = model.JobStage(stage)
	job.State = model.JobState(state)
	if !job.Stage.IsValid() || !job.State.IsValid() {
		return nil, fmt.Errorf("job %s: %w (%q/%q)", job.ID, model.ErrUnknownState, stage, state)
	}
	if errorText != nil {
		job.ErrorText = *errorText
	}

	return &job, nil
}

// Compile-time verification that JobRepository implements repository.JobRepository.
var _ repository.JobRepository = (*JobRepository)(nil)
