package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hszk-dev/scenedex/internal/domain/model"
)

// SceneRepository defines read operations for scenes. Scene writes
// only happen through Committer to preserve the single-transaction
// commit boundary.
type SceneRepository interface {
	// ListByVideo retrieves a video's scenes ordered by start_s.
	ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*model.Scene, error)
}

// IndexCommit is everything the pipeline persists atomically at the
// commit stage: scene rows, the indexed transition, and the stage job
// completions.
type IndexCommit struct {
	VideoID     uuid.UUID
	Scenes      []*model.Scene
	IndexedAt   time.Time
	CompleteJob uuid.UUID // the running commit job to mark completed
}

// Committer executes the commit stage in a single transaction.
type Committer interface {
	// CommitIndex inserts all scenes, moves the video from processing
	// to indexed, and completes the commit job. The whole write either
	// lands or does not; partial scene writes are forbidden.
	CommitIndex(ctx context.Context, commit IndexCommit) error
}
