package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hszk-dev/scenedex/internal/domain/model"
)

// VideoRepository defines persistence operations for videos.
// Implementations live in the infrastructure layer (PostgreSQL).
type VideoRepository interface {
	// Create persists a new video entity.
	Create(ctx context.Context, video *model.Video) error

	// GetByID retrieves a video by its identifier.
	// Returns ErrVideoNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Video, error)

	// GetOwned retrieves a video scoped to an owner. A video owned by
	// someone else is reported as ErrVideoNotFound.
	GetOwned(ctx context.Context, userID, id uuid.UUID) (*model.Video, error)

	// ListByUser retrieves a page of a user's videos ordered by
	// created_at DESC, video_id DESC.
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Video, error)

	// UpdateState performs a compare-and-set state transition.
	// Returns ErrStaleState if the row is no longer in the from state.
	UpdateState(ctx context.Context, id uuid.UUID, from, to model.VideoState) error

	// SetDuration records the probed duration after validation.
	SetDuration(ctx context.Context, id uuid.UUID, durationS float64) error

	// MarkFailed moves a video to the failed state with a short reason.
	MarkFailed(ctx context.Context, id uuid.UUID, errorText string) error
}

// VideoLocker provides per-video mutual exclusion for pipeline entry.
// The lock is exclusive and non-blocking: a second taker gets ok=false
// and must treat the task as a no-op.
type VideoLocker interface {
	// TryLock attempts to acquire the lock for a video. On success it
	// returns a release function that must be called exactly once.
	TryLock(ctx context.Context, videoID uuid.UUID) (release func(), ok bool, err error)
}
