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

// DBTX abstracts pgxpool.Pool and pgx.Tx for testability.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const videoColumns = `video_id, user_id, storage_key, mime_type, size_bytes, title, description, duration_s, state, error_text, created_at, indexed_at`

// VideoRepository implements repository.VideoRepository using PostgreSQL.
type VideoRepository struct {
	db DBTX
}

// NewVideoRepository creates a new VideoRepository instance.
func NewVideoRepository(db DBTX) *VideoRepository {
	return &VideoRepository{db: db}
}

// Create persists a new video entity.
func (r *VideoRepository) Create(ctx context.Context, video *model.Video) error {
	const query = `
		INSERT INTO videos (video_id, user_id, storage_key, mime_type, size_bytes, title, description, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		video.ID,
		video.UserID,
		video.StorageKey,
		video.MimeType,
		video.SizeBytes,
		video.Title,
		nullString(video.Description),
		video.State.String(),
		video.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrDuplicateVideo
		}
		return fmt.Errorf("failed to create video: %w", err)
	}

	return nil
}

// GetByID retrieves a video by its identifier.
func (r *VideoRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE video_id = $1`

	video, err := scanVideo(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrVideoNotFound
		}
		return nil, fmt.Errorf("failed to get video by ID: %w", err)
	}

	return video, nil
}

// GetOwned retrieves a video scoped to an owner. A video owned by
// someone else comes back as not-found.
func (r *VideoRepository) GetOwned(ctx context.Context, userID, id uuid.UUID) (*model.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE video_id = $1 AND user_id = $2`

	video, err := scanVideo(r.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrVideoNotFound
		}
		return nil, fmt.Errorf("failed to get owned video: %w", err)
	}

	return video, nil
}

// ListByUser retrieves a page of a user's videos, newest first with a
// deterministic tiebreak on video_id.
func (r *VideoRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Video, error) {
	query := `
		SELECT ` + videoColumns + `
		FROM videos
		WHERE user_id = $1
		ORDER BY created_at DESC, video_id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos by user ID: %w", err)
	}
	defer rows.Close()

	var videos []*model.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating videos: %w", err)
	}

	return videos, nil
}

// UpdateState performs a compare-and-set transition. The WHERE clause
// on the current state is what serializes concurrent complete_upload
// calls and pipeline entries.
func (r *VideoRepository) UpdateState(ctx context.Context, id uuid.UUID, from, to model.VideoState) error {
	const query = `
		UPDATE videos
		SET state = $3
		WHERE video_id = $1 AND state = $2
	`

	tag, err := r.db.Exec(ctx, query, id, from.String(), to.String())
	if err != nil {
		return fmt.Errorf("failed to update video state: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrStaleState
	}

	return nil
}

// SetDuration records the probed duration after validation.
func (r *VideoRepository) SetDuration(ctx context.Context, id uuid.UUID, durationS float64) error {
	const query = `
		UPDATE videos
		SET duration_s = $2
		WHERE video_id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, durationS)
	if err != nil {
		return fmt.Errorf("failed to set video duration: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrVideoNotFound
	}

	return nil
}

// MarkFailed moves a video to failed with a short reason. Terminal
// states are left untouched.
func (r *VideoRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorText string) error {
	const query = `
		UPDATE videos
		SET state = $2, error_text = $3
		WHERE video_id = $1 AND state NOT IN ('indexed', 'failed', 'deleted')
	`

	tag, err := r.db.Exec(ctx, query, id, model.VideoStateFailed.String(), errorText)
	if err != nil {
		return fmt.Errorf("failed to mark video failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrStaleState
	}

	return nil
}

// scanVideo scans a single row into a Video model.
func scanVideo(row pgx.Row) (*model.Video, error) {
	var (
		video       model.Video
		state       string
		description *string
		errorText   *string
		durationS   *float64
		indexedAt   *time.Time
	)

	err := row.Scan(
		&video.ID,
		&video.UserID,
		&video.StorageKey,
		&video.MimeType,
		&video.SizeBytes,
		&video.Title,
		&description,
		&durationS,
		&state,
		&errorText,
		&video.CreatedAt,
		&indexedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := model.ParseVideoState(state)
	if err != nil {
		return nil, fmt.Errorf("video %s: %w (%q)", video.ID, err, state)
	}
	video.State = parsed

	if description != nil {
		video.Description = *description
	}
	if errorText != nil {
		video.ErrorText = *errorText
	}
	video.DurationS = durationS
	video.IndexedAt = indexedAt

	return &video, nil
}

// nullString returns nil for empty strings, otherwise a pointer.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Compile-time verification that VideoRepository implements repository.VideoRepository.
var _ repository.VideoRepository = (*VideoRepository)(nil)
