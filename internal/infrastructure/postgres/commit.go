package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/hszk-dev/scenedex/internal/domain/model"
	"github.com/hszk-dev/scenedex/internal/domain/repository"
)

// txBeginner abstracts pgxpool.Pool for transaction start, so the
// committer can be tested against pgxmock.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// IndexCommitter implements repository.Committer. The commit stage is
// the only place scene rows are written, and everything lands in one
// serializable transaction: scenes, the processing->indexed
// transition, and the commit job completion.
type IndexCommitter struct {
	db txBeginner
}

// NewIndexCommitter creates a new IndexCommitter instance.
func NewIndexCommitter(db txBeginner) *IndexCommitter {
	return &IndexCommitter{db: db}
}

// CommitIndex executes the commit transaction. If the video is no
// longer in the processing state (another worker won the race despite
// the advisory lock, or the video was deleted) the transaction rolls
// back with ErrStaleState.
func (c *IndexCommitter) CommitIndex(ctx context.Context, commit repository.IndexCommit) error {
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin commit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SET TRANSACTION ISOLATION LEVEL SERIALIZABLE`); err != nil {
		return fmt.Errorf("failed to set isolation level: %w", err)
	}

	const insertScene = `
		INSERT INTO scenes (scene_id, video_id, start_s, end_s, transcript, text_vec, image_vec, vision_tags, sidecar_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for _, scene := range commit.Scenes {
		var textVec, imageVec *pgvector.Vector
		if scene.TextVec != nil {
			v := pgvector.NewVector(scene.TextVec)
			textVec = &v
		}
		if scene.ImageVec != nil {
			v := pgvector.NewVector(scene.ImageVec)
			imageVec = &v
		}

		var tags []byte
		if scene.VisionTags != nil {
			tags, err = json.Marshal(scene.VisionTags)
			if err != nil {
				return fmt.Errorf("failed to encode vision tags: %w", err)
			}
		}

		_, err = tx.Exec(ctx, insertScene,
			scene.ID,
			scene.VideoID,
			scene.StartS,
			scene.EndS,
			scene.Transcript,
			textVec,
			imageVec,
			tags,
			nullString(scene.SidecarKey),
			scene.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert scene %s: %w", scene.ID, err)
		}
	}

	const indexVideo = `
		UPDATE videos
		SET state = $2, indexed_at = $3
		WHERE video_id = $1 AND state = $4
	`

	tag, err := tx.Exec(ctx, indexVideo,
		commit.VideoID,
		model.VideoStateIndexed.String(),
		commit.IndexedAt,
		model.VideoStateProcessing.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to index video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrStaleState
	}

	const completeJob = `
		UPDATE jobs
		SET state = 'completed', progress = 100, finished_at = $2
		WHERE job_id = $1
	`

	if _, err := tx.Exec(ctx, completeJob, commit.CompleteJob, commit.IndexedAt); err != nil {
		return fmt.Errorf("failed to complete commit job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit index transaction: %w", err)
	}

	return nil
}

// Compile-time verification that IndexCommitter implements repository.Committer.
var _ repository.Committer = (*IndexCommitter)(nil)
