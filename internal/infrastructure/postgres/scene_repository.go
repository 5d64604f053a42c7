package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/hszk-dev/scenedex/internal/domain/model"
	"github.com/hszk-dev/scenedex/internal/domain/repository"
)

// SceneRepository implements repository.SceneRepository using
// PostgreSQL with pgvector columns.
type SceneRepository struct {
	db DBTX
}

// NewSceneRepository creates a new SceneRepository instance.
func NewSceneRepository(db DBTX) *SceneRepository {
	return &SceneRepository{db: db}
}

// ListByVideo retrieves a video's scenes ordered by start time.
func (r *SceneRepository) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*model.Scene, error) {
	const query = `
		SELECT scene_id, video_id, start_s, end_s, transcript, text_vec, image_vec, vision_tags, sidecar_key, created_at
		FROM scenes
		WHERE video_id = $1
		ORDER BY start_s ASC
	`

	rows, err := r.db.Query(ctx, query, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenes by video ID: %w", err)
	}
	defer rows.Close()

	var scenes []*model.Scene
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scene: %w", err)
		}
		scenes = append(scenes, scene)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scenes: %w", err)
	}

	return scenes, nil
}

func scanScene(row pgx.Row) (*model.Scene, error) {
	var (
		scene      model.Scene
		transcript *string
		textVec    *pgvector.Vector
		imageVec   *pgvector.Vector
		tags       []byte
		sidecarKey *string
	)

	err := row.Scan(
		&scene.ID,
		&scene.VideoID,
		&scene.StartS,
		&scene.EndS,
		&transcript,
		&textVec,
		&imageVec,
		&tags,
		&sidecarKey,
		&scene.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if transcript != nil {
		scene.Transcript = *transcript
	}
	if textVec != nil {
		scene.TextVec = textVec.Slice()
	}
	if imageVec != nil {
		scene.ImageVec = imageVec.Slice()
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &scene.VisionTags); err != nil {
			return nil, fmt.Errorf("failed to decode vision tags: %w", err)
		}
	}
	if sidecarKey != nil {
		scene.SidecarKey = *sidecarKey
	}

	return &scene, nil
}

// Compile-time verification that SceneRepository implements repository.SceneRepository.
var _ repository.SceneRepository = (*SceneRepository)(nil)
