package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/hszk-dev/scenedex/internal/domain/model"
	"github.com/hszk-dev/scenedex/internal/domain/repository"
)

// FaceProfileRepository implements repository.FaceProfileRepository.
type FaceProfileRepository struct {
	db DBTX
}

// NewFaceProfileRepository creates a new FaceProfileRepository instance.
func NewFaceProfileRepository(db DBTX) *FaceProfileRepository {
	return &FaceProfileRepository{db: db}
}

// ListByUser retrieves all face profiles enrolled by a user.
func (r *FaceProfileRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.FaceProfile, error) {
	const query = `
		SELECT face_profile_id, user_id, name, photo_key, face_vec, created_at
		FROM face_profiles
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query face profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*model.FaceProfile
	for rows.Next() {
		var (
			profile  model.FaceProfile
			photoKey *string
			faceVec  *pgvector.Vector
		)
		err := rows.Scan(
			&profile.ID,
			&profile.UserID,
			&profile.Name,
			&photoKey,
			&faceVec,
			&profile.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan face profile: %w", err)
		}
		if photoKey != nil {
			profile.PhotoKey = *photoKey
		}
		if faceVec != nil {
			profile.FaceVec = faceVec.Slice()
		}
		profiles = append(profiles, &profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating face profiles: %w", err)
	}

	return profiles, nil
}

// Compile-time verification that FaceProfileRepository implements repository.FaceProfileRepository.
var _ repository.FaceProfileRepository = (*FaceProfileRepository)(nil)
