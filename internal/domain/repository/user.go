package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hszk-dev/scenedex/internal/domain/model"
)

// UserRepository defines persistence for users.
type UserRepository interface {
	// Create persists a new user.
	Create(ctx context.Context, user *model.User) error

	// GetByExternalAuthID looks a user up by the identity provider's
	// subject. Returns ErrUserNotFound if absent.
	GetByExternalAuthID(ctx context.Context, externalAuthID string) (*model.User, error)

	// GetByID retrieves a user by local identifier.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// FaceProfileRepository defines persistence for enrolled face
// profiles. The pipeline reads these but does not write them.
type FaceProfileRepository interface {
	// ListByUser retrieves all face profiles enrolled by a user.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.FaceProfile, error)
}
