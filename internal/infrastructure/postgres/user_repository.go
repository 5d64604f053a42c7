package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hszk-dev/scenedex/internal/domain/model"
	"github.com/hszk-dev/scenedex/internal/domain/repository"
)

const userColumns = `user_id, external_auth_id, email, email_verified, tier, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create persists a new user.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	const query = `
		INSERT INTO users (user_id, external_auth_id, email, email_verified, tier, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.ExternalAuthID,
		user.Email,
		user.EmailVerified,
		string(user.Tier),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrDuplicateUser
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByExternalAuthID looks a user up by the IdP subject.
func (r *UserRepository) GetByExternalAuthID(ctx context.Context, externalAuthID string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_auth_id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, externalAuthID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by external auth ID: %w", err)
	}

	return user, nil
}

// GetByID retrieves a user by local identifier.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		user model.User
		tier string
	)

	err := row.Scan(
		&user.ID,
		&user.ExternalAuthID,
		&user.Email,
		&user.EmailVerified,
		&tier,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Tier = model.Tier(tier)
	if !user.Tier.IsValid() {
		return nil, fmt.Errorf("user %s: %w (%q)", user.ID, model.ErrUnknownState, tier)
	}

	return &user, nil
}

// Compile-time verification that UserRepository implements repository.UserRepository.
var _ repository.UserRepository = (*UserRepository)(nil)
