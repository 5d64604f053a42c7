package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tier is the account tier of a user.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

func (t Tier) IsValid() bool {
	switch t {
	case TierFree, TierPro, TierEnterprise:
		return true
	default:
		return false
	}
}

var (
	ErrInvalidEmail  = errors.New("email cannot be empty")
	ErrInvalidAuthID = errors.New("external auth ID cannot be empty")
)

// User is a locally-assigned identity linked to the external identity
// provider via ExternalAuthID. Users are created lazily on the first
// authenticated request and never destroyed.
type User struct {
	ID             uuid.UUID
	ExternalAuthID string
	Email          string
	EmailVerified  bool
	Tier           Tier
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewUser creates a User from a verified external identity. Email is
// lowercased; uniqueness is case-insensitive.
func NewUser(externalAuthID, email string, verified bool) (*User, error) {
	if externalAuthID == "" {
		return nil, ErrInvalidAuthID
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrInvalidEmail
	}
	now := time.Now()
	return &User{
		ID:             uuid.New(),
		ExternalAuthID: externalAuthID,
		Email:          email,
		EmailVerified:  verified,
		Tier:           TierFree,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}
