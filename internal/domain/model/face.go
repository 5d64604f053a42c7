package model

import (
	"time"

	"github.com/google/uuid"
)

// FaceProfile is an enrolled person for a user. The indexing pipeline
// matches detected faces against these to tag scenes with names.
type FaceProfile struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	PhotoKey  string
	FaceVec   []float32
	CreatedAt time.Time
}
