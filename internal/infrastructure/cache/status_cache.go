package cache

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hszk-dev/scenedex/internal/domain/model"
)

// StatusCache caches status snapshots to absorb polling traffic.
// Implementations handle serialization transparently.
type StatusCache interface {
	// Get retrieves a status snapshot by video ID.
	// Returns nil, nil on cache miss.
	Get(ctx context.Context, videoID uuid.UUID) (*model.VideoStatus, error)

	// Set stores a status snapshot with the specified TTL.
	Set(ctx context.Context, status *model.VideoStatus, ttl time.Duration) error

	// Delete removes a cached snapshot.
	// Returns nil if nothing was cached.
	Delete(ctx context.Context, videoID uuid.UUID) error
}
