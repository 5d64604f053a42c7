package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/scenedex/internal/domain/model"
)

const (
	// statusCacheKeyPrefix is the prefix for status cache keys in Redis.
	statusCacheKeyPrefix = "video_status:"
)

// RedisStatusCache implements StatusCache using Redis as the backing store.
type RedisStatusCache struct {
	client *redis.Client
}

// NewRedisStatusCache creates a new Redis-backed status cache.
func NewRedisStatusCache(client *redis.Client) *RedisStatusCache {
	return &RedisStatusCache{
		client: client,
	}
}

// Get retrieves a status snapshot from Redis.
// Returns nil, nil on cache miss.
func (c *RedisStatusCache) Get(ctx context.Context, videoID uuid.UUID) (*model.VideoStatus, error) {
	key := c.buildKey(videoID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var status model.VideoStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("deserialize status: %w", err)
	}
	if !status.State.IsValid() {
		return nil, fmt.Errorf("deserialize status: %w (%q)", model.ErrUnknownState, status.State)
	}

	return &status, nil
}

// Set stores a status snapshot in Redis with the specified TTL.
func (c *RedisStatusCache) Set(ctx context.Context, status *model.VideoStatus, ttl time.Duration) error {
	key := c.buildKey(status.VideoID)

	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("serialize status: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes a status snapshot from Redis.
func (c *RedisStatusCache) Delete(ctx context.Context, videoID uuid.UUID) error {
	key := c.buildKey(videoID)

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// buildKey constructs the Redis key for a video's status snapshot.
func (c *RedisStatusCache) buildKey(videoID uuid.UUID) string {
	return statusCacheKeyPrefix + videoID.String()
}

// Compile-time verification that RedisStatusCache implements StatusCache.
var _ StatusCache = (*RedisStatusCache)(nil)
