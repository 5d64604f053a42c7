package repository

import (
	"context"

	"github.com/google/uuid"
)

// IndexTask is the queue payload: just the video identifier plus the
// broker-side retry count. Deduplication is the pipeline's job via the
// video state machine, not the queue's.
type IndexTask struct {
	VideoID    uuid.UUID `json:"video_id"`
	RetryCount int       `json:"retry_count"`
}

// TaskQueue provides at-least-once delivery of indexing tasks.
// Ordering is not guaranteed and duplicates are expected.
type TaskQueue interface {
	// PublishIndexTask enqueues a task for a video.
	PublishIndexTask(ctx context.Context, task IndexTask) error

	// ConsumeIndexTasks delivers tasks to the handler until the context
	// is cancelled. A handler error triggers retry-with-republish up to
	// the binding's retry limit; beyond that the task is dropped.
	ConsumeIndexTasks(ctx context.Context, handler func(task IndexTask) error) error

	// Close gracefully closes the broker connection.
	Close() error
}
