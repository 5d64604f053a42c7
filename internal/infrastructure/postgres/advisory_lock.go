package postgres

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hszk-dev/scenedex/internal/domain/repository"
)

// AdvisoryLocker implements repository.VideoLocker with Postgres
// session-level advisory locks. The lock key is derived from the
// video UUID; the session holding it is a dedicated pooled connection
// that stays checked out until release, so the lock lives exactly as
// long as the pipeline run.
type AdvisoryLocker struct {
	pool *pgxpool.Pool
}

// NewAdvisoryLocker creates a new AdvisoryLocker instance.
func NewAdvisoryLocker(pool *pgxpool.Pool) *AdvisoryLocker {
	return &AdvisoryLocker{pool: pool}
}

// TryLock attempts a non-blocking per-video lock. ok=false means
// another worker holds it and the caller should no-op.
func (l *AdvisoryLocker) TryLock(ctx context.Context, videoID uuid.UUID) (func(), bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire connection for advisory lock: %w", err)
	}

	key := lockKey(videoID)

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&locked); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("failed to try advisory lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, false, nil
	}

	release := func() {
		// Unlock on a background context: release must work even when
		// the task context is already cancelled.
		if _, err := conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, key); err != nil {
			slog.Error("failed to release advisory lock",
				"video_id", videoID,
				"error", err,
			)
		}
		conn.Release()
	}

	return release, true, nil
}

// lockKey folds a UUID into the bigint keyspace pg advisory locks use.
// Collisions only cost unnecessary serialization, never correctness.
func lockKey(id uuid.UUID) int64 {
	b := id[:]
	hi := binary.BigEndian.Uint64(b[:8])
	lo := binary.BigEndian.Uint64(b[8:])
	return int64(hi ^ lo)
}

// Compile-time verification that AdvisoryLocker implements repository.VideoLocker.
var _ repository.VideoLocker = (*AdvisoryLocker)(nil)
