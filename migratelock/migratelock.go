// Package migratelock serializes schema migrations across replicas with a
// Postgres advisory lock. The lock ID is derived deterministically from the
// migration scope so every replica contends on the same lock without
// coordination.
package migratelock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultWait bounds how long a replica blocks for the lock before giving
// up.
const DefaultWait = 30 * time.Second

// LockID derives the 64-bit advisory lock ID for a migration scope.
func LockID(scope string) int64 {
	h := sha256.Sum256([]byte("migratelock:" + scope))
	return int64(binary.BigEndian.Uint64(h[:8]))
}

// Lock holds a scoped advisory lock on a dedicated pool connection. The
// lock must be released on the same connection it was acquired on, so the
// connection stays pinned until Release.
type Lock struct {
	log    *slog.Logger
	pool   *pgxpool.Pool
	scope  string
	lockID int64
	conn   *pgxpool.Conn
}

// New creates an unacquired lock for the given scope.
func New(log *slog.Logger, pool *pgxpool.Pool, scope string) *Lock {
	return &Lock{
		log:    log.With("scope", scope),
		pool:   pool,
		scope:  scope,
		lockID: LockID(scope),
	}
}

// Acquire takes the advisory lock, trying non-blocking first and then
// blocking until wait elapses. A wait of zero or less uses DefaultWait.
func (l *Lock) Acquire(ctx context.Context, wait time.Duration) error {
	if l.conn != nil {
		return fmt.Errorf("migration lock for %q already held", l.scope)
	}
	if wait <= 0 {
		wait = DefaultWait
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("could not acquire connection for migration lock: %w", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	var got bool
	if err := conn.QueryRow(lockCtx, "select pg_try_advisory_lock($1)", l.lockID).Scan(&got); err != nil {
		conn.Release()
		return fmt.Errorf("could not try migration lock: %w", err)
	}
	if !got {
		l.log.Info("migration lock held elsewhere, waiting", "lock_id", l.lockID, "wait", wait)
		if _, err := conn.Exec(lockCtx, "select pg_advisory_lock($1)", l.lockID); err != nil {
			conn.Release()
			return fmt.Errorf("could not acquire migration lock: %w", err)
		}
	}

	l.conn = conn
	l.log.Debug("acquired migration lock", "lock_id", l.lockID)
	return nil
}

// Release unlocks and returns the pinned connection to the pool. Uses a
// background context so the unlock still runs when the caller's context is
// already cancelled.
func (l *Lock) Release() error {
	if l.conn == nil {
		return nil
	}

	_, err := l.conn.Exec(context.Background(), "select pg_advisory_unlock($1)", l.lockID)
	l.conn.Release()
	l.conn = nil
	if err != nil {
		return fmt.Errorf("could not release migration lock: %w", err)
	}

	l.log.Debug("released migration lock", "lock_id", l.lockID)
	return nil
}

// WithLock runs fn while holding the scoped migration lock.
func WithLock(ctx context.Context, log *slog.Logger, pool *pgxpool.Pool, scope string, wait time.Duration, fn func(ctx context.Context) error) error {
	lock := New(log, pool, scope)
	if err := lock.Acquire(ctx, wait); err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn("could not release migration lock", "scope", scope, "err", err)
		}
	}()

	return fn(ctx)
}
