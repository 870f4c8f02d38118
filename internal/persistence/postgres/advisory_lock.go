package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/example/ground-booking/internal/locking"
)

const unlockTimeout = 5 * time.Second

// Advisory lock key spaces. A session lock held by AdvisoryLocker and the
// transaction lock taken by a write on another connection must never share a
// key, or the write waits on its own caller.
const (
	reservationLockSpace = 1
	slotWriteLockSpace   = 2
)

// AdvisoryLocker serializes reservation keys across processes sharing one
// database. Keys are first taken on an in-process KeyedMutex so that only one
// goroutine per key holds a pooled connection while waiting on PostgreSQL.
type AdvisoryLocker struct {
	db     *sql.DB
	local  *locking.KeyedMutex
	logger *slog.Logger
}

// NewAdvisoryLocker returns a locker using session-level advisory locks on db.
func NewAdvisoryLocker(db *sql.DB, logger *slog.Logger) *AdvisoryLocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdvisoryLocker{
		db:     db,
		local:  locking.NewKeyedMutex(),
		logger: logger.With("component", "advisory_lock"),
	}
}

// Lock acquires every key in sorted order. The returned Unlock releases the
// advisory locks, returns the dedicated connection to the pool and then
// releases the local keys.
func (l *AdvisoryLocker) Lock(ctx context.Context, keys ...string) (locking.Unlock, error) {
	unlockLocal, err := l.local.Lock(ctx, keys...)
	if err != nil {
		return nil, err
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		unlockLocal()
		return nil, fmt.Errorf("failed to reserve lock connection: %w", err)
	}

	ordered := append([]string(nil), keys...)
	sort.Strings(ordered)
	held := make([]string, 0, len(ordered))

	release := func() {
		defer unlockLocal()
		releaseCtx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
		defer cancel()
		stuck := false
		for i := len(held) - 1; i >= 0; i-- {
			if _, err := conn.ExecContext(releaseCtx, `SELECT pg_advisory_unlock($1, hashtext($2))`, reservationLockSpace, held[i]); err != nil {
				l.logger.Error("failed to release advisory lock", "key", held[i], "error", err)
				stuck = true
			}
		}
		if stuck {
			// Session locks die with the session, so the connection must not
			// go back to the pool.
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
			l.logger.Warn("discarded lock connection holding unreleased keys", "keys", held)
			return
		}
		if err := conn.Close(); err != nil {
			l.logger.Error("failed to return lock connection", "error", err)
		}
	}

	for _, key := range ordered {
		if len(held) > 0 && held[len(held)-1] == key {
			continue
		}
		if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1, hashtext($2))`, reservationLockSpace, key); err != nil {
			release()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to acquire advisory lock %s: %w", key, err)
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}
