package locks

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/harborpaws/resolve/internal/database"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/models"
)

// PostgresGuard is the cross-process Guard. It maps the key onto a Postgres
// advisory lock, so replicas sharing a database serialize the same
// check-then-create sequences.
type PostgresGuard struct {
	db           database.DB
	logger       ectologger.Logger
	pollInterval time.Duration
}

// NewPostgresGuard creates a new advisory-lock guard
func NewPostgresGuard(db database.DB, logger ectologger.Logger) *PostgresGuard {
	return &PostgresGuard{
		db:           db,
		logger:       logger,
		pollInterval: 50 * time.Millisecond,
	}
}

// WithLock acquires the advisory lock for key, runs fn, and releases.
// Advisory locks are session-scoped, so the acquire and release must run on
// the same connection; a dedicated one is pinned from the pool for the whole
// span. The try-lock is polled so a blocked caller still honors ctx
// cancellation.
func (g *PostgresGuard) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartSpan(ctx, "locks.PostgresGuard.WithLock")
	defer span.End()

	conn, err := g.db.Conn(ctx)
	if err != nil {
		g.logger.WithContext(ctx).WithError(err).Error("Failed to pin connection for advisory lock")
		return &models.TransientFailure{Op: "advisory lock connection", Err: err}
	}
	defer conn.Close()

	lockID := int64(KeyHash(key))

	for {
		var acquired bool
		if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired); err != nil {
			g.logger.WithContext(ctx).WithError(err).Error("Failed to acquire advisory lock")
			return &models.TransientFailure{Op: "advisory lock acquire", Err: err}
		}
		if acquired {
			break
		}

		select {
		case <-ctx.Done():
			// Contended past the caller's deadline. Reported as a conflict so
			// callers retry instead of treating it as a hard failure.
			return &models.ConcurrencyConflict{Key: key}
		case <-time.After(g.pollInterval):
		}
	}

	defer func() {
		var released bool
		unlockCtx := context.WithoutCancel(ctx)
		if err := conn.QueryRowContext(unlockCtx, `SELECT pg_advisory_unlock($1)`, lockID).Scan(&released); err != nil {
			g.logger.WithContext(ctx).WithError(err).Error("Failed to release advisory lock")
			return
		}
		if !released {
			g.logger.WithContext(ctx).WithField("key", key).Error("Advisory lock was not held by this session")
		}
	}()

	return fn(ctx)
}
