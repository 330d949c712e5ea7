// Package redislock implements the reconcile scope lock on Redis, so several
// server processes sharing one database never reconcile the same scope at once.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/soham-0-0-7/split-slice/internal/reconcile"
)

// DefaultExpiry bounds how long a crashed holder can block a scope.
const DefaultExpiry = 30 * time.Second

// keyPrefix namespaces lock keys in a shared Redis.
const keyPrefix = "splitslice:lock:"

// unlockTimeout bounds the release call made when a run finishes.
const unlockTimeout = 5 * time.Second

var _ reconcile.Locker = (*Locker)(nil)

// Locker is a reconcile.Locker backed by a redsync mutex per key.
type Locker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	logger *slog.Logger
}

// New creates a Locker on the given client. A non-positive expiry selects
// DefaultExpiry.
func New(client redis.UniversalClient, expiry time.Duration, logger *slog.Logger) *Locker {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Locker{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
		logger: logger,
	}
}

// TryLock takes the lock for key in one attempt. It returns
// reconcile.ErrConflict when another holder has it.
func (l *Locker) TryLock(ctx context.Context, key string) (func(), error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("lock key is empty")
	}

	mutex := l.rs.NewMutex(
		keyPrefix+key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if isContention(err) {
			l.logger.Debug("Lock already held", "key", key)
			return nil, reconcile.ErrConflict
		}
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	l.logger.Debug("Lock acquired", "key", key)

	return func() {
		// The caller's context may already be cancelled when the run ends.
		ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
		defer cancel()

		if ok, err := mutex.UnlockContext(ctx); !ok || err != nil {
			l.logger.Warn("Failed to release lock", "key", key, "error", err)
		}
	}, nil
}

// isContention reports whether a lock error means the key is held elsewhere,
// as opposed to Redis being unreachable.
func isContention(err error) bool {
	var taken *redsync.ErrTaken
	return errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed)
}
