// Package lock implements advisory distributed locks on the coordination store.
//
// A lock is a key holding a random token with a TTL. Only the holder of the
// token can release it, and an abandoned lock expires on its own.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tapround/src/core/domain"
	"tapround/src/core/ports"
	"tapround/src/infra/coord"
)

const keyPrefix = "lock:"

// Locker implements ports.Locker.
type Locker struct {
	store    *coord.Client
	defaults ports.LockOptions
	log      *slog.Logger
}

var _ ports.Locker = (*Locker)(nil)

// New creates a Locker. Zero fields in a WithLock call fall back to defaults.
func New(store *coord.Client, defaults ports.LockOptions, log *slog.Logger) *Locker {
	return &Locker{store: store, defaults: defaults, log: log}
}

// Acquire makes a single attempt to take key for ttl and returns the
// ownership token, or "" when the lock is held elsewhere. It never waits.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("lock %q: ttl must be positive, got %s", key, ttl)
	}
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, keyPrefix+key, token, ttl)
	if err != nil || !ok {
		return "", err
	}
	return token, nil
}

// Release frees key if it is still held by token.
// It reports false when the lock had expired or was taken by someone else.
func (l *Locker) Release(ctx context.Context, key, token string) (bool, error) {
	return l.store.CompareAndDelete(ctx, keyPrefix+key, token)
}

// WithLock acquires key, runs fn and releases the lock whatever fn returns.
// Failed attempts back off linearly by RetryDelay.
func (l *Locker) WithLock(ctx context.Context, key string, opts ports.LockOptions, fn func(ctx context.Context) error) error {
	opts = l.withDefaults(opts)

	var (
		token   string
		lastErr error
	)
	for attempt := 1; attempt <= opts.Retries; attempt++ {
		var err error
		token, err = l.Acquire(ctx, key, opts.TTL)
		if err != nil {
			lastErr = err
			l.log.Warn("lock attempt failed", "key", key, "attempt", attempt, "error", err)
		}
		if token != "" {
			break
		}
		if attempt == opts.Retries {
			return domain.NewLockNotAcquiredError(key, attempt, lastErr)
		}

		timer := time.NewTimer(opts.RetryDelay * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.NewLockNotAcquiredError(key, attempt, ctx.Err())
		case <-timer.C:
		}
	}

	defer func() {
		released, err := l.Release(context.WithoutCancel(ctx), key, token)
		switch {
		case err != nil:
			l.log.Warn("failed to release lock", "key", key, "error", err)
		case !released:
			l.log.Warn("lock expired before release", "key", key, "ttl", opts.TTL)
		}
	}()

	return fn(ctx)
}

func (l *Locker) withDefaults(opts ports.LockOptions) ports.LockOptions {
	if opts.TTL <= 0 {
		opts.TTL = l.defaults.TTL
	}
	if opts.Retries <= 0 {
		opts.Retries = l.defaults.Retries
	}
	if opts.Retries <= 0 {
		opts.Retries = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = l.defaults.RetryDelay
	}
	return opts
}
