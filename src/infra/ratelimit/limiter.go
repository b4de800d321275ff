// Package ratelimit implements fixed-window request budgets shared by all
// instances through the coordination store.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"

	"tapround/src/core/domain"
	"tapround/src/core/ports"
	"tapround/src/infra/coord"
)

// Limiter implements ports.RateLimiter.
//
// A store failure lets the request through: the limiter protects the
// database, it is not an authorization check.
type Limiter struct {
	store *coord.Client
	log   *slog.Logger
}

var _ ports.RateLimiter = (*Limiter)(nil)

func New(store *coord.Client, log *slog.Logger) *Limiter {
	return &Limiter{store: store, log: log}
}

// Key returns the counter key for an operation and principal.
func Key(operation, principal string) string {
	return fmt.Sprintf("rate_limit:%s:%s", operation, principal)
}

func (l *Limiter) Allow(ctx context.Context, operation, principal string, policy ports.RateLimitPolicy) error {
	if policy.Points <= 0 || policy.Window <= 0 {
		return nil
	}

	key := Key(operation, principal)
	blockKey := key + ":blocked"

	if policy.Block > 0 {
		left, err := l.store.TTL(ctx, blockKey)
		if err != nil {
			l.failOpen(operation, principal, err)
			return nil
		}
		if left > 0 {
			return domain.NewRateLimitedError(left)
		}
	}

	count, windowLeft, err := l.store.IncrWindow(ctx, key, policy.Window)
	if err != nil {
		l.failOpen(operation, principal, err)
		return nil
	}
	if count <= policy.Points {
		return nil
	}

	if policy.Block > 0 {
		if err := l.store.Set(ctx, blockKey, "1", policy.Block); err != nil {
			l.log.Warn("failed to set rate limit block", "key", blockKey, "error", err)
		}
		l.log.Info("rate limit exceeded, blocking",
			"operation", operation,
			"principal", principal,
			"block", policy.Block,
		)
		return domain.NewRateLimitedError(policy.Block)
	}
	return domain.NewRateLimitedError(windowLeft)
}

func (l *Limiter) failOpen(operation, principal string, err error) {
	l.log.Warn("rate limiter unavailable, allowing request",
		"operation", operation,
		"principal", principal,
		"error", err,
	)
}
