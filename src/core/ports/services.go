package ports

import (
	"context"
	"time"

	"tapround/src/core/domain"
)

// ExternalService is the base interface for external service adapters.
type ExternalService interface {
	// Health checks if the external service is reachable.
	Health(ctx context.Context) error
}

// Leadership reports this instance's standing in the cluster election.
type Leadership interface {
	IsLeader() bool
	InstanceID() string
	// CurrentLeader returns the instance id holding the lease, or "" when
	// the lease is vacant.
	CurrentLeader(ctx context.Context) (string, error)
}

// LockOptions bounds a WithLock call.
type LockOptions struct {
	TTL        time.Duration
	Retries    int
	RetryDelay time.Duration
}

// Locker serializes critical sections across instances.
type Locker interface {
	// WithLock runs fn while holding key, releasing it afterwards whatever fn returns.
	WithLock(ctx context.Context, key string, opts LockOptions, fn func(ctx context.Context) error) error
}

// RateLimitPolicy is a fixed-window budget with an optional block period.
type RateLimitPolicy struct {
	Points int64
	Window time.Duration
	Block  time.Duration
}

// RateLimiter gates request rates per (operation, principal).
type RateLimiter interface {
	// Allow returns nil when the request may proceed, or a rate limit
	// domain error carrying the retry delay.
	Allow(ctx context.Context, operation, principal string, policy RateLimitPolicy) error
}

// PrincipalResolver turns a presented credential into the authenticated caller.
type PrincipalResolver interface {
	Resolve(ctx context.Context, token string) (*domain.Principal, error)
}
