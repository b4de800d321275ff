// Package election runs single-leader election over the coordination store.
//
// Every instance competes for one lease key. The holder renews it on each
// heartbeat; if it stops renewing, the lease expires and another instance
// takes over. Any store error counts as "not leader" for that cycle.
package election

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"tapround/src/core/ports"
	"tapround/src/infra/config"
	"tapround/src/infra/coord"
)

// Elector implements ports.Leadership.
type Elector struct {
	store     *coord.Client
	key       string
	ttl       time.Duration
	heartbeat time.Duration
	id        string
	log       *slog.Logger

	leader atomic.Bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ ports.Leadership = (*Elector)(nil)

// New creates an elector with a fresh instance id.
func New(store *coord.Client, cfg config.LeaderConfig, log *slog.Logger) *Elector {
	id := NewInstanceID()
	return &Elector{
		store:     store,
		key:       cfg.Key,
		ttl:       cfg.TTL,
		heartbeat: cfg.Heartbeat,
		id:        id,
		log:       log.With("instance_id", id),
	}
}

// NewInstanceID builds an id unique across hosts and restarts.
func NewInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d-%d-%s", host, os.Getpid(), time.Now().UnixMilli(), uuid.NewString()[:8])
}

func (e *Elector) InstanceID() string { return e.id }

func (e *Elector) IsLeader() bool { return e.leader.Load() }

// CurrentLeader reads the lease holder from the store.
func (e *Elector) CurrentLeader(ctx context.Context) (string, error) {
	holder, _, err := e.store.Get(ctx, e.key)
	return holder, err
}

// Start runs one election cycle immediately and then one per heartbeat
// until Stop is called.
func (e *Elector) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.Tick(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Tick(ctx)
			}
		}
	}()
	e.log.Info("leader election started", "key", e.key, "ttl", e.ttl, "heartbeat", e.heartbeat)
}

// Stop halts the heartbeat and gives up the lease if held.
func (e *Elector) Stop(ctx context.Context) {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.Resign(ctx)
}

// Tick runs one election cycle: renew when leading, otherwise try to acquire.
// A leader that fails to renew only steps down; it competes again on the
// next cycle like any other instance.
func (e *Elector) Tick(ctx context.Context) {
	if e.leader.Load() {
		renewed, err := e.store.CompareAndExpire(ctx, e.key, e.id, e.ttl)
		if err == nil && renewed {
			return
		}
		e.demote("lease lost", err)
		return
	}

	acquired, err := e.store.SetNX(ctx, e.key, e.id, e.ttl)
	if err != nil {
		e.log.Warn("leader election attempt failed", "error", err)
		return
	}
	if acquired {
		e.leader.Store(true)
		e.log.Info("became leader")
	}
}

// Resign deletes the lease if this instance still holds it.
func (e *Elector) Resign(ctx context.Context) {
	if !e.leader.Swap(false) {
		return
	}
	released, err := e.store.CompareAndDelete(ctx, e.key, e.id)
	if err != nil {
		e.log.Warn("failed to release leadership", "error", err)
		return
	}
	if released {
		e.log.Info("leadership released")
	}
}

func (e *Elector) demote(reason string, err error) {
	if !e.leader.Swap(false) {
		return
	}
	if err != nil {
		e.log.Warn("lost leadership", "reason", reason, "error", err)
		return
	}
	e.log.Warn("lost leadership", "reason", reason)
}
