package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tapround/src/core/ports"
)

// StatusSweepLockKey names the lock held while a status sweep runs.
const StatusSweepLockKey = "round-status-sweep"

// StatusMaintenance periodically refreshes round statuses on the elected leader.
type StatusMaintenance struct {
	rounds   *RoundService
	leader   ports.Leadership
	locker   ports.Locker
	lockOpts ports.LockOptions
	interval time.Duration
	log      *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewStatusMaintenance(
	rounds *RoundService,
	leader ports.Leadership,
	locker ports.Locker,
	lockOpts ports.LockOptions,
	interval time.Duration,
	log *slog.Logger,
) *StatusMaintenance {
	return &StatusMaintenance{
		rounds:   rounds,
		leader:   leader,
		locker:   locker,
		lockOpts: lockOpts,
		interval: interval,
		log:      log,
	}
}

// Start runs the sweep loop in a background goroutine until Stop or ctx ends.
func (m *StatusMaintenance) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.log.Info("status maintenance started", "interval", m.interval)
		for {
			select {
			case <-ticker.C:
				m.Tick(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (m *StatusMaintenance) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.log.Info("status maintenance stopped")
}

// Tick performs one sweep if this instance currently leads.
func (m *StatusMaintenance) Tick(ctx context.Context) {
	if !m.leader.IsLeader() {
		return
	}
	if err := m.Sweep(ctx); err != nil {
		m.log.Warn("status sweep failed", "instance_id", m.leader.InstanceID(), "error", err)
	}
}

// Sweep runs UpdateRoundStatuses under the cluster-wide sweep lock.
// It is also the entry point for manually triggered refreshes.
func (m *StatusMaintenance) Sweep(ctx context.Context) error {
	return m.locker.WithLock(ctx, StatusSweepLockKey, m.lockOpts, m.rounds.UpdateRoundStatuses)
}
