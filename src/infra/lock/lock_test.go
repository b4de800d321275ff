package lock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tapround/src/core/domain"
	"tapround/src/core/ports"
	"tapround/src/infra/coord"
)

var defaults = ports.LockOptions{TTL: 5 * time.Second, Retries: 3, RetryDelay: time.Millisecond}

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(coord.NewFromClient(rdb, log), defaults, log), mr
}

func TestAcquireIsExclusive(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := l.Acquire(ctx, "sweep", time.Minute)
			assert.NoError(t, err)
			if token != "" {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}

func TestReleaseIgnoresForeignToken(t *testing.T) {
	l, mr := newTestLocker(t)
	ctx := context.Background()

	token, err := l.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	ok, err := l.Release(ctx, "sweep", "someone-else")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, mr.Exists("lock:sweep"))

	ok, err = l.Release(ctx, "sweep", token)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, mr.Exists("lock:sweep"))
}

func TestLockExpires(t *testing.T) {
	l, mr := newTestLocker(t)
	ctx := context.Background()

	first, err := l.Acquire(ctx, "sweep", time.Second)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	mr.FastForward(2 * time.Second)

	second, err := l.Acquire(ctx, "sweep", time.Second)
	require.NoError(t, err)
	require.NotEmpty(t, second)

	ok, err := l.Release(ctx, "sweep", first)
	require.NoError(t, err)
	assert.False(t, ok, "stale holder must not free the new lease")
}

func TestWithLockReleasesOnSuccessAndError(t *testing.T) {
	l, mr := newTestLocker(t)
	ctx := context.Background()

	err := l.WithLock(ctx, "sweep", ports.LockOptions{}, func(ctx context.Context) error {
		assert.True(t, mr.Exists("lock:sweep"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("lock:sweep"))

	boom := errors.New("boom")
	err = l.WithLock(ctx, "sweep", ports.LockOptions{}, func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:sweep"))
}

func TestWithLockGivesUpAfterRetries(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()

	held, err := l.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, held)

	ran := false
	err = l.WithLock(ctx, "sweep", ports.LockOptions{Retries: 2}, func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, ran)
	assert.True(t, domain.IsConflict(err))
	assert.Equal(t, domain.CodeLockNotAcquired, domain.CodeOf(err))
}

func TestWithLockWaitsForHolder(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()

	held, err := l.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, held)

	go func() {
		time.Sleep(5 * time.Millisecond)
		_, _ = l.Release(ctx, "sweep", held)
	}()

	err = l.WithLock(ctx, "sweep", ports.LockOptions{Retries: 10, RetryDelay: 5 * time.Millisecond}, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestWithLockStoreDown(t *testing.T) {
	l, mr := newTestLocker(t)
	mr.Close()

	err := l.WithLock(context.Background(), "sweep", ports.LockOptions{Retries: 2}, func(ctx context.Context) error {
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, domain.CodeLockNotAcquired, domain.CodeOf(err))
}

func TestAcquireRejectsNonPositiveTTL(t *testing.T) {
	l, mr := newTestLocker(t)

	token, err := l.Acquire(context.Background(), "sweep", 0)
	require.Error(t, err)
	assert.Empty(t, token)
	assert.False(t, mr.Exists("lock:sweep"), "a lock without expiry must never be written")
}

func TestAcquiredLockAlwaysExpires(t *testing.T) {
	l, mr := newTestLocker(t)

	token, err := l.Acquire(context.Background(), "sweep", defaults.TTL)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, defaults.TTL, mr.TTL("lock:sweep"))

	mr.FastForward(24 * time.Hour)
	assert.False(t, mr.Exists("lock:sweep"))
}
