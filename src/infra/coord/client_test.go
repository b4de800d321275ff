package coord

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewFromClient(rdb, slog.New(slog.NewTextHandler(io.Discard, nil))), mr
}

func TestSetNXOnlyFirstWins(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "k", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "k", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	v, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "a", v)
}

func TestGetMissing(t *testing.T) {
	c, _ := newTestClient(t)

	v, found, err := c.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, v)
}

func TestTTL(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 10*time.Second))
	mr.FastForward(4 * time.Second)

	d, err := c.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 6*time.Second, d)

	require.NoError(t, c.Set(ctx, "forever", "v", 0))
	d, err = c.TTL(ctx, "forever")
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = c.TTL(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestCompareAndDelete(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "lock", "mine", time.Minute))

	ok, err := c.CompareAndDelete(ctx, "lock", "theirs")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, mr.Exists("lock"))

	ok, err = c.CompareAndDelete(ctx, "lock", "mine")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, mr.Exists("lock"))
}

func TestCompareAndExpire(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "leader", "a", 3*time.Second))

	ok, err := c.CompareAndExpire(ctx, "leader", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3*time.Second, mr.TTL("leader"))

	ok, err = c.CompareAndExpire(ctx, "leader", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("leader"))
}

func TestIncrWindow(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	n, left, err := c.IncrWindow(ctx, "rl", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 2*time.Second, left)

	mr.FastForward(500 * time.Millisecond)
	n, left, err = c.IncrWindow(ctx, "rl", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1500*time.Millisecond, left, "later hits keep the original window")

	mr.FastForward(2 * time.Second)
	n, _, err = c.IncrWindow(ctx, "rl", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestHealthFailsWhenStoreIsDown(t *testing.T) {
	c, mr := newTestClient(t)
	require.NoError(t, c.Health(context.Background()))

	mr.Close()
	assert.Error(t, c.Health(context.Background()))
}
