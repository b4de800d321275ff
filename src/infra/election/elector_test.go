package election

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

	"tapround/src/infra/config"
	"tapround/src/infra/coord"
)

var leaderCfg = config.LeaderConfig{Key: "cluster:leader", TTL: 15 * time.Second, Heartbeat: 5 * time.Second}

func newElectors(t *testing.T, n int) ([]*Elector, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	out := make([]*Elector, n)
	for i := range out {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		t.Cleanup(func() { _ = rdb.Close() })
		out[i] = New(coord.NewFromClient(rdb, log), leaderCfg, log)
	}
	return out, mr
}

func leaders(electors []*Elector) []*Elector {
	var out []*Elector
	for _, e := range electors {
		if e.IsLeader() {
			out = append(out, e)
		}
	}
	return out
}

func tickAll(electors []*Elector) {
	for _, e := range electors {
		e.Tick(context.Background())
	}
}

func TestExactlyOneLeader(t *testing.T) {
	electors, mr := newElectors(t, 3)

	tickAll(electors)
	tickAll(electors)

	got := leaders(electors)
	require.Len(t, got, 1)
	v, err := mr.Get(leaderCfg.Key)
	require.NoError(t, err)
	assert.Equal(t, got[0].InstanceID(), v)
	assert.Equal(t, leaderCfg.TTL, mr.TTL(leaderCfg.Key))
}

func TestRenewExtendsLease(t *testing.T) {
	electors, mr := newElectors(t, 1)
	e := electors[0]

	e.Tick(context.Background())
	require.True(t, e.IsLeader())

	mr.FastForward(10 * time.Second)
	e.Tick(context.Background())
	assert.True(t, e.IsLeader())
	assert.Equal(t, leaderCfg.TTL, mr.TTL(leaderCfg.Key))
}

func TestFailoverAfterLeaseExpires(t *testing.T) {
	electors, mr := newElectors(t, 2)
	a, b := electors[0], electors[1]

	a.Tick(context.Background())
	b.Tick(context.Background())
	require.True(t, a.IsLeader())
	require.False(t, b.IsLeader())

	// a stops heartbeating.
	mr.FastForward(leaderCfg.TTL + time.Second)
	b.Tick(context.Background())
	assert.True(t, b.IsLeader())

	a.Tick(context.Background())
	assert.False(t, a.IsLeader(), "stale leader must notice the takeover")
	assert.Len(t, leaders(electors), 1)
}

func TestDemotedWhenLeaseOverwritten(t *testing.T) {
	electors, mr := newElectors(t, 1)
	e := electors[0]

	e.Tick(context.Background())
	require.True(t, e.IsLeader())

	require.NoError(t, mr.Set(leaderCfg.Key, "intruder"))
	e.Tick(context.Background())
	assert.False(t, e.IsLeader())
}

func TestResignLeavesForeignLease(t *testing.T) {
	electors, mr := newElectors(t, 1)
	e := electors[0]

	e.Tick(context.Background())
	require.True(t, e.IsLeader())
	require.NoError(t, mr.Set(leaderCfg.Key, "other"))

	e.Resign(context.Background())
	assert.False(t, e.IsLeader())
	v, err := mr.Get(leaderCfg.Key)
	require.NoError(t, err)
	assert.Equal(t, "other", v)
}

func TestResignReleasesOwnLease(t *testing.T) {
	electors, mr := newElectors(t, 2)
	a, b := electors[0], electors[1]

	a.Tick(context.Background())
	require.True(t, a.IsLeader())

	a.Resign(context.Background())
	assert.False(t, mr.Exists(leaderCfg.Key))

	b.Tick(context.Background())
	assert.True(t, b.IsLeader())
}

func TestStoreErrorMeansNotLeader(t *testing.T) {
	electors, mr := newElectors(t, 1)
	e := electors[0]

	e.Tick(context.Background())
	require.True(t, e.IsLeader())

	mr.Close()
	e.Tick(context.Background())
	assert.False(t, e.IsLeader())
}

func TestStartStop(t *testing.T) {
	electors, mr := newElectors(t, 1)
	e := electors[0]

	e.Start(context.Background())
	assert.True(t, e.IsLeader(), "first cycle runs synchronously")

	e.Stop(context.Background())
	assert.False(t, e.IsLeader())
	assert.False(t, mr.Exists(leaderCfg.Key))
}

func TestInstanceIDsAreUnique(t *testing.T) {
	assert.NotEqual(t, NewInstanceID(), NewInstanceID())
}

func TestLostLeaseOnlyDemotes(t *testing.T) {
	electors, mr := newElectors(t, 1)
	e := electors[0]

	e.Tick(context.Background())
	require.True(t, e.IsLeader())

	mr.Del(leaderCfg.Key)
	e.Tick(context.Background())
	assert.False(t, e.IsLeader())
	assert.False(t, mr.Exists(leaderCfg.Key), "the cycle that lost the lease must not take it again")

	e.Tick(context.Background())
	assert.True(t, e.IsLeader())
}

func TestCurrentLeader(t *testing.T) {
	electors, _ := newElectors(t, 2)
	a, b := electors[0], electors[1]
	ctx := context.Background()

	holder, err := b.CurrentLeader(ctx)
	require.NoError(t, err)
	assert.Empty(t, holder)

	a.Tick(ctx)
	b.Tick(ctx)
	holder, err = b.CurrentLeader(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.InstanceID(), holder)
}
