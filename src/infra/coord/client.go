// Package coord provides the shared coordination store used for leader
// election, distributed locks and rate limiting.
//
// It wraps a go-redis client and exposes only the primitives those
// components need. Compare-and-* operations run as Lua scripts so the
// read and the write happen atomically on the server.
package coord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"tapround/src/infra/config"
)

var (
	compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	compareAndExpire = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}`)
)

// Client is a thin wrapper over a Redis connection pool.
type Client struct {
	rdb *redis.Client
	log *slog.Logger
}

// New connects to the store described by cfg and verifies it with PING.
func New(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.MinRetryBackoff
	opts.MaxRetryBackoff = cfg.MaxRetryBackoff

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info("redis connection established", "addr", opts.Addr, "db", opts.DB)
	return NewFromClient(rdb, log), nil
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(rdb *redis.Client, log *slog.Logger) *Client {
	return &Client{rdb: rdb, log: log}
}

// Close releases the connection pool.
func (c *Client) Close() error {
	err := c.rdb.Close()
	c.log.Info("redis connection closed")
	return err
}

// Health pings the store.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// SetNX stores value under key only if key is absent.
func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

// Set stores value under key, replacing any existing value.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Get returns the value under key. ok is false when the key is absent.
func (c *Client) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	value, err = c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// TTL returns the remaining lifetime of key, or zero when the key is
// absent or has no expiry.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := c.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, nil
	}
	return d, nil
}

// CompareAndDelete removes key only if it still holds value.
func (c *Client) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	n, err := compareAndDelete.Run(ctx, c.rdb, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CompareAndExpire resets key's TTL only if it still holds value.
func (c *Client) CompareAndExpire(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	n, err := compareAndExpire.Run(ctx, c.rdb, []string{key}, value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// IncrWindow increments the counter under key, starting a window of the
// given length on the first hit. It returns the new count and the time
// left in the window.
func (c *Client) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := incrWindow.Run(ctx, c.rdb, []string{key}, window.Milliseconds()).Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("unexpected window reply: %v", res)
	}
	count, ok1 := res[0].(int64)
	pttl, ok2 := res[1].(int64)
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("unexpected window reply: %v", res)
	}
	if pttl < 0 {
		pttl = 0
	}
	return count, time.Duration(pttl) * time.Millisecond, nil
}
