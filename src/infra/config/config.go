// Package config handles application configuration via environment variables.
// It uses kelseyhightower/envconfig for parsing and provides sensible defaults.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
// Values are loaded from environment variables with the prefix "APP".
// Example: APP_PORT=8080, APP_LOG_LEVEL=debug
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Round     RoundConfig
	Leader    LeaderConfig
	Lock      LockConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Port is the HTTP server port (default: 3000)
	Port int `envconfig:"PORT" default:"3000"`

	// Host is the HTTP server host (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// ReadTimeout is the maximum duration for reading the entire request (default: 10s)
	ReadTimeout time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`

	// WriteTimeout is the maximum duration before timing out writes of the response (default: 30s)
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`

	// ShutdownTimeout is the maximum duration to wait for active connections to finish (default: 30s)
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name     string `envconfig:"DB_NAME" default:"tapround"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	// MaxOpenConns is the maximum number of open connections (default: 25)
	MaxOpenConns int `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`

	// MaxIdleConns is the minimum number of idle connections kept (default: 5)
	MaxIdleConns int `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`

	// ConnMaxLifetime is the maximum lifetime of a connection (default: 5m)
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`

	// Migrate applies embedded schema migrations at startup.
	Migrate bool `envconfig:"DB_MIGRATE" default:"false"`
}

// RedisConfig holds coordination store settings.
type RedisConfig struct {
	URL string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`

	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"20"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`

	// MaxRetries caps per-command retries (default: 3)
	MaxRetries      int           `envconfig:"REDIS_MAX_RETRIES" default:"3"`
	MinRetryBackoff time.Duration `envconfig:"REDIS_MIN_RETRY_BACKOFF" default:"50ms"`
	MaxRetryBackoff time.Duration `envconfig:"REDIS_MAX_RETRY_BACKOFF" default:"2s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is the log level: debug, info, warn, error (default: info)
	Level string `envconfig:"LOG_LEVEL" default:"info"`

	// Format is the log format: json, text, plain (default: json)
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// RoundConfig holds round defaults and tap transaction bounds.
type RoundConfig struct {
	// Duration is the default active phase length (default: 60s)
	Duration time.Duration `envconfig:"ROUND_DURATION" default:"60s"`

	// Cooldown is the default delay between creation and start (default: 30s)
	Cooldown time.Duration `envconfig:"COOLDOWN_DURATION" default:"30s"`

	// TapMaxWait caps waiting for a connection and for contested row locks (default: 5s)
	TapMaxWait time.Duration `envconfig:"TAP_MAX_WAIT" default:"5s"`

	// TapTimeout caps the whole tap transaction (default: 10s)
	TapTimeout time.Duration `envconfig:"TAP_TIMEOUT" default:"10s"`
}

// LeaderConfig holds leader election and maintenance timing.
type LeaderConfig struct {
	Key       string        `envconfig:"LEADER_KEY" default:"cluster:leader"`
	TTL       time.Duration `envconfig:"LEADER_TTL" default:"15s"`
	Heartbeat time.Duration `envconfig:"LEADER_HEARTBEAT" default:"5s"`

	// SweepInterval is how often the leader refreshes round statuses (default: 5s)
	SweepInterval time.Duration `envconfig:"STATUS_SWEEP_INTERVAL" default:"5s"`
}

// LockConfig holds distributed lock defaults.
type LockConfig struct {
	TTL        time.Duration `envconfig:"LOCK_TTL" default:"5s"`
	Retries    int           `envconfig:"LOCK_RETRIES" default:"3"`
	RetryDelay time.Duration `envconfig:"LOCK_RETRY_DELAY" default:"100ms"`
}

// RateLimitConfig holds per-operation budgets.
type RateLimitConfig struct {
	TapPoints int64         `envconfig:"RATE_TAP_POINTS" default:"10"`
	TapWindow time.Duration `envconfig:"RATE_TAP_WINDOW" default:"1s"`
	TapBlock  time.Duration `envconfig:"RATE_TAP_BLOCK" default:"10s"`

	ReadPoints int64         `envconfig:"RATE_READ_POINTS" default:"30"`
	ReadWindow time.Duration `envconfig:"RATE_READ_WINDOW" default:"10s"`
	ReadBlock  time.Duration `envconfig:"RATE_READ_BLOCK" default:"0s"`
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	JWTSecret  string `envconfig:"JWT_SECRET" default:"default-secret-change-me"`
	CookieName string `envconfig:"AUTH_COOKIE" default:"access_token"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if c.Leader.Heartbeat <= 0 || c.Leader.TTL <= c.Leader.Heartbeat {
		return fmt.Errorf("leader TTL (%s) must exceed heartbeat (%s)", c.Leader.TTL, c.Leader.Heartbeat)
	}
	if c.Leader.SweepInterval <= 0 {
		return fmt.Errorf("status sweep interval must be positive, got %s", c.Leader.SweepInterval)
	}
	if c.Lock.TTL <= 0 {
		return fmt.Errorf("lock TTL must be positive, got %s", c.Lock.TTL)
	}
	if c.Lock.RetryDelay < 0 {
		return fmt.Errorf("lock retry delay must not be negative, got %s", c.Lock.RetryDelay)
	}
	if c.Lock.Retries < 1 {
		return fmt.Errorf("lock retries must be at least 1, got %d", c.Lock.Retries)
	}
	if c.Round.Duration <= 0 {
		return fmt.Errorf("round duration must be positive, got %s", c.Round.Duration)
	}
	return nil
}

// Load reads configuration from environment variables.
// It returns an error if required variables are missing or invalid.
func Load() (*Config, error) {
	var cfg Config

	// Each section is processed separately so env vars stay flat
	// (APP_PORT rather than APP_SERVER_PORT).
	sections := []struct {
		name   string
		target any
	}{
		{"server", &cfg.Server},
		{"database", &cfg.Database},
		{"redis", &cfg.Redis},
		{"log", &cfg.Log},
		{"round", &cfg.Round},
		{"leader", &cfg.Leader},
		{"lock", &cfg.Lock},
		{"rate limit", &cfg.RateLimit},
		{"auth", &cfg.Auth},
	}
	for _, s := range sections {
		if err := envconfig.Process("APP", s.target); err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", s.name, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
