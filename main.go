// Package main is the entry point for the round server.
// It initializes all dependencies and starts the HTTP server.
package main

import (
	"context"
	"log"
	"os"

	"tapround/src/app/server"
	"tapround/src/core/ports"
	"tapround/src/core/usecase"
	"tapround/src/infra/auth"
	"tapround/src/infra/config"
	"tapround/src/infra/coord"
	"tapround/src/infra/db"
	"tapround/src/infra/election"
	"tapround/src/infra/lock"
	"tapround/src/infra/logger"
	"tapround/src/infra/ratelimit"
	"tapround/src/infra/repo"
)

func main() {
	if err := run(); err != nil {
		log.Printf("fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize logger
	log := logger.New(cfg.Log)
	log.Info("starting application",
		"port", cfg.Server.Port,
		"log_level", cfg.Log.Level,
	)

	ctx := context.Background()

	// Initialize database connection
	pg, err := db.New(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer pg.Close()

	if cfg.Database.Migrate {
		if err := db.Migrate(ctx, pg, logger.WithComponent(log, "migrate")); err != nil {
			return err
		}
	}

	// Initialize coordination store
	store, err := coord.New(ctx, cfg.Redis, logger.WithComponent(log, "coord"))
	if err != nil {
		return err
	}
	defer store.Close()

	// Initialize repositories
	roundRepo := repo.NewRoundRepository(pg, db.TxOptions{
		MaxWait: cfg.Round.TapMaxWait,
		Timeout: cfg.Round.TapTimeout,
	}, logger.WithComponent(log, "repo"))

	// Cluster coordination
	elector := election.New(store, cfg.Leader, logger.WithComponent(log, "election"))
	locker := lock.New(store, ports.LockOptions{
		TTL:        cfg.Lock.TTL,
		Retries:    cfg.Lock.Retries,
		RetryDelay: cfg.Lock.RetryDelay,
	}, logger.WithComponent(log, "lock"))
	limiter := ratelimit.New(store, logger.WithComponent(log, "ratelimit"))

	// Create services
	rounds := usecase.NewRoundService(roundRepo, usecase.RoundSettings{
		Cooldown: cfg.Round.Cooldown,
		Duration: cfg.Round.Duration,
	}, logger.WithComponent(log, "rounds"))
	maintenance := usecase.NewStatusMaintenance(rounds, elector, locker, ports.LockOptions{},
		cfg.Leader.SweepInterval, logger.WithComponent(log, "maintenance"))
	health := usecase.NewHealthService(log, elector, map[string]ports.ExternalService{
		"database": roundRepo,
		"redis":    store,
	})

	elector.Start(ctx)
	defer elector.Stop(context.WithoutCancel(ctx))

	maintenance.Start(ctx)
	defer maintenance.Stop()

	// Create and run HTTP server
	srv := server.New(cfg, log, server.Dependencies{
		Rounds:      rounds,
		Sweeper:     maintenance,
		Health:      health,
		Resolver:    auth.NewJWTResolver(cfg.Auth.JWTSecret),
		RateLimiter: limiter,
	})

	// Run blocks until shutdown signal is received
	return srv.Run()
}
