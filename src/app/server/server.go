// Package server provides HTTP server initialization and lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"tapround/src/app/http/handler"
	"tapround/src/app/middleware"
	"tapround/src/core/ports"
	"tapround/src/core/usecase"
	"tapround/src/infra/config"
)

// Rate limited operation names, part of the counter keys.
const (
	opTap     = "tap"
	opList    = "list"
	opDetails = "details"
)

// Dependencies are the services the HTTP layer serves.
type Dependencies struct {
	Rounds      handler.RoundUsecase
	Sweeper     handler.Sweeper
	Health      *usecase.HealthService
	Resolver    ports.PrincipalResolver
	RateLimiter ports.RateLimiter
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg    *config.Config
	log    *slog.Logger
	router *gin.Engine
	http   *http.Server
	deps   Dependencies

	// Handlers
	healthHandler *handler.HealthHandler
	roundHandler  *handler.RoundHandler
}

// New creates a new Server with all dependencies wired up.
func New(cfg *config.Config, log *slog.Logger, deps Dependencies) *Server {
	// Set Gin mode based on log level
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router without default middleware
	router := gin.New()

	s := &Server{
		cfg:           cfg,
		log:           log,
		router:        router,
		deps:          deps,
		healthHandler: handler.NewHealthHandler(deps.Health),
		roundHandler:  handler.NewRoundHandler(deps.Rounds, deps.Sweeper),
	}

	s.setupMiddleware()
	s.setupRoutes()
	s.setupHTTPServer()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	// Order matters: Recovery should be first to catch all panics
	s.router.Use(middleware.Recovery(s.log))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logging(s.log))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	rl := s.cfg.RateLimit
	tapPolicy := ports.RateLimitPolicy{Points: rl.TapPoints, Window: rl.TapWindow, Block: rl.TapBlock}
	readPolicy := ports.RateLimitPolicy{Points: rl.ReadPoints, Window: rl.ReadWindow, Block: rl.ReadBlock}

	// Health check endpoints (no auth required)
	s.router.GET("/health", s.healthHandler.Health)
	s.router.GET("/health/detailed", s.healthHandler.DetailedHealth)

	api := s.router.Group("/api")
	api.GET("/cluster/leader", s.healthHandler.Leader)

	authed := api.Group("", middleware.Authenticate(s.deps.Resolver, s.cfg.Auth.CookieName))
	adminOnly := middleware.RequireAdmin()

	rounds := authed.Group("/rounds")
	{
		rounds.POST("", adminOnly, s.roundHandler.Create)
		rounds.POST("/update-statuses", adminOnly, s.roundHandler.UpdateStatuses)
		rounds.GET("", middleware.RateLimit(s.deps.RateLimiter, opList, readPolicy), s.roundHandler.List)
		rounds.GET("/:id", middleware.RateLimit(s.deps.RateLimiter, opDetails, readPolicy), s.roundHandler.Details)
		rounds.POST("/:id/tap", middleware.RateLimit(s.deps.RateLimiter, opTap, tapPolicy), s.roundHandler.Tap)
	}

	// Handle 404
	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"code":       "NOT_FOUND",
				"message":    "The requested resource was not found",
				"request_id": middleware.GetRequestID(c),
			},
		})
	})
}

// setupHTTPServer configures the underlying HTTP server.
func (s *Server) setupHTTPServer() {
	s.http = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
}

// Run starts the HTTP server and blocks until shutdown.
// It handles graceful shutdown on SIGINT/SIGTERM.
func (s *Server) Run() error {
	// Channel to receive shutdown signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	// Channel to receive server errors
	errCh := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.log.Info("starting HTTP server",
			"addr", s.cfg.Server.Addr(),
		)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-quit:
		s.log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		return err
	}

	// Graceful shutdown
	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.log.Info("shutting down server", "timeout", s.cfg.Server.ShutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.log.Info("server stopped gracefully")
	return nil
}

// Router returns the Gin router for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}
