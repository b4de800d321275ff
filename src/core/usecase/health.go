package usecase

import (
	"context"
	"log/slog"
	"sort"

	"tapround/src/core/ports"
)

// HealthService handles health check logic across the relational store,
// the coordination store and the election state.
type HealthService struct {
	log        *slog.Logger
	components map[string]ports.ExternalService
	leader     ports.Leadership
}

// NewHealthService creates a new HealthService. components maps a display
// name to its health probe.
func NewHealthService(log *slog.Logger, leader ports.Leadership, components map[string]ports.ExternalService) *HealthService {
	return &HealthService{
		log:        log,
		components: components,
		leader:     leader,
	}
}

// HealthStatus represents the health of the application.
type HealthStatus struct {
	Status     string                     `json:"status"`
	InstanceID string                     `json:"instance_id,omitempty"`
	IsLeader   bool                       `json:"is_leader"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Check performs a health check of all application components.
// Returns the overall health status.
func (s *HealthService) Check(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:     "ok",
		Components: make(map[string]ComponentHealth, len(s.components)),
	}
	if s.leader != nil {
		status.InstanceID = s.leader.InstanceID()
		status.IsLeader = s.leader.IsLeader()
	}

	names := make([]string, 0, len(s.components))
	for name := range s.components {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.components[name].Health(ctx); err != nil {
			status.Status = "degraded"
			status.Components[name] = ComponentHealth{
				Status:  "unhealthy",
				Message: err.Error(),
			}
			s.log.Warn("component unhealthy", "component", name, "error", err)
			continue
		}
		status.Components[name] = ComponentHealth{Status: "healthy"}
	}

	return status
}

// Leadership exposes the election state for the cluster endpoint.
func (s *HealthService) Leadership() ports.Leadership {
	return s.leader
}
