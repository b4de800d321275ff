// Package handler contains HTTP handlers for the API.
// Handlers are responsible for:
// - Parsing and validating HTTP requests
// - Calling use case methods
// - Converting results to HTTP responses
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tapround/src/app/http/dto"
	"tapround/src/app/http/response"
	"tapround/src/core/usecase"
)

// HealthHandler handles health check and cluster endpoints.
type HealthHandler struct {
	healthService *usecase.HealthService
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(healthService *usecase.HealthService) *HealthHandler {
	return &HealthHandler{
		healthService: healthService,
	}
}

// HealthResponse is the response for the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// Health reports that the process is serving.
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
	})
}

// DetailedHealth probes every dependency. A degraded dependency yields 503.
// GET /health/detailed
func (h *HealthHandler) DetailedHealth(c *gin.Context) {
	status := h.healthService.Check(c.Request.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// Leader reports this instance's election state.
// GET /api/cluster/leader
func (h *HealthHandler) Leader(c *gin.Context) {
	leader := h.healthService.Leadership()
	if leader == nil {
		response.OK(c, dto.LeaderResponse{})
		return
	}
	resp := dto.LeaderResponse{
		InstanceID: leader.InstanceID(),
		IsLeader:   leader.IsLeader(),
	}
	// An unreachable store still answers with this instance's own view.
	if holder, err := leader.CurrentLeader(c.Request.Context()); err == nil {
		resp.LeaderID = holder
	}
	response.OK(c, resp)
}
