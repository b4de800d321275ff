package handler

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tapround/src/app/http/dto"
	"tapround/src/app/http/response"
	"tapround/src/app/middleware"
	"tapround/src/core/domain"
	"tapround/src/core/usecase"
)

// RoundUsecase is the round behavior the handler depends on.
type RoundUsecase interface {
	CreateRound(ctx context.Context, in usecase.CreateRoundInput) (*usecase.RoundDetail, error)
	ListRounds(ctx context.Context, filter *domain.RoundStatus) ([]usecase.RoundListItem, error)
	GetRoundDetails(ctx context.Context, roundID uuid.UUID, viewerID *uuid.UUID) (*usecase.RoundDetail, error)
	ProcessTap(ctx context.Context, roundID, userID uuid.UUID) (*domain.TapResult, error)
}

// Sweeper refreshes every stored round status under the cluster lock.
type Sweeper interface {
	Sweep(ctx context.Context) error
}

// RoundHandler handles round-related endpoints.
type RoundHandler struct {
	rounds  RoundUsecase
	sweeper Sweeper
}

func NewRoundHandler(rounds RoundUsecase, sweeper Sweeper) *RoundHandler {
	return &RoundHandler{rounds: rounds, sweeper: sweeper}
}

// Create starts a new round.
// POST /api/rounds
func (h *RoundHandler) Create(c *gin.Context) {
	var req dto.CreateRoundRequest
	// An empty body means "use the configured defaults".
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "invalid request body", middleware.GetRequestID(c))
		return
	}

	detail, err := h.rounds.CreateRound(c.Request.Context(), req.ToInput())
	if err != nil {
		response.FromDomainError(c, err, middleware.GetRequestID(c))
		return
	}
	response.Created(c, dto.NewRoundDetailsResponse(detail))
}

// List returns rounds, optionally filtered by ?status=.
// GET /api/rounds
func (h *RoundHandler) List(c *gin.Context) {
	var filter *domain.RoundStatus
	if raw := c.Query("status"); raw != "" {
		st, err := domain.ParseRoundStatus(strings.ToUpper(raw))
		if err != nil {
			response.FromDomainError(c, err, middleware.GetRequestID(c))
			return
		}
		filter = &st
	}

	items, err := h.rounds.ListRounds(c.Request.Context(), filter)
	if err != nil {
		response.FromDomainError(c, err, middleware.GetRequestID(c))
		return
	}
	response.OK(c, dto.NewRoundList(items))
}

// Details returns a round with its leaderboard and the caller's standing.
// GET /api/rounds/:id
func (h *RoundHandler) Details(c *gin.Context) {
	roundID, ok := roundIDParam(c)
	if !ok {
		return
	}

	var viewer *uuid.UUID
	if p := middleware.CurrentPrincipal(c); p != nil {
		viewer = &p.ID
	}

	detail, err := h.rounds.GetRoundDetails(c.Request.Context(), roundID, viewer)
	if err != nil {
		response.FromDomainError(c, err, middleware.GetRequestID(c))
		return
	}
	response.OK(c, dto.NewRoundDetailsResponse(detail))
}

// Tap records one tap by the caller.
// POST /api/rounds/:id/tap
func (h *RoundHandler) Tap(c *gin.Context) {
	roundID, ok := roundIDParam(c)
	if !ok {
		return
	}
	p := middleware.CurrentPrincipal(c)
	if p == nil {
		response.Unauthorized(c, "authentication required", middleware.GetRequestID(c))
		return
	}

	result, err := h.rounds.ProcessTap(c.Request.Context(), roundID, p.ID)
	if err != nil {
		response.FromDomainError(c, err, middleware.GetRequestID(c))
		return
	}
	response.OK(c, dto.NewTapResponse(result))
}

// UpdateStatuses runs a status sweep on demand.
// POST /api/rounds/update-statuses
func (h *RoundHandler) UpdateStatuses(c *gin.Context) {
	if err := h.sweeper.Sweep(c.Request.Context()); err != nil {
		response.FromDomainError(c, err, middleware.GetRequestID(c))
		return
	}
	response.OK(c, gin.H{"message": "round statuses updated"})
}

func roundIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "id", "invalid round id", middleware.GetRequestID(c))
		return uuid.Nil, false
	}
	return id, true
}
