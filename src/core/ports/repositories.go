// Package ports defines interfaces (ports) that connect core domain to infrastructure.
// These interfaces follow the ports and adapters (hexagonal) architecture pattern.
//
// Ports are defined here in the core layer, while implementations (adapters)
// live in src/infra. This ensures the core has no dependency on infrastructure.
package ports

import (
	"context"

	"github.com/google/uuid"

	"tapround/src/core/domain"
)

// Repository is the base interface for all repositories.
// Concrete repositories should embed this and add entity-specific methods.
type Repository interface {
	// Health checks if the underlying storage is reachable.
	Health(ctx context.Context) error
}

// RoundRepository persists rounds and participants in the relational store,
// the single source of truth for taps, scores and totals.
type RoundRepository interface {
	Repository

	CreateRound(ctx context.Context, round *domain.Round) (*domain.Round, error)
	GetRound(ctx context.Context, roundID uuid.UUID) (*domain.Round, error)
	// ListRounds returns rounds whose stored status is one of statuses,
	// or all rounds when statuses is empty.
	ListRounds(ctx context.Context, statuses ...domain.RoundStatus) ([]domain.Round, error)
	// ListParticipants returns the round's participants ordered by score descending.
	ListParticipants(ctx context.Context, roundID uuid.UUID) ([]domain.ParticipantEntry, error)
	// UpdateRoundStatus stores to only if the stored value still equals from.
	// It reports whether a row was changed.
	UpdateRoundStatus(ctx context.Context, roundID uuid.UUID, from, to domain.RoundStatus) (bool, error)

	// InTapTx runs fn inside one serializable transaction with bounded waits.
	// fn's error rolls the transaction back and is returned unchanged.
	InTapTx(ctx context.Context, fn func(ctx context.Context, tx TapTx) error) error
}

// TapTx is the unit of work available to a tap.
type TapTx interface {
	GetRound(ctx context.Context, roundID uuid.UUID) (*domain.Round, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	// UpsertParticipant returns the (round, user) row, creating it with zero
	// taps and score when absent.
	UpsertParticipant(ctx context.Context, roundID, userID uuid.UUID) (*domain.Participant, error)
	UpdateParticipant(ctx context.Context, p *domain.Participant) error
	// AddRoundScore increments the round total and returns the new value.
	AddRoundScore(ctx context.Context, roundID uuid.UUID, delta int64) (int64, error)
}
