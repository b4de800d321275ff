package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's role.
type Role string

const (
	RoleSurvivor Role = "SURVIVOR"
	RoleAdmin    Role = "ADMIN"
	// RoleObserver taps without affecting the board. Persisted as NIKITA
	// in the users table.
	RoleObserver Role = "NIKITA"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSurvivor, RoleAdmin, RoleObserver:
		return true
	}
	return false
}

// User is the subset of a user record the round engine reads.
type User struct {
	ID       uuid.UUID
	Username string
	Role     Role
}

// Principal is the authenticated caller supplied by the identity collaborator.
type Principal struct {
	ID       uuid.UUID
	Username string
	Role     Role
}

// IsAdmin reports whether the principal may create rounds and trigger maintenance.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Round represents a time-boxed tapping event.
// Status is a cached value of StatusAt(StartAt, EndAt, now).
type Round struct {
	ID         uuid.UUID
	StartAt    time.Time
	EndAt      time.Time
	Status     RoundStatus
	TotalScore int64
	BossImage  *string
	CreatedAt  time.Time
}

// Reconcile recomputes the round status at now and reports whether the
// cached value changed.
func (r *Round) Reconcile(now time.Time) bool {
	current := StatusAt(r.StartAt, r.EndAt, now)
	if current == r.Status {
		return false
	}
	r.Status = current
	return true
}

// TimeRemaining returns whole seconds until the next phase boundary:
// until start while cooling down, until end while active, zero once finished.
func (r *Round) TimeRemaining(now time.Time) int64 {
	var d time.Duration
	switch StatusAt(r.StartAt, r.EndAt, now) {
	case RoundCooldown:
		d = r.StartAt.Sub(now)
	case RoundActive:
		d = r.EndAt.Sub(now)
	default:
		return 0
	}
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// Participant is a user's tap/score record scoped to one round.
type Participant struct {
	ID      uuid.UUID
	RoundID uuid.UUID
	UserID  uuid.UUID
	Taps    int64
	Score   int64
}

// ParticipantEntry is a participant joined with the user's display name.
type ParticipantEntry struct {
	Participant
	Username string
}

// TapResult is returned for every committed tap.
type TapResult struct {
	Score           int64
	Taps            int64
	PointsEarned    int64
	IsEleventhTap   bool
	RoundTotalScore int64
}
