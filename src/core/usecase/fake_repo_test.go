package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"tapround/src/core/domain"
	"tapround/src/core/ports"
)

type participantKey struct {
	roundID uuid.UUID
	userID  uuid.UUID
}

// memRepo is a RoundRepository whose transactions are serialized by one mutex
// and applied only on success.
type memRepo struct {
	mu           sync.Mutex
	rounds       map[uuid.UUID]domain.Round
	users        map[uuid.UUID]domain.User
	participants map[participantKey]domain.Participant

	createErr       error
	updateStatusErr error
	failParticipant error
	statusWrites    int
}

func newMemRepo() *memRepo {
	return &memRepo{
		rounds:       make(map[uuid.UUID]domain.Round),
		users:        make(map[uuid.UUID]domain.User),
		participants: make(map[participantKey]domain.Participant),
	}
}

func (r *memRepo) addUser(name string, role domain.Role) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.New()
	r.users[id] = domain.User{ID: id, Username: name, Role: role}
	return id
}

func (r *memRepo) putRound(round domain.Round) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds[round.ID] = round
}

func (r *memRepo) round(id uuid.UUID) domain.Round {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rounds[id]
}

func (r *memRepo) participant(roundID, userID uuid.UUID) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[participantKey{roundID, userID}]
	return p, ok
}

func (r *memRepo) Health(context.Context) error { return nil }

func (r *memRepo) CreateRound(_ context.Context, round *domain.Round) (*domain.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.rounds[round.ID] = *round
	out := *round
	return &out, nil
}

func (r *memRepo) GetRound(_ context.Context, roundID uuid.UUID) (*domain.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	round, ok := r.rounds[roundID]
	if !ok {
		return nil, domain.NewRoundNotFoundError(roundID)
	}
	return &round, nil
}

func (r *memRepo) ListRounds(_ context.Context, statuses ...domain.RoundStatus) ([]domain.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Round
	for _, round := range r.rounds {
		if len(statuses) == 0 || slices.Contains(statuses, round.Status) {
			out = append(out, round)
		}
	}
	return out, nil
}

func (r *memRepo) ListParticipants(_ context.Context, roundID uuid.UUID) ([]domain.ParticipantEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ParticipantEntry
	for key, p := range r.participants {
		if key.roundID == roundID {
			out = append(out, domain.ParticipantEntry{Participant: p, Username: r.users[key.userID].Username})
		}
	}
	return out, nil
}

func (r *memRepo) UpdateRoundStatus(_ context.Context, roundID uuid.UUID, from, to domain.RoundStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateStatusErr != nil {
		return false, r.updateStatusErr
	}
	round, ok := r.rounds[roundID]
	if !ok || round.Status != from {
		return false, nil
	}
	round.Status = to
	r.rounds[roundID] = round
	r.statusWrites++
	return true, nil
}

func (r *memRepo) InTapTx(ctx context.Context, fn func(ctx context.Context, tx ports.TapTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memTx{
		repo:         r,
		rounds:       make(map[uuid.UUID]domain.Round),
		participants: make(map[participantKey]domain.Participant),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, round := range tx.rounds {
		r.rounds[id] = round
	}
	for key, p := range tx.participants {
		r.participants[key] = p
	}
	return nil
}

// memTx stages writes until InTapTx commits them. The repo mutex is held.
type memTx struct {
	repo         *memRepo
	rounds       map[uuid.UUID]domain.Round
	participants map[participantKey]domain.Participant
}

func (t *memTx) GetRound(_ context.Context, roundID uuid.UUID) (*domain.Round, error) {
	if round, ok := t.rounds[roundID]; ok {
		return &round, nil
	}
	round, ok := t.repo.rounds[roundID]
	if !ok {
		return nil, domain.NewRoundNotFoundError(roundID)
	}
	return &round, nil
}

func (t *memTx) GetUser(_ context.Context, userID uuid.UUID) (*domain.User, error) {
	u, ok := t.repo.users[userID]
	if !ok {
		return nil, domain.NewNotFoundError("user")
	}
	return &u, nil
}

func (t *memTx) UpsertParticipant(_ context.Context, roundID, userID uuid.UUID) (*domain.Participant, error) {
	key := participantKey{roundID, userID}
	if p, ok := t.participants[key]; ok {
		return &p, nil
	}
	p, ok := t.repo.participants[key]
	if !ok {
		p = domain.Participant{ID: uuid.New(), RoundID: roundID, UserID: userID}
	}
	t.participants[key] = p
	return &p, nil
}

func (t *memTx) UpdateParticipant(_ context.Context, p *domain.Participant) error {
	if t.repo.failParticipant != nil {
		return t.repo.failParticipant
	}
	t.participants[participantKey{p.RoundID, p.UserID}] = *p
	return nil
}

func (t *memTx) AddRoundScore(ctx context.Context, roundID uuid.UUID, delta int64) (int64, error) {
	round, err := t.GetRound(ctx, roundID)
	if err != nil {
		return 0, err
	}
	round.TotalScore += delta
	t.rounds[roundID] = *round
	return round.TotalScore, nil
}

var errInjected = errors.New("injected failure")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
