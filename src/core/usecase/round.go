package usecase

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"tapround/src/core/domain"
	"tapround/src/core/ports"
)

// RoundSettings holds the defaults applied when a round is created without bounds.
type RoundSettings struct {
	Cooldown time.Duration
	Duration time.Duration
}

// RoundService coordinates round lifecycle and tap scoring.
type RoundService struct {
	repo     ports.RoundRepository
	settings RoundSettings
	log      *slog.Logger
	now      func() time.Time
}

func NewRoundService(repo ports.RoundRepository, settings RoundSettings, log *slog.Logger) *RoundService {
	return &RoundService{repo: repo, settings: settings, log: log, now: time.Now}
}

// CreateRoundInput are the optional bounds of a new round.
type CreateRoundInput struct {
	StartAt   *time.Time
	EndAt     *time.Time
	BossImage *string
}

// RoundDetail is a round with its leaderboard.
type RoundDetail struct {
	Round         domain.Round
	Participants  []domain.ParticipantEntry
	Winner        *domain.ParticipantEntry
	MyScore       *int64
	MyTaps        *int64
	TimeRemaining int64
}

// RoundListItem is a round as shown in listings.
type RoundListItem struct {
	Round         domain.Round
	TimeRemaining int64
}

// CreateRound persists a new round, defaulting missing bounds from settings.
func (s *RoundService) CreateRound(ctx context.Context, in CreateRoundInput) (*RoundDetail, error) {
	now := s.now()

	startAt := now.Add(s.settings.Cooldown)
	if in.StartAt != nil {
		startAt = *in.StartAt
	}
	endAt := startAt.Add(s.settings.Duration)
	if in.EndAt != nil {
		endAt = *in.EndAt
	}
	if !endAt.After(startAt) {
		return nil, domain.NewValidationError("endAt", "must be after startAt")
	}

	round := &domain.Round{
		ID:        uuid.New(),
		StartAt:   startAt,
		EndAt:     endAt,
		Status:    domain.StatusAt(startAt, endAt, now),
		BossImage: in.BossImage,
		CreatedAt: now,
	}

	created, err := s.repo.CreateRound(ctx, round)
	if err != nil {
		s.log.Error("round creation failed", "error", err)
		return nil, domain.NewRoundCreationError(err)
	}

	s.log.Info("round created",
		"round_id", created.ID,
		"status", created.Status,
		"start_at", created.StartAt,
		"end_at", created.EndAt,
	)

	return s.detail(created, nil, nil, now), nil
}

// candidateStatuses lists the stored statuses that can currently derive to want.
// Statuses only move forward, so a stored FINISHED round can never be ACTIVE.
func candidateStatuses(want domain.RoundStatus) []domain.RoundStatus {
	switch want {
	case domain.RoundCooldown:
		return []domain.RoundStatus{domain.RoundCooldown}
	case domain.RoundActive:
		return []domain.RoundStatus{domain.RoundCooldown, domain.RoundActive}
	default:
		return []domain.RoundStatus{domain.RoundCooldown, domain.RoundActive, domain.RoundFinished}
	}
}

// ListRounds returns rounds with freshly derived statuses, persisting any drift.
func (s *RoundService) ListRounds(ctx context.Context, filter *domain.RoundStatus) ([]RoundListItem, error) {
	var statuses []domain.RoundStatus
	if filter != nil {
		statuses = candidateStatuses(*filter)
	}

	rounds, err := s.repo.ListRounds(ctx, statuses...)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if _, err := s.reconcile(ctx, rounds, now); err != nil {
		s.log.Warn("round status reconciliation incomplete", "error", err)
	}

	items := make([]RoundListItem, 0, len(rounds))
	for _, r := range rounds {
		if filter != nil && r.Status != *filter {
			continue
		}
		items = append(items, RoundListItem{Round: r, TimeRemaining: r.TimeRemaining(now)})
	}

	slices.SortStableFunc(items, func(a, b RoundListItem) int {
		if c := cmp.Compare(a.Round.Status.Rank(), b.Round.Status.Rank()); c != 0 {
			return c
		}
		return b.Round.CreatedAt.Compare(a.Round.CreatedAt)
	})
	return items, nil
}

// GetRoundDetails returns a round with its participants. viewerID, when set,
// selects whose own score and taps are surfaced.
func (s *RoundService) GetRoundDetails(ctx context.Context, roundID uuid.UUID, viewerID *uuid.UUID) (*RoundDetail, error) {
	round, err := s.repo.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rounds := []domain.Round{*round}
	if _, err := s.reconcile(ctx, rounds, now); err != nil {
		s.log.Warn("round status reconciliation incomplete", "round_id", roundID, "error", err)
	}

	participants, err := s.repo.ListParticipants(ctx, roundID)
	if err != nil {
		return nil, err
	}
	return s.detail(&rounds[0], participants, viewerID, now), nil
}

func (s *RoundService) detail(round *domain.Round, participants []domain.ParticipantEntry, viewerID *uuid.UUID, now time.Time) *RoundDetail {
	if participants == nil {
		participants = []domain.ParticipantEntry{}
	}
	slices.SortStableFunc(participants, func(a, b domain.ParticipantEntry) int {
		return cmp.Compare(b.Score, a.Score)
	})

	d := &RoundDetail{
		Round:         *round,
		Participants:  participants,
		TimeRemaining: round.TimeRemaining(now),
	}

	if round.Status == domain.RoundFinished && len(participants) > 0 && participants[0].Score > 0 {
		winner := participants[0]
		d.Winner = &winner
	}

	if viewerID != nil {
		for _, p := range participants {
			if p.UserID == *viewerID {
				score, taps := p.Score, p.Taps
				d.MyScore = &score
				d.MyTaps = &taps
				break
			}
		}
	}
	return d
}

// ProcessTap records one tap by userID in roundID inside a serializable
// transaction. It never retries; a conflicting commit surfaces as a tap
// processing error for the caller to retry.
func (s *RoundService) ProcessTap(ctx context.Context, roundID, userID uuid.UUID) (*domain.TapResult, error) {
	var result domain.TapResult

	err := s.repo.InTapTx(ctx, func(ctx context.Context, tx ports.TapTx) error {
		round, err := tx.GetRound(ctx, roundID)
		if err != nil {
			return err
		}

		if status := domain.StatusAt(round.StartAt, round.EndAt, s.now()); status != domain.RoundActive {
			s.log.Warn("tap on non-active round",
				"round_id", roundID,
				"user_id", userID,
				"status", status,
			)
			return domain.NewRoundNotActiveError(roundID, status)
		}

		// Second clock read guards against skew between the status check and the write.
		if now := s.now(); now.Before(round.StartAt) || now.After(round.EndAt) {
			return domain.NewRoundTimeInvalidError("round is not within active time boundaries")
		}

		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}

		participant, err := tx.UpsertParticipant(ctx, roundID, userID)
		if err != nil {
			return err
		}

		policy := domain.PolicyFor(user.Role)
		participant.Taps++
		points, bonus := policy.Award(participant.Taps)
		participant.Score += points

		if err := tx.UpdateParticipant(ctx, participant); err != nil {
			return err
		}

		total := round.TotalScore
		if policy.CountsTowardTotal {
			if total, err = tx.AddRoundScore(ctx, roundID, points); err != nil {
				return err
			}
		}

		result = domain.TapResult{
			Score:           participant.Score,
			Taps:            participant.Taps,
			PointsEarned:    points,
			IsEleventhTap:   bonus,
			RoundTotalScore: total,
		}

		s.log.Debug("tap processed",
			"user", user.Username,
			"round_id", roundID,
			"taps", participant.Taps,
			"score", participant.Score,
			"points", points,
			"role", user.Role,
		)
		return nil
	})
	if err != nil {
		if domain.IsNotFound(err) || domain.IsInvalidState(err) {
			return nil, err
		}
		s.log.Error("tap processing failed", "round_id", roundID, "user_id", userID, "error", err)
		return nil, domain.NewTapProcessingError(err)
	}

	return &result, nil
}

// UpdateRoundStatuses reconciles every round not yet finished. It is idempotent.
func (s *RoundService) UpdateRoundStatuses(ctx context.Context) error {
	rounds, err := s.repo.ListRounds(ctx, domain.RoundCooldown, domain.RoundActive)
	if err != nil {
		return err
	}
	changed, err := s.reconcile(ctx, rounds, s.now())
	if changed > 0 {
		s.log.Info("round statuses refreshed", "changed", changed, "checked", len(rounds))
	}
	return err
}

// reconcile rederives each round's status at now and persists drift.
// It updates rounds in place and keeps going past individual failures,
// returning the first one.
func (s *RoundService) reconcile(ctx context.Context, rounds []domain.Round, now time.Time) (int, error) {
	var (
		changed  int
		firstErr error
	)
	for i := range rounds {
		prev := rounds[i].Status
		if !rounds[i].Reconcile(now) {
			continue
		}
		ok, err := s.repo.UpdateRoundStatus(ctx, rounds[i].ID, prev, rounds[i].Status)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			changed++
			s.log.Info("round status updated",
				"round_id", rounds[i].ID,
				"from", prev,
				"to", rounds[i].Status,
			)
		}
	}
	return changed, firstErr
}
