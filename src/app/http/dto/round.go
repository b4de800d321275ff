package dto

import (
	"time"

	"github.com/google/uuid"

	"tapround/src/core/domain"
	"tapround/src/core/usecase"
)

// CreateRoundRequest is the payload for POST /api/rounds. All fields are optional.
type CreateRoundRequest struct {
	StartAt   *time.Time `json:"startAt"`
	EndAt     *time.Time `json:"endAt"`
	BossImage *string    `json:"bossImage" binding:"omitempty,max=2048"`
}

func (r *CreateRoundRequest) ToInput() usecase.CreateRoundInput {
	return usecase.CreateRoundInput{
		StartAt:   r.StartAt,
		EndAt:     r.EndAt,
		BossImage: r.BossImage,
	}
}

// RoundResponse is a round as listed.
type RoundResponse struct {
	ID            uuid.UUID          `json:"id"`
	StartAt       time.Time          `json:"startAt"`
	EndAt         time.Time          `json:"endAt"`
	Status        domain.RoundStatus `json:"status"`
	TotalScore    int64              `json:"totalScore"`
	BossImage     *string            `json:"bossImage"`
	CreatedAt     time.Time          `json:"createdAt"`
	TimeRemaining int64              `json:"timeRemaining"`
}

func NewRoundResponse(r domain.Round, timeRemaining int64) RoundResponse {
	return RoundResponse{
		ID:            r.ID,
		StartAt:       r.StartAt,
		EndAt:         r.EndAt,
		Status:        r.Status,
		TotalScore:    r.TotalScore,
		BossImage:     r.BossImage,
		CreatedAt:     r.CreatedAt,
		TimeRemaining: timeRemaining,
	}
}

func NewRoundList(items []usecase.RoundListItem) []RoundResponse {
	out := make([]RoundResponse, len(items))
	for i, it := range items {
		out[i] = NewRoundResponse(it.Round, it.TimeRemaining)
	}
	return out
}

// ParticipantResponse is one leaderboard row.
type ParticipantResponse struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	Taps     int64     `json:"taps"`
	Score    int64     `json:"score"`
}

func newParticipant(p domain.ParticipantEntry) ParticipantResponse {
	return ParticipantResponse{
		UserID:   p.UserID,
		Username: p.Username,
		Taps:     p.Taps,
		Score:    p.Score,
	}
}

// RoundDetailsResponse is a round with its leaderboard and the caller's standing.
type RoundDetailsResponse struct {
	RoundResponse
	Participants []ParticipantResponse `json:"participants"`
	Winner       *ParticipantResponse  `json:"winner"`
	MyScore      *int64                `json:"myScore"`
	MyTaps       *int64                `json:"myTaps"`
}

func NewRoundDetailsResponse(d *usecase.RoundDetail) RoundDetailsResponse {
	resp := RoundDetailsResponse{
		RoundResponse: NewRoundResponse(d.Round, d.TimeRemaining),
		Participants:  make([]ParticipantResponse, len(d.Participants)),
		MyScore:       d.MyScore,
		MyTaps:        d.MyTaps,
	}
	for i, p := range d.Participants {
		resp.Participants[i] = newParticipant(p)
	}
	if d.Winner != nil {
		w := newParticipant(*d.Winner)
		resp.Winner = &w
	}
	return resp
}

// TapResponse is returned for every committed tap.
type TapResponse struct {
	Score           int64 `json:"score"`
	Taps            int64 `json:"taps"`
	PointsEarned    int64 `json:"pointsEarned"`
	IsEleventhTap   bool  `json:"isEleventhTap"`
	RoundTotalScore int64 `json:"roundTotalScore"`
}

func NewTapResponse(r *domain.TapResult) TapResponse {
	return TapResponse{
		Score:           r.Score,
		Taps:            r.Taps,
		PointsEarned:    r.PointsEarned,
		IsEleventhTap:   r.IsEleventhTap,
		RoundTotalScore: r.RoundTotalScore,
	}
}

// LeaderResponse reports this instance's election state.
type LeaderResponse struct {
	InstanceID string `json:"instance_id"`
	IsLeader   bool   `json:"is_leader"`
	// LeaderID is the current lease holder, empty when vacant or unknown.
	LeaderID string `json:"leader_id"`
}
