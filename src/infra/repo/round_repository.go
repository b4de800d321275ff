package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tapround/src/core/domain"
	"tapround/src/core/ports"
	"tapround/src/infra/db"
)

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// RoundRepository implements ports.RoundRepository using pgx.
type RoundRepository struct {
	pg     *db.Postgres
	pool   *pgxpool.Pool
	tapOpt db.TxOptions
	log    *slog.Logger
}

var _ ports.RoundRepository = (*RoundRepository)(nil)

// NewRoundRepository constructs a repository backed by Postgres.
// tapOpts bounds every tap transaction; its isolation level is forced to serializable.
func NewRoundRepository(pg *db.Postgres, tapOpts db.TxOptions, log *slog.Logger) *RoundRepository {
	tapOpts.IsoLevel = pgx.Serializable
	return &RoundRepository{
		pg:     pg,
		pool:   pg.Pool,
		tapOpt: tapOpts,
		log:    log,
	}
}

func (r *RoundRepository) Health(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// isSerializationFailure reports conflicts the database resolved by aborting
// this transaction: serialization failure, deadlock, lock or statement timeout.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "57014":
			return true
		}
	}
	return false
}

const roundColumns = `id, start_at, end_at, status, total_score, boss_image, created_at`

func scanRound(row pgx.Row) (*domain.Round, error) {
	var rd domain.Round
	if err := row.Scan(&rd.ID, &rd.StartAt, &rd.EndAt, &rd.Status, &rd.TotalScore, &rd.BossImage, &rd.CreatedAt); err != nil {
		return nil, err
	}
	return &rd, nil
}

// Rounds

func (r *RoundRepository) CreateRound(ctx context.Context, round *domain.Round) (*domain.Round, error) {
	const q = `
		INSERT INTO rounds (id, start_at, end_at, status, total_score, boss_image)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + roundColumns

	id := round.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	created, err := scanRound(r.pool.QueryRow(ctx, q,
		id, round.StartAt, round.EndAt, round.Status, round.TotalScore, round.BossImage,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.NewConflictError("round already exists")
		}
		return nil, fmt.Errorf("insert round: %w", err)
	}
	return created, nil
}

func (r *RoundRepository) GetRound(ctx context.Context, roundID uuid.UUID) (*domain.Round, error) {
	return getRound(ctx, r.pool, roundID, false)
}

func getRound(ctx context.Context, q querier, roundID uuid.UUID, forUpdate bool) (*domain.Round, error) {
	sql := `SELECT ` + roundColumns + ` FROM rounds WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	rd, err := scanRound(q.QueryRow(ctx, sql, roundID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewRoundNotFoundError(roundID)
		}
		return nil, err
	}
	return rd, nil
}

func (r *RoundRepository) ListRounds(ctx context.Context, statuses ...domain.RoundStatus) ([]domain.Round, error) {
	q := `SELECT ` + roundColumns + ` FROM rounds`
	var args []any
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		q += ` WHERE status = ANY($1)`
		args = append(args, names)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Round
	for rows.Next() {
		rd, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rd)
	}
	return out, rows.Err()
}

func (r *RoundRepository) UpdateRoundStatus(ctx context.Context, roundID uuid.UUID, from, to domain.RoundStatus) (bool, error) {
	const q = `
		UPDATE rounds
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`
	tag, err := r.pool.Exec(ctx, q, roundID, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Participants

func (r *RoundRepository) ListParticipants(ctx context.Context, roundID uuid.UUID) ([]domain.ParticipantEntry, error) {
	const q = `
		SELECT p.id, p.round_id, p.user_id, p.taps, p.score, u.username
		FROM round_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.round_id = $1
		ORDER BY p.score DESC, p.taps DESC, p.id
	`
	rows, err := r.pool.Query(ctx, q, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ParticipantEntry
	for rows.Next() {
		var e domain.ParticipantEntry
		if err := rows.Scan(&e.ID, &e.RoundID, &e.UserID, &e.Taps, &e.Score, &e.Username); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Taps

func (r *RoundRepository) InTapTx(ctx context.Context, fn func(ctx context.Context, tx ports.TapTx) error) error {
	err := r.pg.InTx(ctx, r.tapOpt, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &tapTx{tx: tx})
	})
	if err != nil && isSerializationFailure(err) {
		r.log.Warn("tap transaction aborted by conflict", "error", err)
		return fmt.Errorf("tap transaction conflict: %w", err)
	}
	return err
}

// tapTx implements ports.TapTx over one open transaction.
type tapTx struct {
	tx pgx.Tx
}

func (t *tapTx) GetRound(ctx context.Context, roundID uuid.UUID) (*domain.Round, error) {
	return getRound(ctx, t.tx, roundID, true)
}

func (t *tapTx) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	const q = `SELECT id, username, role FROM users WHERE id = $1`
	var u domain.User
	if err := t.tx.QueryRow(ctx, q, userID).Scan(&u.ID, &u.Username, &u.Role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("user")
		}
		return nil, err
	}
	return &u, nil
}

func (t *tapTx) UpsertParticipant(ctx context.Context, roundID, userID uuid.UUID) (*domain.Participant, error) {
	// The no-op update makes RETURNING yield the existing row and takes its row lock.
	const q = `
		INSERT INTO round_participants (id, round_id, user_id, taps, score)
		VALUES ($1, $2, $3, 0, 0)
		ON CONFLICT (round_id, user_id) DO UPDATE SET updated_at = now()
		RETURNING id, round_id, user_id, taps, score
	`
	var p domain.Participant
	err := t.tx.QueryRow(ctx, q, uuid.New(), roundID, userID).
		Scan(&p.ID, &p.RoundID, &p.UserID, &p.Taps, &p.Score)
	if err != nil {
		return nil, fmt.Errorf("upsert participant: %w", err)
	}
	return &p, nil
}

func (t *tapTx) UpdateParticipant(ctx context.Context, p *domain.Participant) error {
	const q = `
		UPDATE round_participants
		SET taps = $2, score = $3, updated_at = now()
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, q, p.ID, p.Taps, p.Score)
	if err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update participant: %s not found", p.ID)
	}
	return nil
}

func (t *tapTx) AddRoundScore(ctx context.Context, roundID uuid.UUID, delta int64) (int64, error) {
	const q = `
		UPDATE rounds
		SET total_score = total_score + $2, updated_at = now()
		WHERE id = $1
		RETURNING total_score
	`
	var total int64
	if err := t.tx.QueryRow(ctx, q, roundID, delta).Scan(&total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.NewRoundNotFoundError(roundID)
		}
		return 0, fmt.Errorf("add round score: %w", err)
	}
	return total, nil
}
