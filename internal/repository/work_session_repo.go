package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"focustrack-backend/internal/models"
)

const workSessionColumns = `
	id, user_id, task_id, started_at, planned_checkout_at, paused_at,
	paused_total_seconds, ended_at, checkout_type, decision, continue_reason,
	kpt_keep, kpt_problem, kpt_try, remaining_estimate_hours, planned_outcome,
	actual_minutes, snooze_count, last_snooze_at, notification_5min_sent,
	notification_checkout_sent, marked_unresponsive_at, version, created_at`

type WorkSessionRepo struct {
	pool *pgxpool.Pool
}

func NewWorkSessionRepo(pool *pgxpool.Pool) *WorkSessionRepo {
	return &WorkSessionRepo{pool: pool}
}

// Insert persists a new session. The partial unique index on
// (user_id) WHERE ended_at IS NULL backs the single-active-session invariant;
// a violation surfaces as ErrActiveSessionExists.
func (r *WorkSessionRepo) Insert(ctx context.Context, s *models.WorkSession) error {
	query := `
		INSERT INTO work_sessions (
			user_id, task_id, started_at, planned_checkout_at, planned_outcome
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, version, created_at
	`
	err := r.pool.QueryRow(ctx, query,
		s.UserID, s.TaskID, s.StartedAt, s.PlannedCheckoutAt, s.PlannedOutcome,
	).Scan(&s.ID, &s.Version, &s.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrActiveSessionExists
		}
		return err
	}
	return nil
}

func (r *WorkSessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.WorkSession, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+workSessionColumns+` FROM work_sessions WHERE id = $1`, id)
	return scanWorkSession(row)
}

// GetActiveByUser returns the user's open session, or (nil, nil) when idle.
func (r *WorkSessionRepo) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.WorkSession, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+workSessionColumns+` FROM work_sessions WHERE user_id = $1 AND ended_at IS NULL`, userID)
	s, err := scanWorkSession(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return s, err
}

// GetUnresponsiveByUser returns the user's open session if it has been flagged
// unresponsive, or (nil, nil).
func (r *WorkSessionRepo) GetUnresponsiveByUser(ctx context.Context, userID uuid.UUID) (*models.WorkSession, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+workSessionColumns+`
		FROM work_sessions
		WHERE user_id = $1 AND ended_at IS NULL AND marked_unresponsive_at IS NOT NULL`, userID)
	s, err := scanWorkSession(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return s, err
}

// UpdateCAS writes every mutable field of s, guarded by s.Version. On success
// s.Version is bumped in place. A lost race returns ErrVersionConflict.
func (r *WorkSessionRepo) UpdateCAS(ctx context.Context, s *models.WorkSession) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE work_sessions SET
			planned_checkout_at = $3,
			paused_at = $4,
			paused_total_seconds = $5,
			ended_at = $6,
			checkout_type = $7,
			decision = $8,
			continue_reason = $9,
			kpt_keep = $10,
			kpt_problem = $11,
			kpt_try = $12,
			remaining_estimate_hours = $13,
			actual_minutes = $14,
			snooze_count = $15,
			last_snooze_at = $16,
			notification_5min_sent = $17,
			notification_checkout_sent = $18,
			marked_unresponsive_at = $19,
			version = version + 1
		WHERE id = $1 AND version = $2
	`,
		s.ID, s.Version,
		s.PlannedCheckoutAt, s.PausedAt, s.PausedTotalSeconds, s.EndedAt,
		s.CheckoutType, s.Decision, s.ContinueReason,
		s.KptKeep, s.KptProblem, s.KptTry,
		s.RemainingEstimateHours, s.ActualMinutes,
		s.SnoozeCount, s.LastSnoozeAt,
		s.Notification5minSent, s.NotificationCheckoutSent,
		s.MarkedUnresponsiveAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	s.Version++
	return nil
}

// ListEndedByUser returns finalized sessions, newest first, for history views.
func (r *WorkSessionRepo) ListEndedByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.WorkSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+workSessionColumns+`
		FROM work_sessions
		WHERE user_id = $1 AND ended_at IS NOT NULL
		ORDER BY ended_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.WorkSession
	for rows.Next() {
		s, err := scanWorkSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func scanWorkSession(row pgx.Row) (*models.WorkSession, error) {
	var s models.WorkSession
	err := row.Scan(
		&s.ID, &s.UserID, &s.TaskID, &s.StartedAt, &s.PlannedCheckoutAt, &s.PausedAt,
		&s.PausedTotalSeconds, &s.EndedAt, &s.CheckoutType, &s.Decision, &s.ContinueReason,
		&s.KptKeep, &s.KptProblem, &s.KptTry, &s.RemainingEstimateHours, &s.PlannedOutcome,
		&s.ActualMinutes, &s.SnoozeCount, &s.LastSnoozeAt, &s.Notification5minSent,
		&s.NotificationCheckoutSent, &s.MarkedUnresponsiveAt, &s.Version, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
