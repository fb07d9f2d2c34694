package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"focustrack-backend/internal/models"
)

const suggestionColumns = `
	id, user_id, work_session_id, trigger_type, trigger_decision,
	original_schedule, proposed_schedule, diff, status, created_at,
	decided_at, expires_at, version`

type SuggestionRepo struct {
	pool *pgxpool.Pool
}

func NewSuggestionRepo(pool *pgxpool.Pool) *SuggestionRepo {
	return &SuggestionRepo{pool: pool}
}

func (r *SuggestionRepo) Insert(ctx context.Context, sg *models.RescheduleSuggestion) error {
	original, err := json.Marshal(sg.OriginalSchedule)
	if err != nil {
		return err
	}
	proposed, err := json.Marshal(sg.ProposedSchedule)
	if err != nil {
		return err
	}
	diff, err := json.Marshal(sg.Diff)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO reschedule_suggestions (
			user_id, work_session_id, trigger_type, trigger_decision,
			original_schedule, proposed_schedule, diff, status, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8)
		RETURNING id, status, created_at, version
	`
	return r.pool.QueryRow(ctx, query,
		sg.UserID, sg.WorkSessionID, sg.TriggerType, sg.TriggerDecision,
		original, proposed, diff, sg.ExpiresAt,
	).Scan(&sg.ID, &sg.Status, &sg.CreatedAt, &sg.Version)
}

func (r *SuggestionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.RescheduleSuggestion, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+suggestionColumns+` FROM reschedule_suggestions WHERE id = $1`, id)
	return scanSuggestion(row)
}

func (r *SuggestionRepo) ListPendingByUser(ctx context.Context, userID uuid.UUID) ([]*models.RescheduleSuggestion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+suggestionColumns+`
		FROM reschedule_suggestions
		WHERE user_id = $1 AND status = 'pending'
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.RescheduleSuggestion
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

// DecideCAS moves a pending suggestion to a terminal status, guarded by
// version. The status guard in the WHERE clause makes a double decision lose
// the race even across service instances.
func (r *SuggestionRepo) DecideCAS(ctx context.Context, sg *models.RescheduleSuggestion, status string, decidedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reschedule_suggestions
		SET status = $3, decided_at = $4, version = version + 1
		WHERE id = $1 AND version = $2 AND status = 'pending'
	`, sg.ID, sg.Version, status, decidedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	sg.Status = status
	sg.DecidedAt = &decidedAt
	sg.Version++
	return nil
}

// ExpireSweep flips every pending suggestion past its expiry to expired and
// reports how many rows changed.
func (r *SuggestionRepo) ExpireSweep(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reschedule_suggestions
		SET status = 'expired', version = version + 1
		WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *SuggestionRepo) InsertDecision(ctx context.Context, d *models.RescheduleDecision) error {
	query := `
		INSERT INTO reschedule_decisions (suggestion_id, user_id, accepted, reason, decided_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	return r.pool.QueryRow(ctx, query,
		d.SuggestionID, d.UserID, d.Accepted, d.Reason, d.DecidedAt,
	).Scan(&d.ID)
}

func scanSuggestion(row pgx.Row) (*models.RescheduleSuggestion, error) {
	var sg models.RescheduleSuggestion
	var original, proposed, diff []byte
	err := row.Scan(
		&sg.ID, &sg.UserID, &sg.WorkSessionID, &sg.TriggerType, &sg.TriggerDecision,
		&original, &proposed, &diff, &sg.Status, &sg.CreatedAt,
		&sg.DecidedAt, &sg.ExpiresAt, &sg.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(original, &sg.OriginalSchedule); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(proposed, &sg.ProposedSchedule); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(diff, &sg.Diff); err != nil {
		return nil, err
	}
	return &sg, nil
}
