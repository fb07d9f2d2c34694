package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"focustrack-backend/internal/models"
)

type ScheduleRepo struct {
	pool *pgxpool.Pool
}

func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

// GetForDate returns the plan in force for the user on the given YYYY-MM-DD
// date, or (nil, nil) when no plan exists yet.
func (r *ScheduleRepo) GetForDate(ctx context.Context, userID uuid.UUID, date string) (*models.DailySchedule, error) {
	var ds models.DailySchedule
	var assignments []byte
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, schedule_date, assignments, version, updated_at
		FROM daily_schedules
		WHERE user_id = $1 AND schedule_date = $2
	`, userID, date).Scan(&ds.UserID, &ds.Date, &assignments, &ds.Version, &ds.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(assignments, &ds.Assignments); err != nil {
		return nil, err
	}
	return &ds, nil
}

// PutForDate upserts the live plan for a date. Accepting a suggestion commits
// the proposed schedule through this path.
func (r *ScheduleRepo) PutForDate(ctx context.Context, userID uuid.UUID, date string, assignments []models.ScheduleAssignment) error {
	data, err := json.Marshal(assignments)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO daily_schedules (user_id, schedule_date, assignments)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, schedule_date)
		DO UPDATE SET assignments = EXCLUDED.assignments,
			version = daily_schedules.version + 1,
			updated_at = NOW()
	`, userID, date, data)
	return err
}
