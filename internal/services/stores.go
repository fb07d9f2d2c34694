package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"focustrack-backend/internal/models"
)

// Persistence consumed by the services, satisfied by internal/repository and
// by in-memory fakes in tests. CAS methods return
// repository.ErrVersionConflict on a lost race.

type SessionStore interface {
	Insert(ctx context.Context, s *models.WorkSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.WorkSession, error)
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.WorkSession, error)
	GetUnresponsiveByUser(ctx context.Context, userID uuid.UUID) (*models.WorkSession, error)
	UpdateCAS(ctx context.Context, s *models.WorkSession) error
}

type TaskStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type SuggestionStore interface {
	Insert(ctx context.Context, sg *models.RescheduleSuggestion) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RescheduleSuggestion, error)
	ListPendingByUser(ctx context.Context, userID uuid.UUID) ([]*models.RescheduleSuggestion, error)
	DecideCAS(ctx context.Context, sg *models.RescheduleSuggestion, status string, decidedAt time.Time) error
	ExpireSweep(ctx context.Context, now time.Time) (int64, error)
	InsertDecision(ctx context.Context, d *models.RescheduleDecision) error
}

type ScheduleStore interface {
	GetForDate(ctx context.Context, userID uuid.UUID, date string) (*models.DailySchedule, error)
	PutForDate(ctx context.Context, userID uuid.UUID, date string, assignments []models.ScheduleAssignment) error
}

// RecoveryEnqueuer hands an overdue-recovery job to the worker queue.
type RecoveryEnqueuer interface {
	EnqueueRecovery(ctx context.Context, job models.RecoveryJob) error
}
