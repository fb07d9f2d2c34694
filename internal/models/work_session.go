package models

import (
	"time"

	"github.com/google/uuid"
)

// Checkout types recorded when a session ends.
const (
	CheckoutManual      = "manual"
	CheckoutScheduled   = "scheduled"
	CheckoutOverdue     = "overdue"
	CheckoutInterrupted = "interrupted"
)

// Checkout decisions.
const (
	DecisionContinue = "continue"
	DecisionSwitch   = "switch"
	DecisionBreak    = "break"
	DecisionComplete = "complete"
)

// Continue reasons (required when decision is "continue").
const (
	ContinueReasonUnderestimated = "underestimated"
	ContinueReasonInterrupted    = "interrupted"
	ContinueReasonScopeGrew      = "scope_grew"
	ContinueReasonBlocked        = "blocked"
	ContinueReasonInTheZone      = "in_the_zone"
)

// ValidContinueReasons is the accepted set for the continue_reason field.
var ValidContinueReasons = map[string]bool{
	ContinueReasonUnderestimated: true,
	ContinueReasonInterrupted:    true,
	ContinueReasonScopeGrew:      true,
	ContinueReasonBlocked:        true,
	ContinueReasonInTheZone:      true,
}

// WorkSession is one user's occupancy of a task for a bounded interval.
// Rows are append-only: a session is finalized by setting ended_at, never deleted.
// At most one session per user may have ended_at IS NULL (enforced by a partial
// unique index and re-checked in the service layer).
type WorkSession struct {
	ID                       uuid.UUID  `json:"id"`
	UserID                   uuid.UUID  `json:"user_id"`
	TaskID                   uuid.UUID  `json:"task_id"`
	StartedAt                time.Time  `json:"started_at"`
	PlannedCheckoutAt        time.Time  `json:"planned_checkout_at"`
	PausedAt                 *time.Time `json:"paused_at,omitempty"`
	PausedTotalSeconds       int        `json:"paused_total_seconds"`
	EndedAt                  *time.Time `json:"ended_at,omitempty"`
	CheckoutType             *string    `json:"checkout_type,omitempty"`
	Decision                 *string    `json:"decision,omitempty"`
	ContinueReason           *string    `json:"continue_reason,omitempty"`
	KptKeep                  *string    `json:"kpt_keep,omitempty"`
	KptProblem               *string    `json:"kpt_problem,omitempty"`
	KptTry                   *string    `json:"kpt_try,omitempty"`
	RemainingEstimateHours   *float64   `json:"remaining_estimate_hours,omitempty"`
	PlannedOutcome           *string    `json:"planned_outcome,omitempty"`
	ActualMinutes            *int       `json:"actual_minutes,omitempty"`
	SnoozeCount              int        `json:"snooze_count"`
	LastSnoozeAt             *time.Time `json:"last_snooze_at,omitempty"`
	Notification5minSent     bool       `json:"notification_5min_sent"`
	NotificationCheckoutSent bool       `json:"notification_checkout_sent"`
	MarkedUnresponsiveAt     *time.Time `json:"marked_unresponsive_at,omitempty"`
	Version                  int        `json:"version"`
	CreatedAt                time.Time  `json:"created_at"`
}

func (s *WorkSession) IsPaused() bool {
	return s.EndedAt == nil && s.PausedAt != nil
}

func (s *WorkSession) IsEnded() bool {
	return s.EndedAt != nil
}
