package models

import (
	"time"

	"github.com/google/uuid"
)

// Diff change types.
const (
	ChangePushed    = "pushed"
	ChangeAdded     = "added"
	ChangeRemoved   = "removed"
	ChangeReordered = "reordered"
)

// Suggestion statuses. Transitions are pending → accepted | rejected | expired only.
const (
	SuggestionPending  = "pending"
	SuggestionAccepted = "accepted"
	SuggestionRejected = "rejected"
	SuggestionExpired  = "expired"
)

// Suggestion triggers.
const (
	TriggerCheckout        = "checkout"
	TriggerOverdueRecovery = "overdue_recovery"
)

// ScheduleAssignment is one task's slot in a daily schedule.
type ScheduleAssignment struct {
	TaskID    uuid.UUID `json:"task_id"`
	TaskTitle string    `json:"task_title"`
	SlotIndex int       `json:"slot_index"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
}

// ScheduleDiffItem is one task's classified change between two schedules.
type ScheduleDiffItem struct {
	TaskID            uuid.UUID `json:"task_id"`
	TaskTitle         string    `json:"task_title"`
	ChangeType        string    `json:"change_type"`
	OriginalSlotIndex *int      `json:"original_slot_index"`
	NewSlotIndex      *int      `json:"new_slot_index"`
	Reason            string    `json:"reason"`
}

// ScheduleDiff aggregates the classified changes between an original and a
// proposed schedule.
type ScheduleDiff struct {
	Pushed                []ScheduleDiffItem `json:"pushed"`
	Added                 []ScheduleDiffItem `json:"added"`
	Removed               []ScheduleDiffItem `json:"removed"`
	Reordered             []ScheduleDiffItem `json:"reordered"`
	TotalChanges          int                `json:"total_changes"`
	HasSignificantChanges bool               `json:"has_significant_changes"`
}

// RescheduleSuggestion is a proposed adjustment to the day's plan, keyed to the
// session whose checkout (or overdue recovery) produced it. Once decided, the
// schedules and diff are immutable.
type RescheduleSuggestion struct {
	ID               uuid.UUID            `json:"id"`
	UserID           uuid.UUID            `json:"user_id"`
	WorkSessionID    uuid.UUID            `json:"work_session_id"`
	TriggerType      string               `json:"trigger_type"`
	TriggerDecision  *string              `json:"trigger_decision,omitempty"`
	OriginalSchedule []ScheduleAssignment `json:"original_schedule"`
	ProposedSchedule []ScheduleAssignment `json:"proposed_schedule"`
	Diff             ScheduleDiff         `json:"diff"`
	Status           string               `json:"status"`
	CreatedAt        time.Time            `json:"created_at"`
	DecidedAt        *time.Time           `json:"decided_at,omitempty"`
	ExpiresAt        *time.Time           `json:"expires_at,omitempty"`
	Version          int                  `json:"version"`
}

// RescheduleDecision is the audit record written when a suggestion is decided.
type RescheduleDecision struct {
	ID           uuid.UUID `json:"id"`
	SuggestionID uuid.UUID `json:"suggestion_id"`
	UserID       uuid.UUID `json:"user_id"`
	Accepted     bool      `json:"accepted"`
	Reason       *string   `json:"reason,omitempty"`
	DecidedAt    time.Time `json:"decided_at"`
}

// DailySchedule is the plan in force for one user on one date.
type DailySchedule struct {
	UserID      uuid.UUID            `json:"user_id"`
	Date        string               `json:"date"` // YYYY-MM-DD
	Assignments []ScheduleAssignment `json:"assignments"`
	Version     int                  `json:"version"`
	UpdatedAt   time.Time            `json:"updated_at"`
}
