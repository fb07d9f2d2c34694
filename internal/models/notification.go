package models

import (
	"time"

	"github.com/google/uuid"
)

// Escalation levels in increasing urgency.
const (
	LevelLight   = "light"
	LevelStrong  = "strong"
	LevelOverdue = "overdue"
)

// NotificationMessage is the payload pushed over the live channel when a
// reminder fires. Delivery is best effort; clients re-derive session state
// from the API rather than trusting the message alone.
type NotificationMessage struct {
	ID        uuid.UUID `json:"id"`
	Level     string    `json:"level"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	SessionID uuid.UUID `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// WebSocket envelope.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// RecoveryJob is enqueued when a session is marked unresponsive; the worker
// pool picks it up and produces an overdue-recovery reschedule suggestion.
type RecoveryJob struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	SessionID  uuid.UUID `json:"session_id"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// API error response.
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
