package models

import (
	"time"

	"github.com/google/uuid"
)

// Task is read-only display context here; task CRUD lives in another service.
type Task struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	GoalID        *uuid.UUID `json:"goal_id,omitempty"`
	Title         string     `json:"title"`
	EstimateHours *float64   `json:"estimate_hours,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
}
