package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"focustrack-backend/internal/models"
)

// OptimizeRequest is what the external planning optimizer needs to produce a
// new assignment list for the rest of the day.
type OptimizeRequest struct {
	UserID                 uuid.UUID                   `json:"user_id"`
	Date                   string                      `json:"date"`
	TriggerSessionID       uuid.UUID                   `json:"trigger_session_id"`
	TaskID                 uuid.UUID                   `json:"task_id"`
	Decision               *string                     `json:"decision,omitempty"`
	RemainingEstimateHours *float64                    `json:"remaining_estimate_hours,omitempty"`
	NextTaskID             *uuid.UUID                  `json:"next_task_id,omitempty"`
	CurrentSchedule        []models.ScheduleAssignment `json:"current_schedule"`
}

// ScheduleOptimizer is the external collaborator that replans the day. It is
// invoked only when a checkout (or overdue recovery) can impact the schedule.
type ScheduleOptimizer interface {
	Propose(ctx context.Context, req OptimizeRequest) ([]models.ScheduleAssignment, error)
}

// HTTPOptimizer calls the optimizer service over HTTP with a bounded timeout.
// Failures are recoverable: callers degrade to no suggestion rather than
// failing the checkout.
type HTTPOptimizer struct {
	baseURL string
	client  *http.Client
}

func NewHTTPOptimizer(baseURL string) *HTTPOptimizer {
	return &HTTPOptimizer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (o *HTTPOptimizer) Propose(ctx context.Context, req OptimizeRequest) ([]models.ScheduleAssignment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/optimize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("optimizer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("optimizer returned status %d", resp.StatusCode)
	}

	var out struct {
		Assignments []models.ScheduleAssignment `json:"assignments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode optimizer response: %w", err)
	}
	return out.Assignments, nil
}
