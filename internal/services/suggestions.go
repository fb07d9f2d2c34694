package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"focustrack-backend/internal/clock"
	"focustrack-backend/internal/models"
	"focustrack-backend/internal/repository"
)

// RescheduleService creates reschedule suggestions by invoking the external
// optimizer and diffing its proposal against the plan in force, and owns the
// accept/reject/expire lifecycle of the result.
type RescheduleService struct {
	suggestions SuggestionStore
	schedules   ScheduleStore
	optimizer   ScheduleOptimizer
	push        Publisher
	clk         clock.Clock
	diffCfg     DiffConfig
}

func NewRescheduleService(
	suggestions SuggestionStore,
	schedules ScheduleStore,
	optimizer ScheduleOptimizer,
	push Publisher,
	clk clock.Clock,
	diffCfg DiffConfig,
) *RescheduleService {
	return &RescheduleService{
		suggestions: suggestions,
		schedules:   schedules,
		optimizer:   optimizer,
		push:        push,
		clk:         clk,
		diffCfg:     diffCfg,
	}
}

// CreateForSession asks the optimizer for a new plan and records a pending
// suggestion when it differs from the plan in force. Returns (nil, nil) when
// the proposal is identical — no suggestion is created for a no-op replan.
func (r *RescheduleService) CreateForSession(ctx context.Context, s *models.WorkSession, triggerType string, nextTaskID *uuid.UUID) (*models.RescheduleSuggestion, error) {
	now := r.clk.Now()
	date := now.Format("2006-01-02")

	var original []models.ScheduleAssignment
	if live, err := r.schedules.GetForDate(ctx, s.UserID, date); err != nil {
		return nil, fmt.Errorf("failed to load schedule for %s: %w", date, err)
	} else if live != nil {
		original = live.Assignments
	}

	proposed, err := r.optimizer.Propose(ctx, OptimizeRequest{
		UserID:                 s.UserID,
		Date:                   date,
		TriggerSessionID:       s.ID,
		TaskID:                 s.TaskID,
		Decision:               s.Decision,
		RemainingEstimateHours: s.RemainingEstimateHours,
		NextTaskID:             nextTaskID,
		CurrentSchedule:        original,
	})
	if err != nil {
		return nil, err
	}

	diff := BuildScheduleDiff(original, proposed, r.diffCfg)
	if diff.TotalChanges == 0 {
		return nil, nil
	}

	// Unresolved suggestions lapse at end of day.
	expiresAt := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())

	suggestion := &models.RescheduleSuggestion{
		UserID:           s.UserID,
		WorkSessionID:    s.ID,
		TriggerType:      triggerType,
		TriggerDecision:  s.Decision,
		OriginalSchedule: original,
		ProposedSchedule: proposed,
		Diff:             diff,
		ExpiresAt:        &expiresAt,
	}
	if err := r.suggestions.Insert(ctx, suggestion); err != nil {
		return nil, err
	}

	r.notify(ctx, suggestion)
	log.Printf("reschedule suggestion %s created for user %s (%d changes)", suggestion.ID, s.UserID, diff.TotalChanges)
	return suggestion, nil
}

func (r *RescheduleService) ListPending(ctx context.Context, userID uuid.UUID) ([]*models.RescheduleSuggestion, error) {
	return r.suggestions.ListPendingByUser(ctx, userID)
}

// Accept commits the proposed schedule as the live plan for the suggestion's
// date and writes an accepted decision record.
func (r *RescheduleService) Accept(ctx context.Context, userID, id uuid.UUID, reason *string) (*models.RescheduleSuggestion, error) {
	suggestion, err := r.decidable(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	now := r.clk.Now()
	if err := r.suggestions.DecideCAS(ctx, suggestion, models.SuggestionAccepted, now); err != nil {
		return nil, r.decideErr(err)
	}

	date := suggestion.CreatedAt.Format("2006-01-02")
	if err := r.schedules.PutForDate(ctx, userID, date, suggestion.ProposedSchedule); err != nil {
		return nil, fmt.Errorf("failed to commit proposed schedule: %w", err)
	}

	if err := r.recordDecision(ctx, suggestion, true, reason, now); err != nil {
		return nil, err
	}
	return suggestion, nil
}

// Reject keeps the original plan and writes a rejected decision record.
func (r *RescheduleService) Reject(ctx context.Context, userID, id uuid.UUID, reason *string) (*models.RescheduleSuggestion, error) {
	suggestion, err := r.decidable(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	now := r.clk.Now()
	if err := r.suggestions.DecideCAS(ctx, suggestion, models.SuggestionRejected, now); err != nil {
		return nil, r.decideErr(err)
	}

	if err := r.recordDecision(ctx, suggestion, false, reason, now); err != nil {
		return nil, err
	}
	return suggestion, nil
}

// decidable loads a suggestion and verifies it can still be decided.
func (r *RescheduleService) decidable(ctx context.Context, userID, id uuid.UUID) (*models.RescheduleSuggestion, error) {
	suggestion, err := r.suggestions.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Suggestion not found"}
	}
	if err != nil {
		return nil, err
	}
	if suggestion.UserID != userID {
		return nil, &NotFoundError{Message: "Suggestion not found"}
	}
	if suggestion.Status != models.SuggestionPending {
		return nil, &InvalidStateError{Message: "Suggestion has already been decided"}
	}
	if suggestion.ExpiresAt != nil && r.clk.Now().After(*suggestion.ExpiresAt) {
		// The sweep may simply not have run yet; the decide-time check is
		// authoritative either way.
		if err := r.suggestions.DecideCAS(ctx, suggestion, models.SuggestionExpired, r.clk.Now()); err != nil {
			log.Printf("suggestion %s: lazy expire failed: %v", id, err)
		}
		return nil, &InvalidStateError{Message: "Suggestion has expired"}
	}
	return suggestion, nil
}

func (r *RescheduleService) decideErr(err error) error {
	if errors.Is(err, repository.ErrVersionConflict) {
		return &ConflictError{Message: "Suggestion was decided concurrently; re-fetch and retry"}
	}
	return err
}

func (r *RescheduleService) recordDecision(ctx context.Context, sg *models.RescheduleSuggestion, accepted bool, reason *string, at time.Time) error {
	return r.suggestions.InsertDecision(ctx, &models.RescheduleDecision{
		SuggestionID: sg.ID,
		UserID:       sg.UserID,
		Accepted:     accepted,
		Reason:       reason,
		DecidedAt:    at,
	})
}

func (r *RescheduleService) notify(ctx context.Context, sg *models.RescheduleSuggestion) {
	if r.push == nil {
		return
	}
	msg := models.WSMessage{Type: "reschedule_suggestion", Payload: sg}
	if err := r.push.Publish(ctx, sg.UserID, msg); err != nil {
		log.Printf("reschedule: push delivery failed for user %s: %v", sg.UserID, err)
	}
}
