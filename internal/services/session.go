package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"focustrack-backend/internal/clock"
	"focustrack-backend/internal/models"
	"focustrack-backend/internal/repository"
)

// SuggestionCreator builds a reschedule suggestion for a finalized or
// unresponsive session. Implemented by RescheduleService.
type SuggestionCreator interface {
	CreateForSession(ctx context.Context, s *models.WorkSession, triggerType string, nextTaskID *uuid.UUID) (*models.RescheduleSuggestion, error)
}

// SessionService owns the WorkSession state machine:
// Idle → Active ⇄ Paused, Active → Ended. Overdue is a derived condition of
// Active, not a stored state. Every mutation goes through a version
// compare-and-swap; a lost race surfaces as Conflict so racing callers
// (pause vs. checkout, double checkout) can never both succeed.
type SessionService struct {
	sessions   SessionStore
	tasks      TaskStore
	users      UserStore
	clk        clock.Clock
	esc        *Escalator
	reschedule SuggestionCreator
	email      *EmailService
	queue      RecoveryEnqueuer
	cfg        EscalationConfig
}

func NewSessionService(
	sessions SessionStore,
	tasks TaskStore,
	users UserStore,
	clk clock.Clock,
	esc *Escalator,
	reschedule SuggestionCreator,
	email *EmailService,
	queue RecoveryEnqueuer,
	cfg EscalationConfig,
) *SessionService {
	return &SessionService{
		sessions:   sessions,
		tasks:      tasks,
		users:      users,
		clk:        clk,
		esc:        esc,
		reschedule: reschedule,
		email:      email,
		queue:      queue,
		cfg:        cfg,
	}
}

type CheckoutRequest struct {
	Decision               string
	ContinueReason         *string
	KptKeep                *string
	KptProblem             *string
	KptTry                 *string
	RemainingEstimateHours *float64
	NextTaskID             *uuid.UUID
}

type CheckoutResult struct {
	Session    *models.WorkSession          `json:"session"`
	Suggestion *models.RescheduleSuggestion `json:"reschedule_suggestion,omitempty"`
}

type SnoozeResult struct {
	NewPlannedCheckoutAt time.Time `json:"new_planned_checkout_at"`
	SnoozeCount          int       `json:"snooze_count"`
	MaxSnoozeCount       int       `json:"max_snooze_count"`
}

// Start opens a session against a task. At most one session per user may be
// open; a second start returns Conflict.
func (s *SessionService) Start(ctx context.Context, userID, taskID uuid.UUID, plannedCheckoutAt time.Time, plannedOutcome *string) (*models.WorkSession, error) {
	now := s.clk.Now()
	if !plannedCheckoutAt.After(now) {
		return nil, &ValidationError{Fields: map[string]string{
			"planned_checkout_at": "must be in the future",
		}}
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Task not found"}
	}
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		return nil, &NotFoundError{Message: "Task not found"}
	}

	if active, err := s.sessions.GetActiveByUser(ctx, userID); err != nil {
		return nil, err
	} else if active != nil {
		return nil, &ConflictError{Message: "An active session already exists"}
	}

	session := &models.WorkSession{
		UserID:            userID,
		TaskID:            taskID,
		StartedAt:         now,
		PlannedCheckoutAt: plannedCheckoutAt.UTC(),
		PlannedOutcome:    plannedOutcome,
	}
	if err := s.sessions.Insert(ctx, session); err != nil {
		// The partial unique index closes the check-then-insert window.
		if errors.Is(err, repository.ErrActiveSessionExists) {
			return nil, &ConflictError{Message: "An active session already exists"}
		}
		return nil, err
	}

	s.esc.Schedule(session)
	log.Printf("session %s started for user %s (task %s)", session.ID, userID, taskID)
	return session, nil
}

// Pause freezes remaining-time accrual. Valid only from Active.
func (s *SessionService) Pause(ctx context.Context, userID uuid.UUID) (*models.WorkSession, error) {
	session, err := s.activeSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session.IsPaused() {
		return nil, &InvalidStateError{Message: "Session is already paused"}
	}

	now := s.clk.Now()
	session.PausedAt = &now
	if err := s.casUpdate(ctx, session); err != nil {
		return nil, err
	}

	// Timers are cancelled, not discarded: resume re-arms them against the
	// (possibly extended) planned checkout, preserving remaining offsets.
	s.esc.Cancel(session.ID)
	return session, nil
}

// Resume re-opens an active interval. With extendCheckout the planned
// checkout moves forward by exactly the paused duration, so the user is not
// penalized for pausing.
func (s *SessionService) Resume(ctx context.Context, userID uuid.UUID, extendCheckout bool) (*models.WorkSession, error) {
	session, err := s.activeSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !session.IsPaused() {
		return nil, &InvalidStateError{Message: "Session is not paused"}
	}

	now := s.clk.Now()
	pauseDuration := now.Sub(*session.PausedAt)
	if pauseDuration < 0 {
		pauseDuration = 0
	}

	session.PausedTotalSeconds += int(pauseDuration / time.Second)
	if extendCheckout {
		session.PlannedCheckoutAt = session.PlannedCheckoutAt.Add(pauseDuration)
	}
	session.PausedAt = nil
	if err := s.casUpdate(ctx, session); err != nil {
		return nil, err
	}

	s.esc.Schedule(session)
	return session, nil
}

// Checkout finalizes the session. Valid from Active (including the overdue
// condition); a paused session must be resumed first. decision=continue
// requires a continue_reason. When the outcome can impact the rest of the
// day's plan, the optimizer is invoked and a pending reschedule suggestion is
// returned alongside the finalized session; optimizer failure degrades to no
// suggestion rather than failing the checkout.
func (s *SessionService) Checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*CheckoutResult, error) {
	if err := validateCheckout(req); err != nil {
		return nil, err
	}

	session, err := s.activeSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session.IsPaused() {
		return nil, &InvalidStateError{Message: "Session is paused; resume before checkout"}
	}

	now := s.clk.Now()
	actualMinutes := ElapsedMinutes(session, now)
	checkoutType := deriveCheckoutType(session, now, s.cfg)

	session.EndedAt = &now
	session.ActualMinutes = &actualMinutes
	session.CheckoutType = &checkoutType
	decision := req.Decision
	session.Decision = &decision
	session.ContinueReason = req.ContinueReason
	session.KptKeep = req.KptKeep
	session.KptProblem = req.KptProblem
	session.KptTry = req.KptTry
	session.RemainingEstimateHours = req.RemainingEstimateHours

	if err := s.casUpdate(ctx, session); err != nil {
		return nil, err
	}

	s.esc.Cancel(session.ID)
	log.Printf("session %s checked out (%s/%s, %d min)", session.ID, checkoutType, decision, actualMinutes)

	result := &CheckoutResult{Session: session}
	if impactsSchedule(req) {
		suggestion, err := s.reschedule.CreateForSession(ctx, session, models.TriggerCheckout, req.NextTaskID)
		if err != nil {
			// Recoverable: the day's plan just stays as-is for now.
			log.Printf("session %s: reschedule suggestion failed: %v", session.ID, err)
		} else {
			result.Suggestion = suggestion
		}
	}
	return result, nil
}

// Snooze defers the reminder by extending the planned checkout. Only valid
// during the light/strong windows and below the per-session cap; overdue
// sessions can only check out.
func (s *SessionService) Snooze(ctx context.Context, userID uuid.UUID) (*SnoozeResult, error) {
	session, err := s.activeSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session.IsPaused() {
		return nil, &InvalidStateError{Message: "Session is paused"}
	}

	now := s.clk.Now()
	// Snoozing is never allowed at the overdue level; a prior snooze that
	// pushed planned checkout back out keeps the session snoozable until the
	// cap, matching light/strong policy.
	if CurrentLevel(session, now, s.cfg.LightOffset, s.cfg.OverdueRepeat) == models.LevelOverdue {
		return nil, &InvalidStateError{Message: "Session is overdue; snooze is no longer available"}
	}

	if session.SnoozeCount >= s.cfg.MaxSnoozeCount {
		return nil, &LimitExceededError{Message: "Snooze limit reached"}
	}

	session.PlannedCheckoutAt = session.PlannedCheckoutAt.Add(s.cfg.SnoozeIncrement)
	session.SnoozeCount++
	session.LastSnoozeAt = &now
	// The strong reminder becomes due again at the new planned checkout.
	session.NotificationCheckoutSent = false
	if err := s.casUpdate(ctx, session); err != nil {
		return nil, err
	}

	s.esc.Schedule(session)
	return &SnoozeResult{
		NewPlannedCheckoutAt: session.PlannedCheckoutAt,
		SnoozeCount:          session.SnoozeCount,
		MaxSnoozeCount:       s.cfg.MaxSnoozeCount,
	}, nil
}

// GetCurrent returns the user's open session, or nil when idle.
func (s *SessionService) GetCurrent(ctx context.Context, userID uuid.UUID) (*models.WorkSession, error) {
	return s.sessions.GetActiveByUser(ctx, userID)
}

// GetUnresponsive returns the user's open session if flagged unresponsive.
func (s *SessionService) GetUnresponsive(ctx context.Context, userID uuid.UUID) (*models.WorkSession, error) {
	return s.sessions.GetUnresponsiveByUser(ctx, userID)
}

// HandleUnresponsive is invoked by the escalation engine when no interaction
// followed the strong reminder. It flags the session, alerts by email, and
// enqueues an overdue-recovery job; the session itself stays Active.
func (s *SessionService) HandleUnresponsive(ctx context.Context, sessionID uuid.UUID) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Printf("unresponsive: failed to load session %s: %v", sessionID, err)
		}
		return
	}
	if session.IsEnded() || session.IsPaused() || session.MarkedUnresponsiveAt != nil {
		return
	}

	now := s.clk.Now()
	session.MarkedUnresponsiveAt = &now
	if err := s.sessions.UpdateCAS(ctx, session); err != nil {
		// Advisory flag: a concurrent transition wins and we stand down.
		return
	}
	log.Printf("session %s marked unresponsive", sessionID)

	s.sendUnresponsiveAlert(ctx, session, now)

	if s.queue != nil {
		job := models.RecoveryJob{
			ID:         uuid.New(),
			UserID:     session.UserID,
			SessionID:  session.ID,
			EnqueuedAt: now,
		}
		if err := s.queue.EnqueueRecovery(ctx, job); err != nil {
			log.Printf("unresponsive: failed to enqueue recovery for session %s: %v", sessionID, err)
		}
	}
}

func (s *SessionService) sendUnresponsiveAlert(ctx context.Context, session *models.WorkSession, now time.Time) {
	if s.email == nil || s.users == nil {
		return
	}
	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		log.Printf("unresponsive: failed to load user %s: %v", session.UserID, err)
		return
	}
	taskTitle := "現在のタスク"
	if s.tasks != nil {
		if task, err := s.tasks.GetByID(ctx, session.TaskID); err == nil {
			taskTitle = task.Title
		}
	}
	overdueMinutes := -RemainingSeconds(session, now) / 60
	if overdueMinutes < 0 {
		overdueMinutes = 0
	}
	if err := s.email.SendUnresponsiveAlert(user.Email, user.FullName, taskTitle, overdueMinutes); err != nil {
		log.Printf("unresponsive: alert email failed for user %s: %v", session.UserID, err)
	}
}

// activeSession loads the open session or returns NotFound.
func (s *SessionService) activeSession(ctx context.Context, userID uuid.UUID) (*models.WorkSession, error) {
	session, err := s.sessions.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, &NotFoundError{Message: "No active session"}
	}
	return session, nil
}

func (s *SessionService) casUpdate(ctx context.Context, session *models.WorkSession) error {
	err := s.sessions.UpdateCAS(ctx, session)
	if errors.Is(err, repository.ErrVersionConflict) {
		return &ConflictError{Message: "Session was modified concurrently; re-fetch and retry"}
	}
	return err
}

func validateCheckout(req CheckoutRequest) error {
	fields := make(map[string]string)
	switch req.Decision {
	case models.DecisionContinue, models.DecisionSwitch, models.DecisionBreak, models.DecisionComplete:
	case "":
		fields["decision"] = "decision is required"
	default:
		fields["decision"] = "decision must be continue, switch, break, or complete"
	}
	if req.Decision == models.DecisionContinue {
		if req.ContinueReason == nil || *req.ContinueReason == "" {
			fields["continue_reason"] = "continue_reason is required when decision is continue"
		} else if !models.ValidContinueReasons[*req.ContinueReason] {
			fields["continue_reason"] = "unknown continue_reason"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// deriveCheckoutType classifies how the session ended: before the reminder
// window it is manual, around the planned time it is scheduled, past the
// strong window it is overdue, and a session that had gone unresponsive is
// interrupted.
func deriveCheckoutType(s *models.WorkSession, now time.Time, cfg EscalationConfig) string {
	if s.MarkedUnresponsiveAt != nil {
		return models.CheckoutInterrupted
	}
	planned := s.PlannedCheckoutAt
	switch {
	case now.Before(planned.Add(-cfg.LightOffset)):
		return models.CheckoutManual
	case now.Before(planned.Add(cfg.OverdueRepeat)):
		return models.CheckoutScheduled
	default:
		return models.CheckoutOverdue
	}
}

// impactsSchedule reports whether a checkout outcome can change the rest of
// the day's plan: unfinished work carried forward, or a switch to another
// task.
func impactsSchedule(req CheckoutRequest) bool {
	switch req.Decision {
	case models.DecisionContinue:
		return req.RemainingEstimateHours != nil && *req.RemainingEstimateHours > 0
	case models.DecisionSwitch:
		return req.NextTaskID != nil
	default:
		return false
	}
}
