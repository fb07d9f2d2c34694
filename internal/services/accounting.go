package services

import (
	"time"

	"focustrack-backend/internal/models"
)

// Time accounting: pure computations over a session snapshot and a clock
// reading. No side effects; called by the lifecycle manager, the escalation
// engine, and UI polling.

// floorSeconds converts a duration to whole seconds rounding toward negative
// infinity, so a remaining time of -0.5s reads as -1, not 0.
func floorSeconds(d time.Duration) int {
	s := d / time.Second
	if d%time.Second != 0 && d < 0 {
		s--
	}
	return int(s)
}

// PausedElapsedSeconds is the sum of closed pause intervals plus, if the
// session is currently paused, the open interval up to now.
func PausedElapsedSeconds(s *models.WorkSession, now time.Time) int {
	total := s.PausedTotalSeconds
	if s.PausedAt != nil && s.EndedAt == nil {
		if open := floorSeconds(now.Sub(*s.PausedAt)); open > 0 {
			total += open
		}
	}
	return total
}

// RemainingSeconds is the countdown to the planned checkout. While paused it
// is frozen at its value when the pause began; resuming with extend_checkout
// moves planned_checkout_at so the countdown picks up where it froze,
// resuming without it lets the pause eat into the budget. Negative values are
// meaningful (depth of overdue) and are never clamped here.
func RemainingSeconds(s *models.WorkSession, now time.Time) int {
	if s.EndedAt != nil {
		return 0
	}
	if s.PausedAt != nil {
		return floorSeconds(s.PlannedCheckoutAt.Sub(*s.PausedAt))
	}
	return floorSeconds(s.PlannedCheckoutAt.Sub(now))
}

// IsOverdue reports whether the session has passed its planned checkout and
// is not paused.
func IsOverdue(s *models.WorkSession, now time.Time) bool {
	return s.EndedAt == nil && s.PausedAt == nil && RemainingSeconds(s, now) <= 0
}

// ElapsedMinutes is the worked time recorded at checkout: wall time minus
// total paused time, floored to whole minutes. Never negative.
func ElapsedMinutes(s *models.WorkSession, endedAt time.Time) int {
	worked := endedAt.Sub(s.StartedAt) - time.Duration(s.PausedTotalSeconds)*time.Second
	if worked < 0 {
		return 0
	}
	return int(worked / time.Minute)
}

// CurrentLevel derives the active escalation level from a session snapshot.
// lightOffset is how long before planned checkout the light reminder window
// opens; strongWindow is how long after planned checkout the strong level
// lasts before it becomes overdue. Returns "" outside any reminder window,
// while paused, or after checkout.
func CurrentLevel(s *models.WorkSession, now time.Time, lightOffset, strongWindow time.Duration) string {
	if s.EndedAt != nil || s.PausedAt != nil {
		return ""
	}
	planned := s.PlannedCheckoutAt
	switch {
	case now.Before(planned.Add(-lightOffset)):
		return ""
	case now.Before(planned):
		return models.LevelLight
	case now.Before(planned.Add(strongWindow)):
		return models.LevelStrong
	default:
		return models.LevelOverdue
	}
}
