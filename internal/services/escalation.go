package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"focustrack-backend/internal/clock"
	"focustrack-backend/internal/models"
	"focustrack-backend/internal/repository"
)

// EscalationConfig holds the reminder policy knobs.
type EscalationConfig struct {
	LightOffset       time.Duration // light reminder fires this long before planned checkout
	SnoozeIncrement   time.Duration // each snooze pushes planned checkout by this much
	MaxSnoozeCount    int
	UnresponsiveGrace time.Duration // no interaction this long after the strong reminder flags the session
	OverdueRepeat     time.Duration // overdue reminders repeat at this interval
}

func DefaultEscalationConfig() EscalationConfig {
	return EscalationConfig{
		LightOffset:       5 * time.Minute,
		SnoozeIncrement:   5 * time.Minute,
		MaxSnoozeCount:    2,
		UnresponsiveGrace: 10 * time.Minute,
		OverdueRepeat:     5 * time.Minute,
	}
}

// Escalator schedules reminder timers against the injected clock, one set per
// active session. Callbacks re-read the session and no-op when it has ended,
// paused, or moved its planned checkout since scheduling (stale-timer guard),
// so a late-firing timer can never contradict the state machine.
type Escalator struct {
	clk   clock.Clock
	store SessionStore
	push  Publisher
	cfg   EscalationConfig

	mu             sync.Mutex
	timers         map[uuid.UUID][]clock.Timer
	onUnresponsive func(ctx context.Context, sessionID uuid.UUID)
}

func NewEscalator(clk clock.Clock, store SessionStore, push Publisher, cfg EscalationConfig) *Escalator {
	return &Escalator{
		clk:    clk,
		store:  store,
		push:   push,
		cfg:    cfg,
		timers: make(map[uuid.UUID][]clock.Timer),
	}
}

// SetUnresponsiveFunc wires the lifecycle manager's unresponsive handler.
// Must be called before any session is scheduled.
func (e *Escalator) SetUnresponsiveFunc(fn func(ctx context.Context, sessionID uuid.UUID)) {
	e.onUnresponsive = fn
}

// Schedule arms the reminder timers for a session, replacing any previous
// set. Call after start, resume, and snooze. Offsets are computed from the
// session's current planned checkout, so timers cancelled by a pause are
// reinstated with their remaining offsets preserved rather than restarted.
func (e *Escalator) Schedule(s *models.WorkSession) {
	e.Cancel(s.ID)

	now := e.clk.Now()
	planned := s.PlannedCheckoutAt
	id := s.ID

	var timers []clock.Timer

	if !s.Notification5minSent {
		if lightAt := planned.Add(-e.cfg.LightOffset); lightAt.After(now) {
			timers = append(timers, e.clk.AfterFunc(lightAt.Sub(now), func() {
				e.fireLight(id, planned)
			}))
		}
	}

	if !s.NotificationCheckoutSent && !planned.Before(now) {
		timers = append(timers, e.clk.AfterFunc(planned.Sub(now), func() {
			e.fireStrong(id, planned)
		}))
	}

	firstOverdue := planned.Add(e.cfg.OverdueRepeat)
	if !firstOverdue.After(now) {
		firstOverdue = now.Add(e.cfg.OverdueRepeat)
	}
	timers = append(timers, e.clk.AfterFunc(firstOverdue.Sub(now), func() {
		e.fireOverdue(id, planned)
	}))

	if unrespAt := planned.Add(e.cfg.UnresponsiveGrace); unrespAt.After(now) {
		timers = append(timers, e.clk.AfterFunc(unrespAt.Sub(now), func() {
			e.fireUnresponsive(id, planned)
		}))
	}

	e.mu.Lock()
	e.timers[id] = timers
	e.mu.Unlock()
}

// Cancel stops every pending timer for a session. Called on pause and on
// checkout.
func (e *Escalator) Cancel(sessionID uuid.UUID) {
	e.mu.Lock()
	timers := e.timers[sessionID]
	delete(e.timers, sessionID)
	e.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
}

// snapshot re-reads the session for a firing timer. Returns nil when the
// callback is stale and must no-op.
func (e *Escalator) snapshot(id uuid.UUID, scheduledPlanned time.Time) *models.WorkSession {
	s, err := e.store.GetByID(context.Background(), id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Printf("escalation: failed to load session %s: %v", id, err)
		}
		return nil
	}
	if s.IsEnded() || s.IsPaused() {
		return nil
	}
	if !s.PlannedCheckoutAt.Equal(scheduledPlanned) {
		return nil // rescheduled since this timer was armed
	}
	return s
}

func (e *Escalator) fireLight(id uuid.UUID, planned time.Time) {
	s := e.snapshot(id, planned)
	if s == nil || s.Notification5minSent {
		return
	}

	e.deliver(s, models.LevelLight, "チェックアウト5分前です", "予定のチェックアウト時刻まであと5分です。区切りの準備をしましょう。")
	e.markSent(s, func(s *models.WorkSession) { s.Notification5minSent = true })
}

func (e *Escalator) fireStrong(id uuid.UUID, planned time.Time) {
	s := e.snapshot(id, planned)
	if s == nil || s.NotificationCheckoutSent {
		return
	}

	e.deliver(s, models.LevelStrong, "チェックアウトの時間です", "予定のチェックアウト時刻になりました。チェックアウトするかスヌーズしてください。")
	e.markSent(s, func(s *models.WorkSession) { s.NotificationCheckoutSent = true })
}

func (e *Escalator) fireOverdue(id uuid.UUID, planned time.Time) {
	s := e.snapshot(id, planned)
	if s == nil {
		return
	}

	now := e.clk.Now()
	if IsOverdue(s, now) {
		overdueMin := -RemainingSeconds(s, now) / 60
		e.deliver(s, models.LevelOverdue, "チェックアウト時刻を過ぎています",
			fmt.Sprintf("予定のチェックアウト時刻を %d 分過ぎています。チェックアウトしてください。", overdueMin))
	}

	// Re-arm: overdue reminders repeat until checkout cancels them.
	t := e.clk.AfterFunc(e.cfg.OverdueRepeat, func() {
		e.fireOverdue(id, planned)
	})
	e.mu.Lock()
	if _, live := e.timers[id]; live {
		e.timers[id] = append(e.timers[id], t)
	} else {
		// Cancelled between snapshot and re-arm.
		e.mu.Unlock()
		t.Stop()
		return
	}
	e.mu.Unlock()
}

func (e *Escalator) fireUnresponsive(id uuid.UUID, planned time.Time) {
	s := e.snapshot(id, planned)
	if s == nil || s.MarkedUnresponsiveAt != nil {
		return
	}
	if e.onUnresponsive != nil {
		e.onUnresponsive(context.Background(), id)
	}
}

func (e *Escalator) deliver(s *models.WorkSession, level, title, body string) {
	msg := models.WSMessage{
		Type: "notification",
		Payload: models.NotificationMessage{
			ID:        uuid.New(),
			Level:     level,
			Title:     title,
			Body:      body,
			SessionID: s.ID,
			Timestamp: e.clk.Now(),
		},
	}
	if err := e.push.Publish(context.Background(), s.UserID, msg); err != nil {
		// Fire-and-forget: delivery only affects awareness, not correctness.
		log.Printf("escalation: push delivery failed for user %s: %v", s.UserID, err)
	}
}

// markSent records a notification flag with one retry on a lost CAS; the flag
// is advisory, so a second loss is just logged.
func (e *Escalator) markSent(s *models.WorkSession, set func(*models.WorkSession)) {
	ctx := context.Background()
	set(s)
	err := e.store.UpdateCAS(ctx, s)
	if errors.Is(err, repository.ErrVersionConflict) {
		fresh, getErr := e.store.GetByID(ctx, s.ID)
		if getErr != nil || fresh.IsEnded() {
			return
		}
		set(fresh)
		err = e.store.UpdateCAS(ctx, fresh)
	}
	if err != nil {
		log.Printf("escalation: failed to record notification flag for session %s: %v", s.ID, err)
	}
}
