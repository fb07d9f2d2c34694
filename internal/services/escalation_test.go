package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"focustrack-backend/internal/clock"
	"focustrack-backend/internal/models"
)

type escalatorFixture struct {
	clk     *clock.Fake
	store   *fakeSessionStore
	push    *fakePublisher
	esc     *Escalator
	unresp  atomic.Int32
	session *models.WorkSession
}

func newEscalatorFixture(t *testing.T, start time.Time, planned time.Time) *escalatorFixture {
	t.Helper()
	f := &escalatorFixture{
		clk:   clock.NewFake(start),
		store: newFakeSessionStore(),
		push:  &fakePublisher{},
	}
	f.esc = NewEscalator(f.clk, f.store, f.push, DefaultEscalationConfig())
	f.esc.SetUnresponsiveFunc(func(ctx context.Context, id uuid.UUID) {
		f.unresp.Add(1)
	})

	f.session = &models.WorkSession{
		UserID:            uuid.New(),
		TaskID:            uuid.New(),
		StartedAt:         start,
		PlannedCheckoutAt: planned,
	}
	if err := f.store.Insert(context.Background(), f.session); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	return f
}

func levelsOf(notifications []models.NotificationMessage) []string {
	out := make([]string, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, n.Level)
	}
	return out
}

func TestEscalationSequence(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f := newEscalatorFixture(t, start, start.Add(time.Hour))
	f.esc.Schedule(f.session)

	f.clk.Advance(50 * time.Minute)
	if got := f.push.notifications(); len(got) != 0 {
		t.Fatalf("nothing should fire before the light window, got %v", levelsOf(got))
	}

	f.clk.Advance(5 * time.Minute) // 9:55
	got := f.push.notifications()
	if len(got) != 1 || got[0].Level != models.LevelLight {
		t.Fatalf("expected light reminder at T-5m, got %v", levelsOf(got))
	}

	f.clk.Advance(5 * time.Minute) // 10:00
	got = f.push.notifications()
	if len(got) != 2 || got[1].Level != models.LevelStrong {
		t.Fatalf("expected strong reminder at planned checkout, got %v", levelsOf(got))
	}

	f.clk.Advance(5 * time.Minute) // 10:05, first overdue
	f.clk.Advance(5 * time.Minute) // 10:10, repeat + unresponsive grace
	got = f.push.notifications()
	if len(got) != 4 || got[2].Level != models.LevelOverdue || got[3].Level != models.LevelOverdue {
		t.Fatalf("expected two repeating overdue reminders, got %v", levelsOf(got))
	}
	if f.unresp.Load() != 1 {
		t.Errorf("expected one unresponsive callback, got %d", f.unresp.Load())
	}

	// Flags persisted so a re-Schedule does not re-deliver.
	stored, _ := f.store.GetByID(context.Background(), f.session.ID)
	if !stored.Notification5minSent || !stored.NotificationCheckoutSent {
		t.Errorf("notification flags not recorded: 5min=%v checkout=%v",
			stored.Notification5minSent, stored.NotificationCheckoutSent)
	}
}

func TestEscalationCancelStopsEverything(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f := newEscalatorFixture(t, start, start.Add(time.Hour))
	f.esc.Schedule(f.session)

	f.esc.Cancel(f.session.ID)
	f.clk.Advance(2 * time.Hour)

	if got := f.push.notifications(); len(got) != 0 {
		t.Fatalf("cancelled timers delivered %v", levelsOf(got))
	}
	if f.unresp.Load() != 0 {
		t.Errorf("cancelled unresponsive timer fired")
	}
}

func TestEscalationStaleTimerNoop(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f := newEscalatorFixture(t, start, start.Add(time.Hour))
	f.esc.Schedule(f.session)

	// The planned checkout moves (e.g. a snooze on another instance) without
	// this escalator hearing about it: its armed timers are now stale.
	moved, _ := f.store.GetByID(context.Background(), f.session.ID)
	moved.PlannedCheckoutAt = moved.PlannedCheckoutAt.Add(30 * time.Minute)
	if err := f.store.UpdateCAS(context.Background(), moved); err != nil {
		t.Fatalf("UpdateCAS failed: %v", err)
	}

	f.clk.Advance(2 * time.Hour)
	if got := f.push.notifications(); len(got) != 0 {
		t.Fatalf("stale timers delivered %v", levelsOf(got))
	}
	if f.unresp.Load() != 0 {
		t.Errorf("stale unresponsive timer fired")
	}
}

func TestEscalationSkipsEndedSession(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f := newEscalatorFixture(t, start, start.Add(time.Hour))
	f.esc.Schedule(f.session)

	// Ended between arming and firing, without a Cancel (crash-recovery shape).
	ended, _ := f.store.GetByID(context.Background(), f.session.ID)
	endedAt := start.Add(30 * time.Minute)
	ended.EndedAt = &endedAt
	if err := f.store.UpdateCAS(context.Background(), ended); err != nil {
		t.Fatalf("UpdateCAS failed: %v", err)
	}

	f.clk.Advance(2 * time.Hour)
	if got := f.push.notifications(); len(got) != 0 {
		t.Fatalf("timers fired for an ended session: %v", levelsOf(got))
	}
}

func TestEscalationRescheduleAfterSnoozeMovesReminders(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	planned := start.Add(time.Hour)
	f := newEscalatorFixture(t, start, planned)
	f.esc.Schedule(f.session)

	f.clk.Advance(56 * time.Minute) // light fired at 9:55
	if got := f.push.notifications(); len(got) != 1 {
		t.Fatalf("expected light reminder before snooze, got %v", levelsOf(got))
	}

	// Snooze: planned moves out, the strong flag stays unset, timers re-arm.
	snoozed, _ := f.store.GetByID(context.Background(), f.session.ID)
	snoozed.PlannedCheckoutAt = planned.Add(5 * time.Minute)
	snoozed.SnoozeCount = 1
	if err := f.store.UpdateCAS(context.Background(), snoozed); err != nil {
		t.Fatalf("UpdateCAS failed: %v", err)
	}
	f.esc.Schedule(snoozed)

	f.clk.Advance(4 * time.Minute) // 10:00, the old planned checkout
	if got := f.push.notifications(); len(got) != 1 {
		t.Fatalf("strong reminder fired at the stale time, got %v", levelsOf(got))
	}

	f.clk.Advance(5 * time.Minute) // 10:05, the snoozed checkout
	got := f.push.notifications()
	if len(got) != 2 || got[1].Level != models.LevelStrong {
		t.Fatalf("expected strong reminder at the snoozed time, got %v", levelsOf(got))
	}
}
