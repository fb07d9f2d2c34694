package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"focustrack-backend/internal/clock"
	"focustrack-backend/internal/models"
)

type rescheduleFixture struct {
	clk       *clock.Fake
	store     *fakeSuggestionStore
	schedules *fakeScheduleStore
	optimizer *fakeOptimizer
	push      *fakePublisher
	svc       *RescheduleService
	userID    uuid.UUID
	session   *models.WorkSession
}

func newRescheduleFixture(start time.Time) *rescheduleFixture {
	userID := uuid.New()
	decision := models.DecisionContinue
	remaining := 1.0

	f := &rescheduleFixture{
		clk:       clock.NewFake(start),
		store:     newFakeSuggestionStore(start),
		schedules: newFakeScheduleStore(),
		optimizer: &fakeOptimizer{},
		push:      &fakePublisher{},
		userID:    userID,
		session: &models.WorkSession{
			ID:                     uuid.New(),
			UserID:                 userID,
			TaskID:                 uuid.New(),
			Decision:               &decision,
			RemainingEstimateHours: &remaining,
		},
	}
	f.svc = NewRescheduleService(f.store, f.schedules, f.optimizer, f.push, f.clk, DefaultDiffConfig())
	return f
}

func (f *rescheduleFixture) seedSchedule(assignments []models.ScheduleAssignment) {
	date := f.clk.Now().Format("2006-01-02")
	f.schedules.PutForDate(context.Background(), f.userID, date, assignments)
}

func (f *rescheduleFixture) create(t *testing.T) *models.RescheduleSuggestion {
	t.Helper()
	sg, err := f.svc.CreateForSession(context.Background(), f.session, models.TriggerCheckout, nil)
	if err != nil {
		t.Fatalf("CreateForSession failed: %v", err)
	}
	if sg == nil {
		t.Fatalf("expected a suggestion")
	}
	return sg
}

func TestCreateForSessionNoopProposal(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f := newRescheduleFixture(start)

	schedule := []models.ScheduleAssignment{assignment(uuid.New(), "A", 0, start.Add(time.Hour))}
	f.seedSchedule(schedule)
	f.optimizer.proposal = schedule

	sg, err := f.svc.CreateForSession(context.Background(), f.session, models.TriggerCheckout, nil)
	if err != nil {
		t.Fatalf("CreateForSession failed: %v", err)
	}
	if sg != nil {
		t.Fatalf("identical proposal must not create a suggestion, got %+v", sg)
	}
	if len(f.push.messages) != 0 {
		t.Errorf("no-op replan pushed a notification")
	}
}

func TestCreateForSessionRecordsPendingSuggestion(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f := newRescheduleFixture(start)

	taskA := uuid.New()
	original := []models.ScheduleAssignment{assignment(taskA, "A", 0, start.Add(time.Hour))}
	f.seedSchedule(original)
	f.optimizer.proposal = []models.ScheduleAssignment{
		assignment(taskA, "A", 0, start.Add(time.Hour)),
		assignment(uuid.New(), "B", 1, start.Add(2*time.Hour)),
	}

	sg := f.create(t)
	if sg.Status != models.SuggestionPending {
		t.Errorf("expected pending, got %s", sg.Status)
	}
	if sg.TriggerType != models.TriggerCheckout {
		t.Errorf("expected checkout trigger, got %s", sg.TriggerType)
	}
	if sg.Diff.TotalChanges != 1 || len(sg.Diff.Added) != 1 {
		t.Errorf("expected one added change, got %+v", sg.Diff)
	}
	if sg.ExpiresAt == nil {
		t.Fatalf("expected an expiry")
	}
	if want := time.Date(2026, 3, 2, 23, 59, 59, 0, time.UTC); !sg.ExpiresAt.Equal(want) {
		t.Errorf("expected end-of-day expiry %v, got %v", want, sg.ExpiresAt)
	}
	if len(f.push.messages) != 1 || f.push.messages[0].Type != "reschedule_suggestion" {
		t.Errorf("expected one suggestion push, got %+v", f.push.messages)
	}

	pending, err := f.svc.ListPending(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != sg.ID {
		t.Errorf("suggestion not listed as pending")
	}
}

func TestAcceptCommitsProposedSchedule(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f := newRescheduleFixture(start)

	original := []models.ScheduleAssignment{assignment(uuid.New(), "A", 0, start.Add(time.Hour))}
	proposed := []models.ScheduleAssignment{assignment(uuid.New(), "B", 0, start.Add(time.Hour))}
	f.seedSchedule(original)
	f.optimizer.proposal = proposed

	sg := f.create(t)

	decided, err := f.svc.Accept(context.Background(), f.userID, sg.ID, nil)
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if decided.Status != models.SuggestionAccepted || decided.DecidedAt == nil {
		t.Errorf("expected accepted with decided_at, got %s/%v", decided.Status, decided.DecidedAt)
	}

	live, err := f.schedules.GetForDate(context.Background(), f.userID, start.Format("2006-01-02"))
	if err != nil {
		t.Fatalf("GetForDate failed: %v", err)
	}
	if len(live.Assignments) != 1 || live.Assignments[0].TaskID != proposed[0].TaskID {
		t.Errorf("proposed schedule not committed, got %+v", live.Assignments)
	}

	if len(f.store.decisions) != 1 || !f.store.decisions[0].Accepted {
		t.Errorf("expected one accepted decision record, got %+v", f.store.decisions)
	}
}

func TestRejectKeepsOriginalSchedule(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f := newRescheduleFixture(start)

	originalTask := uuid.New()
	f.seedSchedule([]models.ScheduleAssignment{assignment(originalTask, "A", 0, start.Add(time.Hour))})
	f.optimizer.proposal = []models.ScheduleAssignment{assignment(uuid.New(), "B", 0, start.Add(time.Hour))}

	sg := f.create(t)

	reason := "今日はこのまま進める"
	decided, err := f.svc.Reject(context.Background(), f.userID, sg.ID, &reason)
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if decided.Status != models.SuggestionRejected {
		t.Errorf("expected rejected, got %s", decided.Status)
	}

	live, _ := f.schedules.GetForDate(context.Background(), f.userID, start.Format("2006-01-02"))
	if live.Assignments[0].TaskID != originalTask {
		t.Errorf("rejected suggestion mutated the live schedule")
	}
	if len(f.store.decisions) != 1 || f.store.decisions[0].Accepted {
		t.Errorf("expected one rejected decision record, got %+v", f.store.decisions)
	}
	if f.store.decisions[0].Reason == nil || *f.store.decisions[0].Reason != reason {
		t.Errorf("decision reason not recorded")
	}
}

func TestDecideTwiceIsInvalidState(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f := newRescheduleFixture(start)
	f.optimizer.proposal = []models.ScheduleAssignment{assignment(uuid.New(), "B", 0, start.Add(time.Hour))}

	sg := f.create(t)
	if _, err := f.svc.Accept(context.Background(), f.userID, sg.ID, nil); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	_, err := f.svc.Reject(context.Background(), f.userID, sg.ID, nil)
	var isErr *InvalidStateError
	if !errors.As(err, &isErr) {
		t.Fatalf("expected InvalidStateError on second decision, got %v", err)
	}

	stored, _ := f.store.GetByID(context.Background(), sg.ID)
	if stored.Status != models.SuggestionAccepted {
		t.Errorf("second decision changed status to %s", stored.Status)
	}
}

func TestDecideExpiredSuggestion(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f := newRescheduleFixture(start)
	f.optimizer.proposal = []models.ScheduleAssignment{assignment(uuid.New(), "B", 0, start.Add(time.Hour))}

	sg := f.create(t)

	f.clk.Advance(24 * time.Hour)
	_, err := f.svc.Accept(context.Background(), f.userID, sg.ID, nil)
	var isErr *InvalidStateError
	if !errors.As(err, &isErr) {
		t.Fatalf("expected InvalidStateError for expired suggestion, got %v", err)
	}

	// Lazily flipped to expired even though the sweeper never ran.
	stored, _ := f.store.GetByID(context.Background(), sg.ID)
	if stored.Status != models.SuggestionExpired {
		t.Errorf("expected expired status, got %s", stored.Status)
	}
}

func TestDecideForeignSuggestionNotFound(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f := newRescheduleFixture(start)
	f.optimizer.proposal = []models.ScheduleAssignment{assignment(uuid.New(), "B", 0, start.Add(time.Hour))}

	sg := f.create(t)

	_, err := f.svc.Accept(context.Background(), uuid.New(), sg.ID, nil)
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError for another user's suggestion, got %v", err)
	}
}

func TestCreateForSessionOptimizerError(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f := newRescheduleFixture(start)
	f.optimizer.err = errors.New("optimizer down")

	_, err := f.svc.CreateForSession(context.Background(), f.session, models.TriggerCheckout, nil)
	if err == nil {
		t.Fatalf("expected optimizer error to propagate")
	}
}

func TestExpireSweepFlipsOnlyOverdueSuggestions(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store := newFakeSuggestionStore(start)

	soon := start.Add(time.Hour)
	later := start.Add(10 * time.Hour)
	userID := uuid.New()
	first := &models.RescheduleSuggestion{UserID: userID, WorkSessionID: uuid.New(), TriggerType: models.TriggerCheckout, ExpiresAt: &soon}
	second := &models.RescheduleSuggestion{UserID: userID, WorkSessionID: uuid.New(), TriggerType: models.TriggerCheckout, ExpiresAt: &later}
	store.Insert(context.Background(), first)
	store.Insert(context.Background(), second)

	n, err := store.ExpireSweep(context.Background(), start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("ExpireSweep failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one expired suggestion, got %d", n)
	}

	stored, _ := store.GetByID(context.Background(), second.ID)
	if stored.Status != models.SuggestionPending {
		t.Errorf("future suggestion expired early: %s", stored.Status)
	}
}
