package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"focustrack-backend/internal/models"
	"focustrack-backend/internal/repository"
)

// In-memory stores with the same CAS semantics as internal/repository, so the
// services can be exercised without postgres.

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.WorkSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[uuid.UUID]*models.WorkSession)}
}

func copySession(s *models.WorkSession) *models.WorkSession {
	cp := *s
	return &cp
}

func (f *fakeSessionStore) Insert(ctx context.Context, s *models.WorkSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.sessions {
		if existing.UserID == s.UserID && existing.EndedAt == nil {
			return repository.ErrActiveSessionExists
		}
	}
	s.ID = uuid.New()
	s.Version = 1
	s.CreatedAt = s.StartedAt
	f.sessions[s.ID] = copySession(s)
	return nil
}

func (f *fakeSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.WorkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copySession(s), nil
}

func (f *fakeSessionStore) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.WorkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.sessions {
		if s.UserID == userID && s.EndedAt == nil {
			return copySession(s), nil
		}
	}
	return nil, nil
}

func (f *fakeSessionStore) GetUnresponsiveByUser(ctx context.Context, userID uuid.UUID) (*models.WorkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.sessions {
		if s.UserID == userID && s.EndedAt == nil && s.MarkedUnresponsiveAt != nil {
			return copySession(s), nil
		}
	}
	return nil, nil
}

func (f *fakeSessionStore) UpdateCAS(ctx context.Context, s *models.WorkSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.sessions[s.ID]
	if !ok || stored.Version != s.Version {
		return repository.ErrVersionConflict
	}
	s.Version++
	f.sessions[s.ID] = copySession(s)
	return nil
}

type fakeTaskStore struct {
	tasks map[uuid.UUID]*models.Task
}

func newFakeTaskStore(tasks ...*models.Task) *fakeTaskStore {
	f := &fakeTaskStore{tasks: make(map[uuid.UUID]*models.Task)}
	for _, t := range tasks {
		f.tasks[t.ID] = t
	}
	return f
}

func (f *fakeTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t, nil
}

type fakeUserStore struct {
	users map[uuid.UUID]*models.User
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	f := &fakeUserStore{users: make(map[uuid.UUID]*models.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

type fakeSuggestionStore struct {
	mu          sync.Mutex
	suggestions map[uuid.UUID]*models.RescheduleSuggestion
	decisions   []*models.RescheduleDecision
	now         time.Time
}

func newFakeSuggestionStore(now time.Time) *fakeSuggestionStore {
	return &fakeSuggestionStore{
		suggestions: make(map[uuid.UUID]*models.RescheduleSuggestion),
		now:         now,
	}
}

func copySuggestion(sg *models.RescheduleSuggestion) *models.RescheduleSuggestion {
	cp := *sg
	return &cp
}

func (f *fakeSuggestionStore) Insert(ctx context.Context, sg *models.RescheduleSuggestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sg.ID = uuid.New()
	sg.Status = models.SuggestionPending
	sg.CreatedAt = f.now
	sg.Version = 1
	f.suggestions[sg.ID] = copySuggestion(sg)
	return nil
}

func (f *fakeSuggestionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.RescheduleSuggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sg, ok := f.suggestions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copySuggestion(sg), nil
}

func (f *fakeSuggestionStore) ListPendingByUser(ctx context.Context, userID uuid.UUID) ([]*models.RescheduleSuggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.RescheduleSuggestion
	for _, sg := range f.suggestions {
		if sg.UserID == userID && sg.Status == models.SuggestionPending {
			out = append(out, copySuggestion(sg))
		}
	}
	return out, nil
}

func (f *fakeSuggestionStore) DecideCAS(ctx context.Context, sg *models.RescheduleSuggestion, status string, decidedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.suggestions[sg.ID]
	if !ok || stored.Version != sg.Version || stored.Status != models.SuggestionPending {
		return repository.ErrVersionConflict
	}
	stored.Status = status
	stored.DecidedAt = &decidedAt
	stored.Version++

	sg.Status = status
	sg.DecidedAt = &decidedAt
	sg.Version++
	return nil
}

func (f *fakeSuggestionStore) ExpireSweep(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for _, sg := range f.suggestions {
		if sg.Status == models.SuggestionPending && sg.ExpiresAt != nil && sg.ExpiresAt.Before(now) {
			sg.Status = models.SuggestionExpired
			sg.Version++
			n++
		}
	}
	return n, nil
}

func (f *fakeSuggestionStore) InsertDecision(ctx context.Context, d *models.RescheduleDecision) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	d.ID = uuid.New()
	f.decisions = append(f.decisions, d)
	return nil
}

type fakeScheduleStore struct {
	mu        sync.Mutex
	schedules map[string][]models.ScheduleAssignment
}

func newFakeScheduleStore() *fakeScheduleStore {
	return &fakeScheduleStore{schedules: make(map[string][]models.ScheduleAssignment)}
}

func scheduleKey(userID uuid.UUID, date string) string {
	return userID.String() + "/" + date
}

func (f *fakeScheduleStore) GetForDate(ctx context.Context, userID uuid.UUID, date string) (*models.DailySchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	assignments, ok := f.schedules[scheduleKey(userID, date)]
	if !ok {
		return nil, nil
	}
	return &models.DailySchedule{UserID: userID, Date: date, Assignments: assignments}, nil
}

func (f *fakeScheduleStore) PutForDate(ctx context.Context, userID uuid.UUID, date string, assignments []models.ScheduleAssignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.schedules[scheduleKey(userID, date)] = assignments
	return nil
}

// fakePublisher records every pushed message.
type fakePublisher struct {
	mu       sync.Mutex
	messages []models.WSMessage
}

func (f *fakePublisher) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakePublisher) notifications() []models.NotificationMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.NotificationMessage
	for _, msg := range f.messages {
		if n, ok := msg.Payload.(models.NotificationMessage); ok {
			out = append(out, n)
		}
	}
	return out
}

type fakeOptimizer struct {
	proposal []models.ScheduleAssignment
	err      error
	calls    int
}

func (f *fakeOptimizer) Propose(ctx context.Context, req OptimizeRequest) ([]models.ScheduleAssignment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.proposal, nil
}

type fakeEnqueuer struct {
	mu   sync.Mutex
	jobs []models.RecoveryJob
}

func (f *fakeEnqueuer) EnqueueRecovery(ctx context.Context, job models.RecoveryJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.jobs = append(f.jobs, job)
	return nil
}

type fakeSuggestionCreator struct {
	suggestion *models.RescheduleSuggestion
	err        error
	calls      int
	lastNext   *uuid.UUID
}

func (f *fakeSuggestionCreator) CreateForSession(ctx context.Context, s *models.WorkSession, triggerType string, nextTaskID *uuid.UUID) (*models.RescheduleSuggestion, error) {
	f.calls++
	f.lastNext = nextTaskID
	if f.err != nil {
		return nil, f.err
	}
	return f.suggestion, nil
}
