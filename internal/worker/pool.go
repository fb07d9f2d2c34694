package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"focustrack-backend/internal/models"
	"focustrack-backend/internal/repository"
	"focustrack-backend/internal/services"
)

const recoveryQueue = "queue:overdue-recovery"

// Pool consumes overdue-recovery jobs: when a session goes unresponsive, a
// job is enqueued and a worker asks the optimizer for a salvage plan for the
// rest of the day. Jobs are idempotent — a worker re-checks the session
// before acting, so a job raced by a late checkout is simply dropped.
type Pool struct {
	redis       *redis.Client
	sessions    services.SessionStore
	reschedule  *services.RescheduleService
	workerCount int
	stopChan    chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	sessions services.SessionStore,
	reschedule *services.RescheduleService,
	workerCount int,
) *Pool {
	return &Pool{
		redis:       redisClient,
		sessions:    sessions,
		reschedule:  reschedule,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}
	log.Printf("Started %d recovery worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

// EnqueueRecovery implements services.RecoveryEnqueuer.
func (p *Pool) EnqueueRecovery(ctx context.Context, job models.RecoveryJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return p.redis.LPush(ctx, recoveryQueue, data).Err()
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Recovery worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, recoveryQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}
		if len(result) < 2 {
			continue
		}

		var job models.RecoveryJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Recovery worker %d: failed to parse job: %v", id, err)
			continue
		}

		// Try to acquire lock
		lockKey := fmt.Sprintf("recovery_lock:%s", job.ID)
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 5*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		if procErr := p.process(ctx, &job); procErr != nil {
			p.handleFailure(ctx, &job, procErr)
		}

		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) process(ctx context.Context, job *models.RecoveryJob) error {
	session, err := p.sessions.GetByID(ctx, job.SessionID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Printf("Recovery job %s: session %s not found, dropping", job.ID, job.SessionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if !shouldRecover(session) {
		log.Printf("Recovery job %s: session %s no longer needs recovery, dropping", job.ID, job.SessionID)
		return nil
	}

	suggestion, err := p.reschedule.CreateForSession(ctx, session, models.TriggerOverdueRecovery, nil)
	if err != nil {
		return fmt.Errorf("failed to build recovery suggestion: %w", err)
	}
	if suggestion == nil {
		log.Printf("Recovery job %s: optimizer proposed no changes", job.ID)
		return nil
	}

	log.Printf("Recovery job %s: suggestion %s created for session %s", job.ID, suggestion.ID, session.ID)
	return nil
}

// shouldRecover reports whether a recovery job is still applicable: the
// session must still be open, unresponsive, and not paused.
func shouldRecover(s *models.WorkSession) bool {
	return s != nil && !s.IsEnded() && !s.IsPaused() && s.MarkedUnresponsiveAt != nil
}

// handleFailure requeues once; a job that fails twice is dropped, since the
// expiry sweeper and the user's own checkout both provide fallbacks.
func (p *Pool) handleFailure(ctx context.Context, job *models.RecoveryJob, procErr error) {
	if job.Attempts >= 1 {
		log.Printf("Recovery job %s failed twice, dropping: %v", job.ID, procErr)
		return
	}
	job.Attempts++
	log.Printf("Recovery job %s failed, requeueing: %v", job.ID, procErr)
	if err := p.EnqueueRecovery(ctx, *job); err != nil {
		log.Printf("Recovery job %s: requeue failed: %v", job.ID, err)
	}
}
