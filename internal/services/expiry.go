package services

import (
	"context"
	"log"
	"time"
)

const expirySweepInterval = 1 * time.Minute

// ExpirySweeper autonomously flips pending suggestions past their expires_at
// to expired, so a plan proposal from the morning cannot be accepted at
// midnight.
type ExpirySweeper struct {
	suggestions SuggestionStore
	stopChan    chan struct{}
}

func NewExpirySweeper(suggestions SuggestionStore) *ExpirySweeper {
	return &ExpirySweeper{
		suggestions: suggestions,
		stopChan:    make(chan struct{}),
	}
}

func (s *ExpirySweeper) Start() {
	go s.loop()
	log.Printf("Suggestion expiry sweeper started")
}

func (s *ExpirySweeper) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *ExpirySweeper) loop() {
	// Run on startup as well as by interval.
	s.sweep(context.Background(), time.Now().UTC())

	ticker := time.NewTicker(expirySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep(context.Background(), time.Now().UTC())
		}
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context, now time.Time) {
	n, err := s.suggestions.ExpireSweep(ctx, now)
	if err != nil {
		log.Printf("expiry sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("expiry sweep: %d suggestion(s) expired", n)
	}
}
