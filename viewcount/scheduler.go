package viewcount

import (
	"context"
	"sync"
	"time"
)

// Syncer is the sweep a Scheduler runs.
type Syncer interface {
	Sync(ctx context.Context)
}

// Scheduler runs a Syncer on a fixed interval in its own goroutine.
type Scheduler struct {
	syncer   Syncer
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(syncer Syncer, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{syncer: syncer, interval: interval}
}

// Start launches the ticker loop. Calling Start on a running scheduler does
// nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncer.Sync(ctx)
		}
	}
}

// Stop ends the loop, waits for an in-progress sweep and runs one final
// sweep so counters cached since the last tick reach the database.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	ctx, release := context.WithTimeout(context.Background(), 30*time.Second)
	defer release()
	s.syncer.Sync(ctx)
}
