package index

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultRefreshInterval is used when the configured interval is zero or
// negative.
const DefaultRefreshInterval = 5 * time.Minute

// Refresher runs one index refresh cycle.
type Refresher interface {
	Refresh() (int, time.Duration, error)
}

// Scheduler drives periodic refresh cycles on a single background
// goroutine. Cancellation is observed only between cycles, at the wait
// point; a started cycle always runs to completion.
type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler. An interval <= 0 is coerced to the
// default.
func NewScheduler(r Refresher, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Scheduler{refresher: r, interval: interval, logger: logger}
}

// Start launches the background loop. Calling Start while a loop is
// already active is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go s.run(ctx, done)
}

// Stop signals cancellation and waits for the current cycle to finish
// naturally. Safe to call multiple times and without a prior Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		count, elapsed, err := s.refresher.Refresh()
		if err != nil {
			// A cycle failure is never fatal; retry at the next interval.
			s.logger.Error("scheduler: refresh cycle failed", slog.String("error", err.Error()))
		} else {
			s.logger.Info("scheduler: index refreshed",
				slog.Int("documents", count),
				slog.Duration("elapsed", elapsed))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.interval):
		}
	}
}
