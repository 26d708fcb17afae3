package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper removes stale entries as of now and reports how many it removed
type Sweeper interface {
	Sweep(now time.Time) int
}

// SweepManager periodically runs a Sweeper until stopped
type SweepManager struct {
	sweeper  Sweeper
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewSweepManager creates a new sweep manager
func NewSweepManager(sweeper Sweeper, logger *slog.Logger, interval time.Duration, now func() time.Time) *SweepManager {
	if now == nil {
		now = time.Now
	}
	return &SweepManager{
		sweeper:  sweeper,
		logger:   logger,
		interval: interval,
		now:      now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the sweep on every tick. It blocks until Stop is called or ctx is cancelled.
func (sm *SweepManager) Start(ctx context.Context) {
	defer close(sm.doneCh)

	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sm.RunOnce()
		case <-sm.stopCh:
			sm.logger.Info("sweep manager stopped")
			return
		case <-ctx.Done():
			sm.logger.Info("sweep manager context cancelled")
			return
		}
	}
}

// RunOnce performs a single sweep pass
func (sm *SweepManager) RunOnce() int {
	removed := sm.sweeper.Sweep(sm.now())
	if removed > 0 {
		sm.logger.Info("stale failure records evicted", slog.Int("removed", removed))
	}
	return removed
}

// Stop signals the sweep loop to exit. Safe to call more than once.
func (sm *SweepManager) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.stopCh)
	})
}

// Done is closed once Start has returned
func (sm *SweepManager) Done() <-chan struct{} {
	return sm.doneCh
}
