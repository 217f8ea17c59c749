// Package debounce coalesces rapid ledger mutations into infrequent
// persistence calls. A scheduler owns at most one pending timer;
// re-scheduling atomically cancels and replaces it, so only the most
// recent snapshot is ever persisted.
package debounce

import (
	"context"
	"sync"
	"time"

	"jeongsan/internal/core"
	applog "jeongsan/internal/log"
)

// DefaultInterval is how long the scheduler waits for the user to stop
// typing before it persists.
const DefaultInterval = 1500 * time.Millisecond

// SaveFunc persists the coalesced snapshot when the countdown elapses.
type SaveFunc func(ctx context.Context, ledger core.Ledger) error

type Scheduler struct {
	interval time.Duration
	save     SaveFunc
	logger   *applog.Logger

	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64
	latest core.Ledger
	closed bool
}

func NewScheduler(interval time.Duration, save SaveFunc, logger *applog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentDebounce})
	}
	return &Scheduler{
		interval: interval,
		save:     save,
		logger:   logger.WithComponent(applog.ComponentDebounce),
	}
}

// Schedule records the snapshot and (re)starts the countdown. Any pending
// countdown is cancelled first, with no side effect from the cancelled
// invocation. The snapshot is deep-copied so the caller may keep mutating
// its ledger.
func (s *Scheduler) Schedule(ledger core.Ledger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.latest = ledger.Clone()
	if s.timer != nil {
		s.timer.Stop()
	}
	// The generation ties each armed timer to its countdown. A timer can
	// expire and have its callback already dispatched while Schedule is
	// replacing it; the stale callback sees a newer generation and bails,
	// so one countdown never produces two saves.
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.interval, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	snapshot := s.latest
	s.timer = nil
	s.mu.Unlock()

	ctx := context.Background()
	if err := s.save(ctx, snapshot); err != nil {
		s.logger.ErrorContext(ctx, "Debounced save failed", "error", err)
	}
}

// Flush runs any pending save immediately instead of waiting for the
// countdown. Used on graceful shutdown so the last edits are not lost.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer == nil || !s.timer.Stop() {
		s.mu.Unlock()
		return nil
	}
	snapshot := s.latest
	s.timer = nil
	s.mu.Unlock()
	return s.save(ctx, snapshot)
}

// Stop cancels any pending countdown and rejects further scheduling.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Pending reports whether a countdown is currently armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}
