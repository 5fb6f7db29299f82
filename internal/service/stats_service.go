package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mark-ai1/Break-Management/internal/clock"
	"github.com/mark-ai1/Break-Management/internal/domain/breaks"
)

// DefaultWindow is the default reporting window.
const DefaultWindow = 24 * time.Hour

// Counters holds the per-category outcome counts for one reporting
// window. Monotonically non-decreasing within a window.
type Counters struct {
	Started        int64 `json:"started"`
	ReturnedOnTime int64 `json:"returned_on_time"`
	Late           int64 `json:"late"`
	Fined          int64 `json:"fined"`
}

// StatsService aggregates engine transition events into per-category
// counters over the current reporting window. One mutex makes window
// resets and increments mutually exclusive.
type StatsService struct {
	mu          sync.Mutex
	counters    map[string]*Counters
	windowStart time.Time

	window time.Duration
	clock  clock.Clock
	logger *slog.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once // Prevent double-close panic on Stop()
}

// NewStatsService creates an aggregator with zeroed counters for every
// registered category, so snapshots report all categories from the
// first request on.
func NewStatsService(registry *breaks.Registry, clk clock.Clock, logger *slog.Logger, window time.Duration) *StatsService {
	if window == 0 {
		window = DefaultWindow
	}
	s := &StatsService{
		counters:    make(map[string]*Counters),
		windowStart: clk.Now(),
		window:      window,
		clock:       clk,
		logger:      logger,
		stopChan:    make(chan struct{}),
	}
	for _, name := range registry.Names() {
		s.counters[name] = &Counters{}
	}
	return s
}

// HandleEvent increments the current window's counters.
// Late counts once per session: the engine emits EventOverdue only on
// the first Active -> Overdue transition.
func (s *StatsService) HandleEvent(evt breaks.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.counters[evt.Category]
	if c == nil {
		c = &Counters{}
		s.counters[evt.Category] = c
	}

	switch evt.Kind {
	case breaks.EventStarted:
		c.Started++
	case breaks.EventReturnedOnTime:
		c.ReturnedOnTime++
	case breaks.EventOverdue:
		c.Late++
	case breaks.EventFined:
		c.Fined++
	}
}

// Snapshot returns a copy of all counters keyed by category.
func (s *StatsService) Snapshot() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Counters, len(s.counters))
	for name, c := range s.counters {
		out[name] = *c
	}
	return out
}

// WindowStart returns when the current reporting window began.
func (s *StatsService) WindowStart() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windowStart
}

// Reset zeroes all counters and starts a new window. Atomic with
// respect to in-flight increments.
func (s *StatsService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name := range s.counters {
		s.counters[name] = &Counters{}
	}
	s.windowStart = s.clock.Now()
}

// StartWindowReset starts the background goroutine that resets the
// counters at every window boundary. Call Stop to stop it gracefully.
func (s *StatsService) StartWindowReset(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.window)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.Reset()
				s.logger.Info("reporting window reset", "window", s.window.String())
			}
		}
	}()
}

// Stop stops the window reset goroutine and waits for it to exit.
// Safe to call multiple times.
func (s *StatsService) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

// Compile-time interface verification.
var _ Subscriber = (*StatsService)(nil)
