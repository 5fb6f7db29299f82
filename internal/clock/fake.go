package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced Clock for tests. Callbacks scheduled
// with AfterFunc fire synchronously inside Advance, in deadline order,
// on the caller's goroutine. Safe for concurrent use.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
	clock    *Fake
}

// NewFake returns a fake clock starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start.UTC()}
}

// Now returns the fake's current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc schedules fn at now+d. It never fires before Advance
// moves the clock past the deadline.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{deadline: f.now.Add(d), fn: fn, clock: f}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the clock forward and fires every due callback in
// deadline order. Callbacks run without the clock lock held, so they
// may schedule further timers; a newly scheduled timer already due is
// picked up in the same Advance.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()

	for {
		t := f.nextDue()
		if t == nil {
			return
		}
		t.fn()
	}
}

// nextDue pops the earliest unfired, unstopped timer at or before now.
func (f *Fake) nextDue() *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()

	var due *fakeTimer
	for _, t := range f.timers {
		if t.stopped || t.fired || t.deadline.After(f.now) {
			continue
		}
		if due == nil || t.deadline.Before(due.deadline) {
			due = t
		}
	}
	if due != nil {
		due.fired = true
	}
	return due
}

// Pending returns how many timers are scheduled and not yet fired or
// stopped. Useful for asserting timeout scheduling in tests.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, t := range f.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Compile-time interface verification.
var _ Clock = (*Fake)(nil)
