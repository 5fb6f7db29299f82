// Package clock abstracts time for the break engine so timeout
// behavior is deterministic in tests. The real implementation defers
// to the time package; the fake advances manually.
package clock

import "time"

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing. Reports whether it was
	// stopped before firing.
	Stop() bool
}

// Clock supplies the current time and schedules delayed callbacks.
type Clock interface {
	// Now returns the current time in UTC.
	Now() time.Time
	// AfterFunc runs fn in its own goroutine after d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer
}

type realClock struct{}

// New returns a Clock backed by the time package.
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
