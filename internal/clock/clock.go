// Package clock provides a cancellable-timer abstraction so components that
// schedule delayed work (save debouncing, silence detection, notification
// expiry) can be driven deterministically in tests.
package clock

import "time"

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop cancels the timer. It reports whether the call prevented the
	// callback from firing.
	Stop() bool
}

// Clock schedules delayed callbacks and reads the current time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// System is the wall-clock implementation.
type System struct{}

// NewSystem creates a wall-clock backed Clock.
func NewSystem() *System {
	return &System{}
}

// Now returns the current wall-clock time.
func (*System) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules fn to run after d.
func (*System) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
