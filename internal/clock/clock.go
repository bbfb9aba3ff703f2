// Package clock provides the single logical timeline the test engine runs on.
//
// Every callback handed to a Scheduler runs on that scheduler's timeline and
// never concurrently with another callback of the same scheduler. Timers,
// external events (key presses, stop requests) and the engine's own state
// transitions are therefore serialised without any locking in the engine.
package clock

import "time"

// Scheduler runs callbacks one at a time on a single logical timeline.
type Scheduler interface {
	// Now returns the monotonic time elapsed since the scheduler's epoch.
	Now() time.Duration
	// AfterFunc schedules fn to run on the timeline once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer
	// Post schedules fn to run on the timeline as soon as possible. It
	// returns false if the scheduler no longer accepts work.
	Post(fn func()) bool
}

// Timer is a pending callback created by Scheduler.AfterFunc.
type Timer interface {
	// Stop prevents the callback from running. It returns false if the
	// callback already ran or the timer was already stopped. Once Stop
	// returns, the callback is guaranteed not to run, even if it had already
	// been queued on the timeline.
	Stop() bool
}
