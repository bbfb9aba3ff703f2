// Package engine runs one continuous performance test session.
//
// A Session is driven by a clock.Scheduler. The trial generator's tick, the
// presenter's exposure timeout, the session countdown and every key press
// are callbacks on that scheduler's single timeline, so the session state
// is only ever touched by one callback at a time. Public methods hand their
// work to the timeline and never touch the state directly.
//
// Lifecycle:
//
//	Verifying --Authorize--> Briefed --Begin--> Running --(duration | trial count | Stop | error)--> Completed
//
// Completed is terminal. The transition into it cancels every pending timer,
// scores the recorded stream and hands the outcome off, all inside a single
// callback, so it happens exactly once whichever trigger fires first.
package engine
