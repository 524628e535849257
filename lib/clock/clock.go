// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the single time source a stage timeline is measured
// against. Production code injects Real(); tests inject Fake() so that
// stage durations elapse only when the test says so.
//
// Scheduling code must not call time.Now, time.After, time.NewTimer,
// or time.Sleep directly. Every wait that bounds a stage duration goes
// through a Clock so that marker timing can be verified exactly.
type Clock interface {
	// Now returns the current time. Readings from Real carry Go's
	// monotonic component, so differences between two readings are
	// immune to wall-clock adjustments.
	Now() time.Time

	// After returns a channel that receives the current time after
	// duration d elapses. If d <= 0, the channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// NewTimer returns a one-shot Timer that delivers on C after d.
	// Unlike After, the pending wait can be released early with Stop,
	// which the scheduler does when a run is aborted mid-stage.
	NewTimer(d time.Duration) *Timer

	// Sleep pauses the current goroutine for at least duration d.
	Sleep(d time.Duration)
}

// Timer is a cancellable one-shot wait. Read the fire time from C.
type Timer struct {
	// C delivers the fire time. Buffered with capacity 1.
	C <-chan time.Time

	stopFunc func() bool
}

// Stop prevents the Timer from firing. Returns true if the call stops
// the timer, false if the timer has already fired or been stopped.
// Stop does not close C.
func (t *Timer) Stop() bool { return t.stopFunc() }
