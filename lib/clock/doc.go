// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source that stage
// timelines are measured against.
//
// Production code accepts a Clock instead of calling time.Now,
// time.After, time.NewTimer, or time.Sleep directly. In production,
// Real() provides the standard library behavior. In tests, Fake()
// provides a deterministic clock that advances only when Advance is
// called.
//
// # Timelines
//
// [Stopwatch] pins an epoch and answers elapsed-time queries in whole
// milliseconds. The stage scheduler starts one when a run begins and
// expresses every scheduled onset and end as an offset from it.
//
// # FakeClock Synchronization
//
// When a goroutine calls Sleep, After, or NewTimer on a FakeClock, it
// registers a pending waiter. Use WaitForTimers to block until a
// specific number of waiters are registered before calling Advance.
// This eliminates the race between the scheduler starting a stage wait
// and the test advancing time past the stage's end.
package clock
