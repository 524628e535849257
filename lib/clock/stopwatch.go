// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Stopwatch measures elapsed time from a fixed epoch on a Clock. A
// stage timeline keeps one Stopwatch for its whole run: every
// scheduled onset and end is an offset from the same epoch, so
// rounding never accumulates from one stage to the next.
type Stopwatch struct {
	clock Clock
	epoch time.Time
}

// StartStopwatch records clock.Now() as the epoch.
func StartStopwatch(clock Clock) Stopwatch {
	return Stopwatch{clock: clock, epoch: clock.Now()}
}

// Epoch returns the instant the stopwatch was started.
func (s Stopwatch) Epoch() time.Time { return s.epoch }

// Elapsed returns the time since the epoch.
func (s Stopwatch) Elapsed() time.Duration {
	return s.clock.Now().Sub(s.epoch)
}

// ElapsedMS returns the whole milliseconds since the epoch, rounded
// down. A reading taken before the epoch (impossible with a monotonic
// clock, possible with a misused fake) reports zero.
func (s Stopwatch) ElapsedMS() uint64 {
	elapsed := s.Elapsed()
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / time.Millisecond)
}

// At returns the absolute instant of a timeline offset.
func (s Stopwatch) At(offsetMS uint64) time.Time {
	return s.epoch.Add(time.Duration(offsetMS) * time.Millisecond)
}

// Until returns how long remains until the timeline offset. The result
// is negative when the offset is already in the past.
func (s Stopwatch) Until(offsetMS uint64) time.Duration {
	return s.At(offsetMS).Sub(s.clock.Now())
}
