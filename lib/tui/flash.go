// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"time"
)

// FlashDecayDuration is how long the cue box glows after a response.
// The flash starts at 1.0 and decays linearly to 0.0.
const FlashDecayDuration = 400 * time.Millisecond

// FlashTickInterval is the re-render interval while a flash is live.
const FlashTickInterval = 50 * time.Millisecond

// FlashKind selects the flash color.
type FlashKind int

const (
	// FlashResponse is a response during a marked stage.
	FlashResponse FlashKind = iota
	// FlashLate is a response with no stage on screen: before the
	// first stage, between runs, or after the timeline finished.
	FlashLate
)

// FlashTracker records the last response for animated feedback. A new
// response restarts the decay.
type FlashTracker struct {
	ignition time.Time
	kind     FlashKind
	lit      bool
}

// Ignite records a response at now.
func (tracker *FlashTracker) Ignite(kind FlashKind, now time.Time) {
	tracker.ignition = now
	tracker.kind = kind
	tracker.lit = true
}

// Intensity returns 1.0 at ignition, decaying linearly to 0.0 over
// [FlashDecayDuration]. Zero when nothing was ignited.
func (tracker *FlashTracker) Intensity(now time.Time) float64 {
	if !tracker.lit {
		return 0.0
	}
	elapsed := now.Sub(tracker.ignition)
	if elapsed < 0 {
		return 1.0
	}
	if elapsed >= FlashDecayDuration {
		return 0.0
	}
	return 1.0 - float64(elapsed)/float64(FlashDecayDuration)
}

// Kind returns the kind of the last flash. Only meaningful while
// Intensity is above zero.
func (tracker *FlashTracker) Kind() FlashKind { return tracker.kind }

// Live reports whether the flash still needs animation ticks. A fully
// decayed flash is cleared.
func (tracker *FlashTracker) Live(now time.Time) bool {
	if tracker.lit && now.Sub(tracker.ignition) >= FlashDecayDuration {
		tracker.lit = false
	}
	return tracker.lit
}
