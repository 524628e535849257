// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package program schedules an experiment timeline against a clock.
//
// A [Program] drains its providers end to end on a single scheduling
// goroutine and reports every stage to a [Session]:
//
//	EmitMarker -> StageEntered -> (wait) -> StageExited -> next stage
//
// Notifications are strictly ordered: a stage's exit always precedes
// the next stage's enter, and every enter has a matching exit even
// when the run is aborted mid-stage.
//
// # Timing
//
// Stage onsets are offsets in whole milliseconds from the epoch
// recorded by Start. Each stage starts at the previous stage's
// scheduled end, not at the instant the previous wait returned, so
// wake-up latency never accumulates. A stage popped after its
// scheduled end has passed is entered and exited immediately; the
// lateness is added to [Result.Slip] and the timeline continues from
// the current time.
//
// # Lifecycle
//
// NotStarted -> Running -> Completed | Aborted. Abort, context
// cancellation, and provider errors all end in Aborted with the cause
// in [Result.Err]. Start and Abort are no-ops once the program is
// terminal.
package program
