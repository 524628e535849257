// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stage

import (
	"context"

	"github.com/bureau-foundation/stager/lib/marker"
)

// StaticProvider returns the stages of a fixed list in order.
type StaticProvider struct {
	stages []Stage
	next   int
}

// Static returns a provider over a copy of stages.
func Static(stages ...Stage) *StaticProvider {
	copied := make([]Stage, len(stages))
	copy(copied, stages)
	return &StaticProvider{stages: copied}
}

// Next returns the next stage of the list.
func (p *StaticProvider) Next(context.Context) (Stage, error) {
	if p.next >= len(p.stages) {
		return Stage{}, ErrExhausted
	}
	stage := p.stages[p.next]
	p.next++
	return stage, nil
}

// Remaining returns the number of stages not yet returned.
func (p *StaticProvider) Remaining() int { return len(p.stages) - p.next }

// Single returns a one-shot provider yielding stage.
func Single(stage Stage) *StaticProvider { return Static(stage) }

// Mark returns a one-shot provider yielding a zero-duration stage
// carrying code. Timelines use it to bracket phases (experiment start
// and end) without any payload.
func Mark(code marker.Code) *StaticProvider {
	return Single(Marked(code, 0))
}

// Delay returns a one-shot provider yielding a markerless stage of
// durationMS milliseconds, for leading and trailing pauses.
func Delay(durationMS uint64) *StaticProvider {
	return Single(Timed(durationMS))
}

// Preparation returns a provider of preload stages, one per cue. With
// no cues it yields a single empty preload stage, which still gives
// the host one preparation callback before the first recorded stage.
func Preparation(cues ...any) *StaticProvider {
	if len(cues) == 0 {
		return Single(Preload(nil))
	}
	stages := make([]Stage, len(cues))
	for i, cue := range cues {
		stages[i] = Preload(cue)
	}
	return &StaticProvider{stages: stages}
}
