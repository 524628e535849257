// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bureau-foundation/stager/lib/marker"
)

// Flags modify how the scheduler treats a stage.
type Flags uint8

const (
	// FlagPreload marks a silent preparation stage: the host warms up
	// its content (images, remote handshakes) while the scheduler
	// moves straight on. Preload stages carry no marker and no
	// duration.
	FlagPreload Flags = 1 << iota

	// FlagNotRecorded marks a stage that is timed and notified like
	// any other but whose marker is not forwarded into the
	// acquisition stream.
	FlagNotRecorded
)

// String lists the set flags, "none" when empty.
func (f Flags) String() string {
	var names []string
	if f&FlagPreload != 0 {
		names = append(names, "preload")
	}
	if f&FlagNotRecorded != 0 {
		names = append(names, "not-recorded")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

var (
	// ErrPreloadMarker is returned when a preload stage is given a
	// marker. Preload stages are preparation, not recorded events.
	ErrPreloadMarker = errors.New("stage: preload stage cannot carry a marker")

	// ErrPreloadDuration is returned when a preload stage is given a
	// duration. The scheduler never waits on preload stages.
	ErrPreloadDuration = errors.New("stage: preload stage cannot have a duration")
)

// Stage is one unit of an experiment timeline. Stages are values:
// once constructed they never change, so the scheduler, the host, and
// a remote bridge can all hold the same Stage without coordination.
//
// The zero Stage is an instantaneous, markerless, recorded stage.
type Stage struct {
	marker     marker.Code
	hasMarker  bool
	cue        any
	durationMS uint64
	flags      Flags
}

// Spec is the full description of a stage, validated by New. The
// remote bridge builds stages from peer-supplied Specs.
type Spec struct {
	Marker      *marker.Code
	Cue         any
	DurationMS  uint64
	Preload     bool
	NotRecorded bool
}

// New builds a Stage from spec, rejecting preload stages that carry a
// marker or a duration.
func New(spec Spec) (Stage, error) {
	stage := Stage{cue: spec.Cue, durationMS: spec.DurationMS}
	if spec.NotRecorded {
		stage.flags |= FlagNotRecorded
	}
	if spec.Preload {
		if spec.Marker != nil {
			return Stage{}, ErrPreloadMarker
		}
		if spec.DurationMS != 0 {
			return Stage{}, ErrPreloadDuration
		}
		stage.flags |= FlagPreload
	}
	if spec.Marker != nil {
		stage.marker = *spec.Marker
		stage.hasMarker = true
	}
	return stage, nil
}

// Timed returns a markerless stage lasting durationMS milliseconds.
func Timed(durationMS uint64) Stage {
	return Stage{durationMS: durationMS}
}

// Marked returns a stage carrying code and lasting durationMS
// milliseconds. A zero duration emits the marker without waiting.
func Marked(code marker.Code, durationMS uint64) Stage {
	return Stage{marker: code, hasMarker: true, durationMS: durationMS}
}

// Preload returns a preparation stage for cue.
func Preload(cue any) Stage {
	return Stage{cue: cue, flags: FlagPreload}
}

// WithCue returns a copy of s carrying cue.
func (s Stage) WithCue(cue any) Stage {
	s.cue = cue
	return s
}

// WithMarker returns a copy of s carrying code. Fails with
// ErrPreloadMarker for preload stages.
func (s Stage) WithMarker(code marker.Code) (Stage, error) {
	if s.IsPreload() {
		return Stage{}, ErrPreloadMarker
	}
	s.marker = code
	s.hasMarker = true
	return s, nil
}

// NotRecorded returns a copy of s whose marker is kept out of the
// acquisition stream.
func (s Stage) NotRecorded() Stage {
	s.flags |= FlagNotRecorded
	return s
}

// Marker returns the stage's marker code and whether it has one.
func (s Stage) Marker() (marker.Code, bool) { return s.marker, s.hasMarker }

// Cue returns the experiment-specific payload. The engine never
// inspects it.
func (s Stage) Cue() any { return s.cue }

// DurationMS returns the stage duration in whole milliseconds.
func (s Stage) DurationMS() uint64 { return s.durationMS }

// Duration returns the stage duration as a time.Duration.
func (s Stage) Duration() time.Duration {
	return time.Duration(s.durationMS) * time.Millisecond
}

// Flags returns the stage flags.
func (s Stage) Flags() Flags { return s.flags }

// IsPreload reports whether s is a preparation stage.
func (s Stage) IsPreload() bool { return s.flags&FlagPreload != 0 }

// IsRecorded reports whether the scheduler forwards the marker of s
// into the acquisition stream.
func (s Stage) IsRecorded() bool { return s.flags&FlagNotRecorded == 0 }

// String formats the stage for logs.
func (s Stage) String() string {
	var builder strings.Builder
	builder.WriteString("stage{")
	if s.hasMarker {
		fmt.Fprintf(&builder, "marker=%d ", s.marker)
	}
	fmt.Fprintf(&builder, "duration=%dms", s.durationMS)
	if s.flags != 0 {
		fmt.Fprintf(&builder, " flags=%s", s.flags)
	}
	if s.cue != nil {
		fmt.Fprintf(&builder, " cue=%v", s.cue)
	}
	builder.WriteString("}")
	return builder.String()
}
