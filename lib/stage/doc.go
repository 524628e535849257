// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package stage defines the unit of an experiment timeline and the
// providers that produce timelines lazily.
//
// A [Stage] carries an optional marker code, an opaque cue, a duration
// in whole milliseconds, and flags ([FlagPreload], [FlagNotRecorded]).
// Stages are immutable values.
//
// A [Provider] yields stages one at a time until [ErrExhausted]. The
// building blocks compose into whole timelines:
//
//	timeline := stage.Concat(
//	    stage.Preparation(),
//	    stage.Mark(marker.ExperimentStart),
//	    trials, // a *stage.RepeatingProvider or a generated stream
//	    stage.Mark(marker.ExperimentEnd),
//	    stage.Delay(1000),
//	)
//
// Providers that need configuration ([Repeat], the trial generator in
// lib/trial) validate it at construction and return a [*ConfigError],
// so an invalid timeline is rejected before anything is scheduled.
package stage
