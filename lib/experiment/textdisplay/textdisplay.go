// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package textdisplay is the simplest paradigm: a fixed text shown
// for a number of trials separated by blank intervals.
package textdisplay

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/stager/lib/experiment"
	"github.com/bureau-foundation/stager/lib/marker"
	"github.com/bureau-foundation/stager/lib/stage"
)

// Name is the registry key.
const Name = "text-display"

// closingDelayMS is the pause after the end marker.
const closingDelayMS = 1000

// Params are the configurable settings.
type Params struct {
	TrialCount              int    `yaml:"trial_count"`
	TrialDurationMS         int64  `yaml:"trial_duration_ms"`
	InterStimulusIntervalMS int64  `yaml:"inter_stimulus_interval_ms"`
	Text                    string `yaml:"text"`
}

// DefaultParams returns the defaults.
func DefaultParams() Params {
	return Params{
		TrialCount:              5,
		TrialDurationMS:         10000,
		InterStimulusIntervalMS: 2000,
		Text:                    "Text",
	}
}

// Validate rejects non-positive counts and durations.
func (p Params) Validate() error {
	if p.TrialCount <= 0 {
		return &stage.ConfigError{Provider: Name, Field: "trial_count", Reason: fmt.Sprintf("must be positive, got %d", p.TrialCount)}
	}
	if p.TrialDurationMS <= 0 {
		return &stage.ConfigError{Provider: Name, Field: "trial_duration_ms", Reason: fmt.Sprintf("must be positive, got %d", p.TrialDurationMS)}
	}
	if p.InterStimulusIntervalMS <= 0 {
		return &stage.ConfigError{Provider: Name, Field: "inter_stimulus_interval_ms",
			Reason: fmt.Sprintf("must be positive, got %d", p.InterStimulusIntervalMS)}
	}
	return nil
}

// Factory builds text display experiments.
type Factory struct{}

func (Factory) Name() string { return Name }

func (Factory) Description() string { return "fixed text shown for a number of timed trials" }

// MarkerGroup reports no group: the paradigm uses the built-in trial
// markers.
func (Factory) MarkerGroup() (marker.Group, bool) { return marker.Group{}, false }

// Build decodes and validates params.
func (Factory) Build(node *yaml.Node, _ experiment.Environment) (experiment.Experiment, error) {
	params := DefaultParams()
	if err := experiment.DecodeParams(node, &params); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Experiment{params: params}, nil
}

// Experiment is a configured text display run.
type Experiment struct {
	params Params
}

func (e *Experiment) Name() string { return Name }

// Params returns the effective settings.
func (e *Experiment) Params() Params { return e.params }

// Timeline returns: a preparation stage, the start marker, the trials,
// the end marker, and a closing pause.
func (e *Experiment) Timeline(context.Context) (*experiment.Timeline, error) {
	trial := []stage.Stage{
		stage.Marked(marker.TrialStart, uint64(e.params.TrialDurationMS)).WithCue(e.params.Text),
		stage.Marked(marker.TrialEnd, uint64(e.params.InterStimulusIntervalMS)),
	}
	trials, err := stage.RepeatStatic(trial, e.params.TrialCount)
	if err != nil {
		return nil, err
	}
	return &experiment.Timeline{
		Providers: []stage.Provider{
			stage.Preparation(),
			stage.Mark(marker.ExperimentStart),
			trials,
			stage.Mark(marker.ExperimentEnd),
			stage.Delay(closingDelayMS),
		},
		UserMarker: marker.UserAction,
	}, nil
}
