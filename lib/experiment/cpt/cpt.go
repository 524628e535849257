// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cpt

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/stager/lib/experiment"
	"github.com/bureau-foundation/stager/lib/marker"
	"github.com/bureau-foundation/stager/lib/stage"
	"github.com/bureau-foundation/stager/lib/trial"
)

// Name is the registry key.
const Name = "cpt"

// Group is the marker slice owned by the paradigm.
var Group = marker.Group{
	Name: Name,
	Base: marker.CustomBase,
	Size: 100,
	Codes: map[marker.Code]string{
		marker.CustomBase + 10: "cpt-target-display",
		marker.CustomBase + 11: "cpt-non-target-display",
		marker.CustomBase + 20: "cpt-interval",
		marker.CustomBase + 30: "cpt-user-action",
	},
}

// Marker codes.
var (
	TargetDisplay    = Group.Offset(10)
	NonTargetDisplay = Group.Offset(11)
	Interval         = Group.Offset(20)
	UserAction       = Group.Offset(30)
)

// closingDelayMS is the pause after the end marker.
const closingDelayMS = 3000

// Params are the configurable settings.
type Params struct {
	// Mode is "pseudo-random" (exact target count) or "independent".
	Mode string `yaml:"mode"`

	// TargetRatePercent is the share of target letters, 0 to 100.
	TargetRatePercent float64 `yaml:"target_rate_percent"`

	LetterDurationMS        int64 `yaml:"letter_duration_ms"`
	InterStimulusIntervalMS int64 `yaml:"inter_stimulus_interval_ms"`

	// ExperimentDurationMS bounds the run by time. Ignored when
	// TrialCount is positive.
	ExperimentDurationMS int64 `yaml:"experiment_duration_ms"`
	TrialCount           int   `yaml:"trial_count"`

	// TargetLetter is shown on target trials; non-target trials show
	// a letter drawn from Distractors.
	TargetLetter string `yaml:"target_letter"`
	Distractors  string `yaml:"distractors"`
}

// DefaultParams returns the defaults: 70% targets, 500 ms letters,
// 1300 ms intervals, 8 minutes.
func DefaultParams() Params {
	return Params{
		Mode:                    trial.PseudoRandom.String(),
		TargetRatePercent:       70,
		LetterDurationMS:        500,
		InterStimulusIntervalMS: 1300,
		ExperimentDurationMS:    8 * 60 * 1000,
		TargetLetter:            "X",
		Distractors:             "ABCDEFGHIJKLMNOPQRSTUVWYZ",
	}
}

// trialConfig validates the settings and converts them to a trial
// stream configuration.
func (p Params) trialConfig() (trial.Config, error) {
	mode, err := trial.ParseMode(p.Mode)
	if err != nil {
		return trial.Config{}, &stage.ConfigError{Provider: Name, Field: "mode", Reason: err.Error()}
	}
	if p.TargetRatePercent < 0 || p.TargetRatePercent > 100 {
		return trial.Config{}, &stage.ConfigError{Provider: Name, Field: "target_rate_percent",
			Reason: fmt.Sprintf("%v is outside [0, 100]", p.TargetRatePercent)}
	}
	for _, setting := range []struct {
		field string
		value int64
	}{
		{"letter_duration_ms", p.LetterDurationMS},
		{"inter_stimulus_interval_ms", p.InterStimulusIntervalMS},
		{"experiment_duration_ms", p.ExperimentDurationMS},
	} {
		if setting.value < 0 {
			return trial.Config{}, &stage.ConfigError{Provider: Name, Field: setting.field, Reason: "must not be negative"}
		}
	}
	if p.TargetLetter == "" {
		return trial.Config{}, &stage.ConfigError{Provider: Name, Field: "target_letter", Reason: "must not be empty"}
	}
	if len(p.distractors()) == 0 {
		return trial.Config{}, &stage.ConfigError{Provider: Name, Field: "distractors",
			Reason: "needs at least one letter other than the target"}
	}
	config := trial.Config{
		TargetRate:              p.TargetRatePercent / 100,
		TrialDurationMS:         uint64(p.LetterDurationMS),
		InterStimulusIntervalMS: uint64(p.InterStimulusIntervalMS),
		ExperimentDurationMS:    uint64(p.ExperimentDurationMS),
		TrialCount:              p.TrialCount,
		Mode:                    mode,
		TargetMarker:            TargetDisplay,
		NonTargetMarker:         NonTargetDisplay,
	}
	if err := config.Validate(); err != nil {
		return trial.Config{}, err
	}
	return config, nil
}

// distractors returns the letters of Distractors that are not part of
// TargetLetter.
func (p Params) distractors() []rune {
	return []rune(strings.Map(func(r rune) rune {
		if strings.ContainsRune(p.TargetLetter, r) {
			return -1
		}
		return r
	}, p.Distractors))
}

// Stimulus is the cue of a letter stage.
type Stimulus struct {
	Index  int
	Letter string
	Target bool
}

func (s Stimulus) String() string { return s.Letter }

// Factory builds CPT experiments.
type Factory struct{}

func (Factory) Name() string { return Name }

func (Factory) Description() string {
	return "continuous performance test: respond to the target letter only"
}

func (Factory) MarkerGroup() (marker.Group, bool) { return Group, true }

// Build decodes and validates params.
func (Factory) Build(node *yaml.Node, environment experiment.Environment) (experiment.Experiment, error) {
	params := DefaultParams()
	if err := experiment.DecodeParams(node, &params); err != nil {
		return nil, err
	}
	config, err := params.trialConfig()
	if err != nil {
		return nil, err
	}
	return &Experiment{params: params, config: config, environment: environment}, nil
}

// Experiment is a configured CPT run.
type Experiment struct {
	params      Params
	config      trial.Config
	environment experiment.Environment
}

func (e *Experiment) Name() string { return Name }

// TrialCount returns the number of letters a run shows.
func (e *Experiment) TrialCount() int { return trial.Count(e.config) }

// Timeline returns: a preparation stage, the start marker, one letter
// and one interval per trial, the end marker, and a closing pause.
// Every call with the same seed yields the same letters.
func (e *Experiment) Timeline(context.Context) (*experiment.Timeline, error) {
	random := e.environment.Random()
	distractors := e.params.distractors()

	trials, err := trial.NewProvider(e.config, random, func(decision trial.Trial) stage.Stage {
		return letterStage(decision, e.params.TargetLetter, distractors, e.config.TrialDurationMS, random)
	})
	if err != nil {
		return nil, err
	}
	interval := stage.Marked(Interval, e.config.InterStimulusIntervalMS)
	letters := stage.Expand(trials, func(letter stage.Stage) []stage.Stage {
		return []stage.Stage{letter, interval}
	})

	return &experiment.Timeline{
		Providers: []stage.Provider{
			stage.Preparation(),
			stage.Mark(marker.ExperimentStart),
			letters,
			stage.Mark(marker.ExperimentEnd),
			stage.Delay(closingDelayMS),
		},
		UserMarker: UserAction,
		Summarize:  Summarize,
	}, nil
}

func letterStage(decision trial.Trial, target string, distractors []rune, durationMS uint64, random *rand.Rand) stage.Stage {
	stimulus := Stimulus{Index: decision.Index, Target: decision.Target, Letter: target}
	code := TargetDisplay
	if !decision.Target {
		stimulus.Letter = string(distractors[random.IntN(len(distractors))])
		code = NonTargetDisplay
	}
	return stage.Marked(code, durationMS).WithCue(stimulus)
}
