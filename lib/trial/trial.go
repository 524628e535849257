// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trial

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/bureau-foundation/stager/lib/marker"
	"github.com/bureau-foundation/stager/lib/stage"
)

// Mode selects how target trials are drawn.
type Mode int

const (
	// PseudoRandom shuffles a precomputed block holding exactly
	// round(rate·count) targets. The realized target fraction is
	// exact for every seed.
	PseudoRandom Mode = iota

	// Independent draws each trial as a fresh Bernoulli(rate)
	// outcome. The target fraction only converges to the rate.
	Independent
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case PseudoRandom:
		return "pseudo-random"
	case Independent:
		return "independent"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "pseudo-random" or "independent".
func ParseMode(name string) (Mode, error) {
	switch name {
	case "pseudo-random", "":
		return PseudoRandom, nil
	case "independent":
		return Independent, nil
	default:
		return 0, fmt.Errorf("unknown trial mode %q (want pseudo-random or independent)", name)
	}
}

// Config bounds and shapes a generated trial stream.
type Config struct {
	// TargetRate is the fraction of target trials, in [0, 1].
	TargetRate float64

	// TrialDurationMS is how long each stimulus is shown.
	TrialDurationMS uint64

	// InterStimulusIntervalMS is the pause after each stimulus.
	InterStimulusIntervalMS uint64

	// ExperimentDurationMS bounds the stream by total time: the
	// trial count is ExperimentDurationMS / (TrialDurationMS +
	// InterStimulusIntervalMS), rounded down.
	ExperimentDurationMS uint64

	// TrialCount, when positive, bounds the stream by count instead
	// and ExperimentDurationMS is ignored.
	TrialCount int

	// Mode selects pseudo-random or independent target draws.
	Mode Mode

	// TargetMarker and NonTargetMarker are the markers of the
	// default stage shape.
	TargetMarker    marker.Code
	NonTargetMarker marker.Code
}

// Validate reports the first configuration problem as a
// *stage.ConfigError.
func (c Config) Validate() error {
	if math.IsNaN(c.TargetRate) || c.TargetRate < 0 || c.TargetRate > 1 {
		return &stage.ConfigError{Provider: "trial", Field: "target rate",
			Reason: fmt.Sprintf("%v is outside [0, 1]", c.TargetRate)}
	}
	if c.Mode != PseudoRandom && c.Mode != Independent {
		return &stage.ConfigError{Provider: "trial", Field: "mode", Reason: c.Mode.String() + " is not a known mode"}
	}
	if c.TrialCount < 0 {
		return &stage.ConfigError{Provider: "trial", Field: "trial count", Reason: "must not be negative"}
	}
	if c.TrialCount == 0 && c.TrialDurationMS+c.InterStimulusIntervalMS == 0 {
		return &stage.ConfigError{Provider: "trial", Field: "trial duration",
			Reason: "trial duration plus inter-stimulus interval must be positive when bounding by experiment duration"}
	}
	if Count(c) == 0 {
		return &stage.ConfigError{Provider: "trial", Field: "experiment duration",
			Reason: fmt.Sprintf("%d ms holds no complete trial of %d ms",
				c.ExperimentDurationMS, c.TrialDurationMS+c.InterStimulusIntervalMS)}
	}
	return nil
}

// Count returns the number of trials the configuration produces.
func Count(c Config) int {
	if c.TrialCount > 0 {
		return c.TrialCount
	}
	period := c.TrialDurationMS + c.InterStimulusIntervalMS
	if period == 0 {
		return 0
	}
	return int(c.ExperimentDurationMS / period)
}

// TargetCount returns round(TargetRate·Count), rounding halves away
// from zero. In PseudoRandom mode this is exactly the number of
// target trials produced.
func TargetCount(c Config) int {
	return int(math.Round(c.TargetRate * float64(Count(c))))
}

// Plan returns a uniformly random arrangement of targets true values
// among total slots, shuffled with Fisher–Yates.
func Plan(targets, total int, random *rand.Rand) []bool {
	plan := make([]bool, total)
	for i := 0; i < targets && i < total; i++ {
		plan[i] = true
	}
	for i := total - 1; i > 0; i-- {
		j := random.IntN(i + 1)
		plan[i], plan[j] = plan[j], plan[i]
	}
	return plan
}

// Trial is the decision for one generated trial. It is the cue of the
// stages the default shape produces.
type Trial struct {
	// Index is the 0-based position in the stream.
	Index int

	// Target reports whether this is a target trial.
	Target bool
}

// Shape turns a trial decision into a stage.
type Shape func(Trial) stage.Stage

// Provider yields exactly Count(config) stages, one per trial.
type Provider struct {
	config Config
	random *rand.Rand
	shape  Shape
	total  int
	plan   []bool
	next   int
}

// NewProvider validates config and returns a trial stream. random
// supplies every decision; seed it (rand.New(rand.NewPCG(seed, seed)))
// for a reproducible stream. A nil shape uses DefaultShape.
func NewProvider(config Config, random *rand.Rand, shape Shape) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if random == nil {
		return nil, &stage.ConfigError{Provider: "trial", Field: "random source", Reason: "must not be nil"}
	}
	if shape == nil {
		shape = DefaultShape(config)
	}
	provider := &Provider{
		config: config,
		random: random,
		shape:  shape,
		total:  Count(config),
	}
	if config.Mode == PseudoRandom {
		provider.plan = Plan(TargetCount(config), provider.total, random)
	}
	return provider, nil
}

// Next returns the stage for the next trial.
func (p *Provider) Next(context.Context) (stage.Stage, error) {
	if p.next >= p.total {
		return stage.Stage{}, stage.ErrExhausted
	}
	var target bool
	if p.plan != nil {
		target = p.plan[p.next]
	} else {
		target = p.random.Float64() < p.config.TargetRate
	}
	decision := Trial{Index: p.next, Target: target}
	p.next++
	return p.shape(decision), nil
}

// Total returns the number of trials the provider yields.
func (p *Provider) Total() int { return p.total }

// DefaultShape returns a shape that emits the target or non-target
// marker for the configured trial duration, with the Trial as cue.
func DefaultShape(config Config) Shape {
	return func(decision Trial) stage.Stage {
		code := config.NonTargetMarker
		if decision.Target {
			code = config.TargetMarker
		}
		return stage.Marked(code, config.TrialDurationMS).WithCue(decision)
	}
}
