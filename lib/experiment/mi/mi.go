// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mi is the client side of a motor imagery paradigm. The
// timeline is driven by a remote peer (typically the classifier
// process): it pushes cue stages, and the client acknowledges each
// stage and forwards the participant's selections.
//
// With internal_program set the module plays a fixed cue sequence
// locally instead, which exercises a display without a peer.
package mi

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/stager/lib/experiment"
	"github.com/bureau-foundation/stager/lib/marker"
	"github.com/bureau-foundation/stager/lib/program"
	"github.com/bureau-foundation/stager/lib/remote"
	"github.com/bureau-foundation/stager/lib/stage"
)

// Name is the registry key.
const Name = "mi"

// DefaultServerAddress is the peer address used when neither the
// params nor the host name one.
const DefaultServerAddress = "127.0.0.1:4567"

// Group is the marker slice owned by the paradigm.
var Group = marker.Group{
	Name: Name,
	Base: marker.CustomBase + 100,
	Size: 100,
	Codes: map[marker.Code]string{
		marker.CustomBase + 101: "mi-cue-a",
		marker.CustomBase + 102: "mi-cue-b",
		marker.CustomBase + 103: "mi-rest",
		marker.CustomBase + 110: "mi-selection",
	},
}

// Marker codes.
var (
	CueA      = Group.Offset(1)
	CueB      = Group.Offset(2)
	Rest      = Group.Offset(3)
	Selection = Group.Offset(10)
)

// boundaryDelayMS pads the internal program on both ends.
const boundaryDelayMS = 1000

// Params are the configurable settings.
type Params struct {
	// Network and ServerAddress locate the peer. Empty values fall
	// back to the host's remote settings, then to tcp and
	// DefaultServerAddress.
	Network       string `yaml:"network"`
	ServerAddress string `yaml:"server_address"`

	// InternalProgram plays the local cue sequence instead of
	// connecting to a peer.
	InternalProgram bool `yaml:"internal_program"`

	// Repeat is the number of cue cycles of the internal program.
	Repeat int `yaml:"repeat"`

	// CueDurationMS is the length of each internal cue and rest.
	CueDurationMS int64 `yaml:"cue_duration_ms"`

	// CueA and CueB are the two imagery cues of the internal program.
	CueA string `yaml:"cue_a"`
	CueB string `yaml:"cue_b"`
}

// DefaultParams returns the defaults.
func DefaultParams() Params {
	return Params{
		Repeat:        50,
		CueDurationMS: 3000,
		CueA:          "left-hand",
		CueB:          "right-hand",
	}
}

// Validate checks the internal program settings.
func (p Params) Validate() error {
	if !p.InternalProgram {
		return nil
	}
	if p.Repeat <= 0 {
		return &stage.ConfigError{Provider: Name, Field: "repeat", Reason: fmt.Sprintf("must be positive, got %d", p.Repeat)}
	}
	if p.CueDurationMS <= 0 {
		return &stage.ConfigError{Provider: Name, Field: "cue_duration_ms",
			Reason: fmt.Sprintf("must be positive, got %d", p.CueDurationMS)}
	}
	return nil
}

// Factory builds MI experiments.
type Factory struct{}

func (Factory) Name() string { return Name }

func (Factory) Description() string {
	return "motor imagery client: cues pushed by a remote peer"
}

func (Factory) MarkerGroup() (marker.Group, bool) { return Group, true }

// Build decodes and validates params and resolves the peer address.
func (Factory) Build(node *yaml.Node, environment experiment.Environment) (experiment.Experiment, error) {
	params := DefaultParams()
	if err := experiment.DecodeParams(node, &params); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.Network == "" {
		params.Network = environment.RemoteNetwork
	}
	if params.ServerAddress == "" {
		params.ServerAddress = environment.RemoteAddress
	}
	if params.ServerAddress == "" {
		params.ServerAddress = DefaultServerAddress
	}
	return &Experiment{params: params, environment: environment}, nil
}

// Experiment is a configured MI client.
type Experiment struct {
	params      Params
	environment experiment.Environment
}

func (e *Experiment) Name() string { return Name }

// Params returns the effective settings.
func (e *Experiment) Params() Params { return e.params }

// Timeline connects to the peer, or builds the internal program.
func (e *Experiment) Timeline(ctx context.Context) (*experiment.Timeline, error) {
	if e.params.InternalProgram {
		return e.internalTimeline()
	}

	logger := e.environment.Log()
	channel, err := e.environment.Dialer()(ctx, remote.DialConfig{
		Network:     e.params.Network,
		Address:     e.params.ServerAddress,
		Experiment:  Name,
		MarkerTable: e.environment.MarkerTable,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to motor imagery peer: %w", err)
	}
	logger.Info("connected to motor imagery peer", "address", e.params.ServerAddress)

	selection := Selection
	timeline := &experiment.Timeline{
		Providers:  []stage.Provider{channel.Provider()},
		Observers:  []program.Observer{channel},
		Failures:   []experiment.Failure{channel},
		UserMarker: Selection,
		Input: func(value any, timelineMS uint64) error {
			return channel.Send(remote.Event{
				Type:       remote.EventSelection,
				Marker:     &selection,
				Value:      value,
				TimelineMS: timelineMS,
			})
		},
	}
	timeline.OnClose(channel.Close)
	return timeline, nil
}

func (e *Experiment) internalTimeline() (*experiment.Timeline, error) {
	duration := uint64(e.params.CueDurationMS)
	cycle := []stage.Stage{
		stage.Marked(CueA, duration).WithCue(e.params.CueA),
		stage.Marked(CueB, duration).WithCue(e.params.CueB),
		stage.Marked(Rest, duration),
	}
	cues, err := stage.RepeatStatic(cycle, e.params.Repeat)
	if err != nil {
		return nil, err
	}
	return &experiment.Timeline{
		Providers: []stage.Provider{
			stage.Delay(boundaryDelayMS),
			stage.Mark(marker.ExperimentStart),
			stage.Preparation(e.params.CueA, e.params.CueB),
			cues,
			stage.Mark(marker.ExperimentEnd),
			stage.Delay(boundaryDelayMS),
		},
		UserMarker: Selection,
	}, nil
}
