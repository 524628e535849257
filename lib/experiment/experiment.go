// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/stager/lib/marker"
	"github.com/bureau-foundation/stager/lib/program"
	"github.com/bureau-foundation/stager/lib/remote"
	"github.com/bureau-foundation/stager/lib/session"
	"github.com/bureau-foundation/stager/lib/stage"
)

// Factory builds experiments of one kind from configuration.
type Factory interface {
	// Name is the registry key, used in configuration and on the
	// command line.
	Name() string

	// Description is a one-line summary for listings.
	Description() string

	// MarkerGroup returns the slice of custom marker codes the
	// experiment owns, if it defines any.
	MarkerGroup() (marker.Group, bool)

	// Build validates params and returns a ready experiment. A nil
	// params node selects every default.
	Build(params *yaml.Node, environment Environment) (Experiment, error)
}

// Experiment produces timelines. Each call to Timeline returns fresh
// providers, so an experiment can be run more than once.
type Experiment interface {
	Name() string
	Timeline(ctx context.Context) (*Timeline, error)
}

// Timeline is everything a host needs to run one pass of an
// experiment.
type Timeline struct {
	// Providers are played in order.
	Providers []stage.Provider

	// Observers receive stage notifications after the session.
	Observers []program.Observer

	// UserMarker is recorded for each participant response. Zero
	// when the experiment records no responses.
	UserMarker marker.Code

	// Input forwards a participant response elsewhere (for example
	// to a remote peer). Nil when responses are only recorded.
	Input func(value any, timelineMS uint64) error

	// Summarize scores a finished run from its event log. Nil when
	// the experiment has nothing to report.
	Summarize func(events []session.Event) []SummaryItem

	// Failures are conditions outside the scheduler that end the run
	// the moment they fire, such as a lost remote peer.
	Failures []Failure

	closers []func() error
}

// Failure reports a fatal condition. *remote.Channel is one.
type Failure interface {
	// Failed is closed when the condition occurs.
	Failed() <-chan struct{}

	// Err is the cause, valid once Failed is closed.
	Err() error
}

// SummaryItem is one labelled line of a run report.
type SummaryItem struct {
	Label string
	Value string
}

// OnClose registers a function to run when the timeline is closed.
// Closers run in reverse registration order.
func (t *Timeline) OnClose(closer func() error) {
	t.closers = append(t.closers, closer)
}

// WatchFailures calls abort with the cause of the first failure to
// fire. It returns immediately; watching stops when ctx is done.
// abort may be called more than once if several failures fire, which
// program.Program.Abort tolerates.
func (t *Timeline) WatchFailures(ctx context.Context, abort func(error)) {
	for _, failure := range t.Failures {
		go func() {
			select {
			case <-failure.Failed():
				abort(failure.Err())
			case <-ctx.Done():
			}
		}()
	}
}

// Close releases the resources the timeline holds.
func (t *Timeline) Close() error {
	var errs []error
	for i := len(t.closers) - 1; i >= 0; i-- {
		if err := t.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	t.closers = nil
	return errors.Join(errs...)
}

// DialFunc opens a remote channel.
type DialFunc func(ctx context.Context, config remote.DialConfig) (*remote.Channel, error)

// Environment is what the host provides to every experiment.
type Environment struct {
	// Logger defaults to a discarding logger.
	Logger *slog.Logger

	// Seed drives every random decision. Equal seeds give equal
	// timelines.
	Seed uint64

	// MarkerTable is the fingerprint of the host's marker table.
	// Remote experiments send it in their handshake.
	MarkerTable string

	// RemoteNetwork and RemoteAddress are the default remote peer,
	// used by experiments that do not name their own.
	RemoteNetwork string
	RemoteAddress string

	// Dial defaults to remote.Dial.
	Dial DialFunc
}

// Random returns a generator seeded from Seed.
func (e Environment) Random() *rand.Rand {
	return rand.New(rand.NewPCG(e.Seed, e.Seed^0x9e3779b97f4a7c15))
}

// Log returns Logger, or a discarding logger.
func (e Environment) Log() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e.Logger
}

// Dialer returns Dial, or remote.Dial.
func (e Environment) Dialer() DialFunc {
	if e.Dial == nil {
		return remote.Dial
	}
	return e.Dial
}

// DecodeParams decodes params into target, which holds the defaults
// on entry. Keys that target does not declare are rejected. A nil or
// empty node leaves target unchanged.
func DecodeParams(params *yaml.Node, target any) error {
	if params == nil || params.Kind == 0 {
		return nil
	}
	data, err := yaml.Marshal(params)
	if err != nil {
		return fmt.Errorf("re-encoding params: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decoding params: %w", err)
	}
	return nil
}
