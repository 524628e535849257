// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stage

import (
	"context"
	"errors"
)

// RepeatingProvider replays a provider a fixed number of times. Each
// cycle drains a fresh provider from the factory, so stateful inner
// providers (shuffled blocks, nested repeats) start over every cycle.
type RepeatingProvider struct {
	factory func() Provider
	count   int
	cycle   int
	current Provider
}

// Repeat returns a provider that drains count providers produced by
// factory, one after another. count must be positive.
func Repeat(factory func() Provider, count int) (*RepeatingProvider, error) {
	if factory == nil {
		return nil, &ConfigError{Provider: "repeat", Field: "factory", Reason: "must not be nil"}
	}
	if count <= 0 {
		return nil, &ConfigError{Provider: "repeat", Field: "count", Reason: "must be positive"}
	}
	return &RepeatingProvider{factory: factory, count: count}, nil
}

// RepeatStatic repeats a fixed list of stages count times.
func RepeatStatic(stages []Stage, count int) (*RepeatingProvider, error) {
	copied := make([]Stage, len(stages))
	copy(copied, stages)
	return Repeat(func() Provider { return &StaticProvider{stages: copied} }, count)
}

// Next returns the next stage of the current cycle, starting a new
// cycle when the current one is exhausted.
func (p *RepeatingProvider) Next(ctx context.Context) (Stage, error) {
	for {
		if p.current == nil {
			if p.cycle >= p.count {
				return Stage{}, ErrExhausted
			}
			p.current = p.factory()
			p.cycle++
			if p.current == nil {
				return Stage{}, &ConfigError{Provider: "repeat", Field: "factory", Reason: "returned a nil provider"}
			}
		}
		next, err := p.current.Next(ctx)
		if errors.Is(err, ErrExhausted) {
			p.current = nil
			continue
		}
		return next, err
	}
}

// Cycle returns the 1-based number of the cycle in progress, or 0
// before the first stage is requested.
func (p *RepeatingProvider) Cycle() int { return p.cycle }

// ConcatProvider drains a list of providers end to end. A whole
// experiment timeline is one ConcatProvider.
type ConcatProvider struct {
	providers []Provider
	index     int
}

// Concat flattens providers into one sequence.
func Concat(providers ...Provider) *ConcatProvider {
	copied := make([]Provider, len(providers))
	copy(copied, providers)
	return &ConcatProvider{providers: copied}
}

// Next returns the next stage of the first provider that is not yet
// exhausted.
func (p *ConcatProvider) Next(ctx context.Context) (Stage, error) {
	for p.index < len(p.providers) {
		next, err := p.providers[p.index].Next(ctx)
		if errors.Is(err, ErrExhausted) {
			p.index++
			continue
		}
		return next, err
	}
	return Stage{}, ErrExhausted
}

// ExpandProvider maps every stage of an inner provider to a run of
// stages.
type ExpandProvider struct {
	inner   Provider
	expand  func(Stage) []Stage
	pending []Stage
}

// Expand returns a provider that replaces each stage s of inner with
// expand(s). Generated trials use it to append an inter-stimulus
// interval after each stimulus. An expansion may be empty, which
// drops the stage.
func Expand(inner Provider, expand func(Stage) []Stage) *ExpandProvider {
	return &ExpandProvider{inner: inner, expand: expand}
}

// Next returns the next expanded stage.
func (p *ExpandProvider) Next(ctx context.Context) (Stage, error) {
	for len(p.pending) == 0 {
		next, err := p.inner.Next(ctx)
		if err != nil {
			return Stage{}, err
		}
		p.pending = p.expand(next)
	}
	next := p.pending[0]
	p.pending = p.pending[1:]
	return next, nil
}
