// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stage

import (
	"context"
	"errors"
	"fmt"
)

// ErrExhausted is returned by Provider.Next when the sequence has no
// more stages. It is the only error that ends a timeline normally.
var ErrExhausted = errors.New("stage: provider exhausted")

// Provider is a lazy, ordered sequence of stages. Next returns the
// next stage, ErrExhausted at the end, or any other error when the
// sequence cannot continue (the scheduler aborts the run).
//
// A Provider has exactly one consumer and is not safe for concurrent
// calls to Next. Next may block (remote-driven providers wait for the
// peer); blocking implementations must return promptly with
// ctx.Err() once ctx is cancelled.
//
// Providers are not rewindable. Sequences that must be replayed are
// re-created from a factory (see Repeat).
type Provider interface {
	Next(ctx context.Context) (Stage, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (Stage, error)

// Next calls f(ctx).
func (f ProviderFunc) Next(ctx context.Context) (Stage, error) { return f(ctx) }

// ConfigError reports a provider that cannot be constructed from its
// configuration. Configuration errors surface before a run starts;
// the scheduler never sees a provider that failed construction.
type ConfigError struct {
	// Provider names the provider kind ("repeat", "trial", ...).
	Provider string

	// Field names the offending setting.
	Field string

	// Reason says what is wrong with it.
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s provider: invalid %s: %s", e.Provider, e.Field, e.Reason)
}

// Collect drains provider into a slice. A positive limit stops
// collection after that many stages, which keeps summaries of long or
// unbounded providers cheap.
func Collect(ctx context.Context, provider Provider, limit int) ([]Stage, error) {
	var stages []Stage
	for limit <= 0 || len(stages) < limit {
		next, err := provider.Next(ctx)
		if errors.Is(err, ErrExhausted) {
			return stages, nil
		}
		if err != nil {
			return stages, err
		}
		stages = append(stages, next)
	}
	return stages, nil
}
