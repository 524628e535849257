// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/stager/lib/program"
	"github.com/bureau-foundation/stager/lib/session"
)

// DefaultRelayBuffer is the relay queue capacity when NewRelay is
// given zero.
const DefaultRelayBuffer = 256

// Relay carries session notifications to a bubbletea program.
// tea.Program.Send blocks while the program is busy, and session
// callbacks run on the scheduling goroutine, so the relay queues
// notifications and drops them when the queue is full. The finish
// notification is never dropped.
type Relay struct {
	messages chan tea.Msg
	finished chan program.Result
	dropped  atomic.Uint64
	logger   *slog.Logger
}

// NewRelay returns a relay with room for buffer pending
// notifications.
func NewRelay(buffer int, logger *slog.Logger) *Relay {
	if buffer <= 0 {
		buffer = DefaultRelayBuffer
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Relay{
		messages: make(chan tea.Msg, buffer),
		finished: make(chan program.Result, 1),
		logger:   logger,
	}
}

// Listener returns session callbacks that feed the relay.
func (r *Relay) Listener() session.Listener {
	return session.Listener{
		OnPreloaded: func(preloaded program.Preloaded) { r.post(PreloadedMsg(preloaded)) },
		OnEntered:   func(entered program.Entered) { r.post(EnteredMsg(entered)) },
		OnExited:    func(exited program.Exited) { r.post(ExitedMsg(exited)) },
		OnFinished: func(result program.Result) {
			select {
			case r.finished <- result:
			default:
			}
		},
	}
}

func (r *Relay) post(message tea.Msg) {
	select {
	case r.messages <- message:
	default:
		if r.dropped.Add(1) == 1 {
			r.logger.Warn("presenter is behind, dropping stage notifications")
		}
	}
}

// Dropped returns the number of notifications dropped so far.
func (r *Relay) Dropped() uint64 { return r.dropped.Load() }

// Run delivers queued notifications to send until the finish
// notification has been delivered or ctx is done. Notifications
// queued before the finish are delivered ahead of it.
func (r *Relay) Run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-r.messages:
			send(message)
		case result := <-r.finished:
			r.drain(send)
			send(FinishedMsg(result))
			return
		}
	}
}

func (r *Relay) drain(send func(tea.Msg)) {
	for {
		select {
		case message := <-r.messages:
			send(message)
		default:
			return
		}
	}
}
