// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/bureau-foundation/stager/lib/codec"
	"github.com/bureau-foundation/stager/lib/stage"
)

// EventHandler receives client events on the peer side. It is called
// from the connection's reader goroutine.
type EventHandler func(Event)

// ServeConfig configures the peer side of a remote-driven timeline.
type ServeConfig struct {
	// Provider supplies the stages pushed to the client. Required.
	Provider stage.Provider

	// Experiment, when set, must match the client's Hello.
	Experiment string

	// MarkerTable, when set, must match the client's marker table
	// fingerprint.
	MarkerTable string

	// Events receives stage acknowledgements and user events.
	Events EventHandler

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Serve accepts one client on listener and pushes config.Provider's
// stages to it as frames. On exhaustion it sends an end frame and
// waits for the client to hang up so trailing acknowledgements reach
// the handler; on a provider error it sends an error frame and
// returns the error. Cancelling ctx closes the listener and the
// connection.
func Serve(ctx context.Context, listener net.Listener, config ServeConfig) error {
	if config.Provider == nil {
		panic("remote.Serve: Provider is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// Unblock Accept when the context is cancelled.
	acceptDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			listener.Close()
		case <-acceptDone:
		}
	}()
	connection, err := listener.Accept()
	close(acceptDone)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("accepting remote client: %w", err)
	}
	defer connection.Close()

	connectionDone := make(chan struct{})
	defer close(connectionDone)
	go func() {
		select {
		case <-ctx.Done():
			connection.Close()
		case <-connectionDone:
		}
	}()

	decoder := codec.NewDecoder(connection)
	encoder := codec.NewEncoder(connection)

	var hello Hello
	if err := decoder.Decode(&hello); err != nil {
		return fmt.Errorf("reading hello: %w", err)
	}
	logger.Info("remote client connected",
		"remote_address", connection.RemoteAddr().String(),
		"experiment", hello.Experiment,
		"marker_table", hello.MarkerTable)

	if err := checkHello(hello, config); err != nil {
		encoder.Encode(Frame{Type: FrameError, Error: err.Error()})
		return err
	}

	eventsDone := make(chan error, 1)
	go func() {
		for {
			var event Event
			if err := decoder.Decode(&event); err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
				}
				eventsDone <- err
				return
			}
			if config.Events != nil {
				config.Events(event)
			}
		}
	}()

	pushed := 0
	for {
		next, err := config.Provider.Next(ctx)
		if errors.Is(err, stage.ErrExhausted) {
			break
		}
		if err != nil {
			encoder.Encode(Frame{Type: FrameError, Error: err.Error()})
			return fmt.Errorf("providing stage %d: %w", pushed, err)
		}
		description := Describe(next)
		if err := encoder.Encode(Frame{Type: FrameStage, Stage: &description}); err != nil {
			return fmt.Errorf("sending stage %d: %w", pushed, err)
		}
		pushed++
	}

	if err := encoder.Encode(Frame{Type: FrameEnd}); err != nil {
		return fmt.Errorf("sending end frame: %w", err)
	}
	logger.Info("remote timeline pushed", "stages", pushed)

	select {
	case err := <-eventsDone:
		if err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
			logger.Debug("remote client stream ended with error", "error", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func checkHello(hello Hello, config ServeConfig) error {
	if hello.Protocol != ProtocolVersion {
		return fmt.Errorf("unsupported protocol version %d (peer speaks %d)", hello.Protocol, ProtocolVersion)
	}
	if config.Experiment != "" && hello.Experiment != config.Experiment {
		return fmt.Errorf("client runs experiment %q, peer serves %q", hello.Experiment, config.Experiment)
	}
	if config.MarkerTable != "" && hello.MarkerTable != config.MarkerTable {
		return fmt.Errorf("marker table mismatch: client %s, peer %s", hello.MarkerTable, config.MarkerTable)
	}
	return nil
}
