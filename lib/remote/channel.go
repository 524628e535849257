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
	"sync"
	"time"

	"github.com/bureau-foundation/stager/lib/codec"
	"github.com/bureau-foundation/stager/lib/program"
	"github.com/bureau-foundation/stager/lib/stage"
)

var (
	// ErrChannelClosed is returned by Send after Close, and by the
	// provider when the channel was closed locally.
	ErrChannelClosed = errors.New("remote: channel closed")

	// ErrOutboundFull is returned by Send when the outbound queue has
	// no room. The event is dropped.
	ErrOutboundFull = errors.New("remote: outbound queue full")
)

const (
	defaultNetwork        = "tcp"
	defaultDialTimeout    = 5 * time.Second
	defaultInboundBuffer  = 16
	defaultOutboundBuffer = 64

	// flushTimeout bounds how long Close waits for queued events to
	// reach the peer.
	flushTimeout = time.Second
)

// DialConfig configures a client connection to a remote peer.
type DialConfig struct {
	// Network is "tcp" (default) or "unix".
	Network string

	// Address is the peer address. Required.
	Address string

	// Experiment and MarkerTable are sent in Hello.
	Experiment  string
	MarkerTable string

	// DialTimeout bounds the connect. Defaults to 5 seconds.
	DialTimeout time.Duration

	// InboundBuffer is the number of stages the reader may queue
	// ahead of the scheduler. Defaults to 16.
	InboundBuffer int

	// OutboundBuffer is the number of events Send may queue ahead of
	// the writer. Defaults to 64.
	OutboundBuffer int

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Channel is a client connection to a remote peer. A reader goroutine
// turns stage frames into stages for the Provider; a writer goroutine
// sends queued Events. The scheduler never touches the connection.
type Channel struct {
	connection net.Conn
	logger     *slog.Logger

	inbound  chan stage.Stage
	outbound chan Event

	// terminal is set by the reader before it closes inbound.
	terminal error

	// failure is set before failed is closed, only for fatal errors.
	failure error
	failed  chan struct{}

	closed     chan struct{}
	closeOnce  sync.Once
	readerDone chan struct{}
	writerDone chan struct{}

	provider *Provider
}

// Dial connects to the peer, sends Hello, and starts the reader and
// writer goroutines. ctx bounds the connect and handshake only; the
// channel lives until Close or a fatal error.
func Dial(ctx context.Context, config DialConfig) (*Channel, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("remote: dial address is required")
	}
	network := config.Network
	if network == "" {
		network = defaultNetwork
	}
	timeout := config.DialTimeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	connection, err := dialer.DialContext(ctx, network, config.Address)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s %s: %w", network, config.Address, err)
	}

	hello := Hello{
		Protocol:    ProtocolVersion,
		Experiment:  config.Experiment,
		MarkerTable: config.MarkerTable,
	}
	if deadline, ok := ctx.Deadline(); ok {
		connection.SetWriteDeadline(deadline)
	}
	if err := codec.NewEncoder(connection).Encode(hello); err != nil {
		connection.Close()
		return nil, fmt.Errorf("sending hello: %w", err)
	}
	connection.SetWriteDeadline(time.Time{})

	channel := newChannel(connection, config)
	channel.logger.Info("remote channel connected",
		"network", network, "address", config.Address, "experiment", config.Experiment)
	return channel, nil
}

func newChannel(connection net.Conn, config DialConfig) *Channel {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	inboundBuffer := config.InboundBuffer
	if inboundBuffer <= 0 {
		inboundBuffer = defaultInboundBuffer
	}
	outboundBuffer := config.OutboundBuffer
	if outboundBuffer <= 0 {
		outboundBuffer = defaultOutboundBuffer
	}

	channel := &Channel{
		connection: connection,
		logger:     logger,
		inbound:    make(chan stage.Stage, inboundBuffer),
		outbound:   make(chan Event, outboundBuffer),
		failed:     make(chan struct{}),
		closed:     make(chan struct{}),
		readerDone: make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	channel.provider = &Provider{channel: channel}
	go channel.read()
	go channel.write()
	return channel
}

// Provider returns the stage provider fed by this channel. There is
// one provider per channel and it has a single consumer.
func (c *Channel) Provider() *Provider { return c.provider }

// Failed returns a channel closed the moment the connection fails:
// a read error, a malformed frame, or an error frame from the peer.
// A normal end of timeline or a local Close does not close it. Hosts
// abort the running program when it fires, rather than letting
// stages already queued from the peer play on.
func (c *Channel) Failed() <-chan struct{} { return c.failed }

// Err returns the fatal error once Failed is closed, nil before.
func (c *Channel) Err() error {
	select {
	case <-c.failed:
		return c.failure
	default:
		return nil
	}
}

// Send queues event for the peer without blocking.
func (c *Channel) Send(event Event) error {
	select {
	case <-c.closed:
		return ErrChannelClosed
	default:
	}
	select {
	case c.outbound <- event:
		return nil
	default:
		return ErrOutboundFull
	}
}

// Close flushes queued events (bounded by a short deadline), closes
// the connection, and waits for both goroutines to exit. Close is
// idempotent.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.connection.SetWriteDeadline(time.Now().Add(flushTimeout))
		<-c.writerDone
		err = c.connection.Close()
		<-c.readerDone
	})
	return err
}

// StageEntered acknowledges a stage onset to the peer.
func (c *Channel) StageEntered(entered program.Entered) {
	c.acknowledge(EventStageEnter, entered.Stage, entered.OnsetMS)
}

// StageExited acknowledges a stage end to the peer.
func (c *Channel) StageExited(exited program.Exited) {
	c.acknowledge(EventStageExit, exited.Stage, exited.EndMS)
}

func (c *Channel) acknowledge(eventType string, acknowledged stage.Stage, timelineMS uint64) {
	event := Event{Type: eventType, TimelineMS: timelineMS}
	if code, has := acknowledged.Marker(); has {
		event.Marker = &code
	}
	if err := c.Send(event); err != nil && !errors.Is(err, ErrChannelClosed) {
		c.logger.Warn("dropping stage acknowledgement", "type", eventType, "error", err)
	}
}

// read decodes frames until the stream ends. It records the terminal
// result and closes inbound on return; fatal results also close
// failed.
func (c *Channel) read() {
	defer close(c.readerDone)
	defer close(c.inbound)

	decoder := codec.NewDecoder(c.connection)
	for {
		var frame Frame
		if err := decoder.Decode(&frame); err != nil {
			if c.isClosed() {
				c.terminal = ErrChannelClosed
			} else {
				c.fail(&ChannelError{Op: "read", Err: err})
			}
			return
		}

		switch frame.Type {
		case FrameStage:
			if frame.Stage == nil {
				c.fail(&ChannelError{Op: "decode", Err: errors.New("stage frame without a stage")})
				return
			}
			next, err := frame.Stage.Stage()
			if err != nil {
				c.fail(&ChannelError{Op: "decode", Err: err})
				return
			}
			select {
			case c.inbound <- next:
			case <-c.closed:
				c.terminal = ErrChannelClosed
				return
			}
		case FrameEnd:
			c.logger.Info("remote peer ended the timeline")
			c.terminal = stage.ErrExhausted
			return
		case FrameError:
			c.fail(&ChannelError{Op: "peer", Err: errors.New(frame.Error)})
			return
		default:
			c.fail(&ChannelError{Op: "decode", Err: fmt.Errorf("unknown frame type %q", frame.Type)})
			return
		}
	}
}

func (c *Channel) fail(err error) {
	c.logger.Error("remote channel failed", "error", err, "queued_stages", len(c.inbound))
	c.terminal = err
	c.failure = err
	close(c.failed)
}

// write sends queued events until Close, then flushes what is left.
func (c *Channel) write() {
	defer close(c.writerDone)

	encoder := codec.NewEncoder(c.connection)
	send := func(event Event) bool {
		if err := encoder.Encode(event); err != nil {
			c.logger.Warn("remote channel write failed", "type", event.Type, "error", err)
			// The reader fails on the broken connection and reports
			// the fatal error to the scheduler.
			c.connection.Close()
			return false
		}
		return true
	}

	for {
		select {
		case event := <-c.outbound:
			if !send(event) {
				return
			}
		case <-c.closed:
			for {
				select {
				case event := <-c.outbound:
					if !send(event) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (c *Channel) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Provider yields the stages pushed by the peer. Next blocks until a
// stage arrives, the peer ends the timeline (stage.ErrExhausted), the
// channel fails (*ChannelError), or ctx is done. Once the channel has
// failed, stages still queued are discarded. Terminal results are
// sticky.
type Provider struct {
	channel  *Channel
	terminal error
}

// Next returns the next pushed stage.
func (p *Provider) Next(ctx context.Context) (stage.Stage, error) {
	if p.terminal != nil {
		return stage.Stage{}, p.terminal
	}
	if err := p.channel.Err(); err != nil {
		p.terminal = err
		return stage.Stage{}, err
	}
	select {
	case next, ok := <-p.channel.inbound:
		if !ok {
			p.terminal = p.channel.terminal
			return stage.Stage{}, p.terminal
		}
		if err := p.channel.Err(); err != nil {
			p.terminal = err
			return stage.Stage{}, err
		}
		return next, nil
	case <-p.channel.failed:
		p.terminal = p.channel.failure
		return stage.Stage{}, p.terminal
	case <-ctx.Done():
		return stage.Stage{}, ctx.Err()
	}
}
