// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/stager/lib/clock"
	"github.com/bureau-foundation/stager/lib/marker"
	"github.com/bureau-foundation/stager/lib/markerlog"
	"github.com/bureau-foundation/stager/lib/program"
)

// EventType classifies an event log entry.
type EventType string

const (
	EventEnter   EventType = "ENTER"
	EventExit    EventType = "EXIT"
	EventPreload EventType = "PRELOAD"
	EventUser    EventType = "USER"
)

// Event is one entry of the session's event log. IntendedMS is where
// the timeline scheduled the event; ActualMS is where the clock said
// it happened. Both are offsets from the timeline epoch.
type Event struct {
	IntendedMS uint64
	ActualMS   uint64
	Type       EventType
	Marker     marker.Code
	HasMarker  bool
	Label      string
}

// Listener receives stage notifications for presentation. Every
// callback runs on the scheduling goroutine and must return quickly.
// Nil callbacks are skipped.
type Listener struct {
	OnPreloaded func(program.Preloaded)
	OnEntered   func(program.Entered)
	OnExited    func(program.Exited)
	OnFinished  func(program.Result)
}

// Config configures a Local session.
type Config struct {
	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Table names marker codes in records and labels. Defaults to a
	// table of the built-in markers only.
	Table *marker.Table

	// Writer receives every recorded marker through a Forwarder.
	// Optional: without a writer markers only reach the event log.
	Writer MarkerWriter

	// Buffer is the Forwarder queue capacity.
	Buffer int

	Listener Listener

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Local is a program.Session for a single machine: markers go to a
// MarkerWriter, notifications to a Listener, and everything to an
// in-memory event log.
type Local struct {
	clock     clock.Clock
	table     *marker.Table
	forwarder *Forwarder
	listener  Listener
	logger    *slog.Logger

	mu     sync.Mutex
	epoch  time.Time
	onset  uint64
	events []Event
	result *program.Result
	done   chan struct{}
}

var _ program.Session = (*Local)(nil)

// New returns a Local session.
func New(config Config) *Local {
	session := &Local{
		clock:    config.Clock,
		table:    config.Table,
		listener: config.Listener,
		logger:   config.Logger,
		done:     make(chan struct{}),
	}
	if session.clock == nil {
		session.clock = clock.Real()
	}
	if session.table == nil {
		session.table = marker.MustNewTable()
	}
	if session.logger == nil {
		session.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.Writer != nil {
		session.forwarder = NewForwarder(config.Writer, config.Buffer, session.logger)
	}
	return session
}

// Clock returns the session clock.
func (s *Local) Clock() clock.Clock { return s.clock }

// Started records the timeline epoch.
func (s *Local) Started(epoch time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch = epoch
}

// EmitMarker forwards a stage marker. Its intended offset is the
// onset of the stage being entered: the scheduled end of the previous
// stage.
func (s *Local) EmitMarker(code marker.Code, timestamp time.Time) {
	s.mu.Lock()
	intended := s.onset
	s.mu.Unlock()
	s.forward(code, timestamp, intended)
}

func (s *Local) forward(code marker.Code, timestamp time.Time, intendedMS uint64) {
	if s.forwarder == nil {
		return
	}
	s.forwarder.Forward(markerlog.Record{
		Code:            code,
		Name:            s.table.Name(code),
		TimestampUnixNS: timestamp.UnixNano(),
		TimelineMS:      intendedMS,
	})
}

// StagePreloaded logs a preparation stage.
func (s *Local) StagePreloaded(preloaded program.Preloaded) {
	s.append(Event{
		IntendedMS: preloaded.OffsetMS,
		ActualMS:   preloaded.OffsetMS,
		Type:       EventPreload,
		Label:      cueLabel(preloaded.Stage.Cue()),
	})
	if s.listener.OnPreloaded != nil {
		s.listener.OnPreloaded(preloaded)
	}
}

// StageEntered logs a stage onset.
func (s *Local) StageEntered(entered program.Entered) {
	code, has := entered.Stage.Marker()
	s.append(Event{
		IntendedMS: entered.OnsetMS,
		ActualMS:   s.offset(entered.At),
		Type:       EventEnter,
		Marker:     code,
		HasMarker:  has,
		Label:      s.label(entered.Stage.Cue(), code, has),
	})
	if s.listener.OnEntered != nil {
		s.listener.OnEntered(entered)
	}
}

// StageExited logs a stage end and advances the intended onset of the
// next stage.
func (s *Local) StageExited(exited program.Exited) {
	code, has := exited.Stage.Marker()
	s.mu.Lock()
	s.onset = exited.EndMS
	s.mu.Unlock()
	s.append(Event{
		IntendedMS: exited.EndMS,
		ActualMS:   s.offset(exited.At),
		Type:       EventExit,
		Marker:     code,
		HasMarker:  has,
		Label:      s.label(exited.Stage.Cue(), code, has),
	})
	if s.listener.OnExited != nil {
		s.listener.OnExited(exited)
	}
}

// Finished records the result and closes Done.
func (s *Local) Finished(result program.Result) {
	s.mu.Lock()
	s.result = &result
	s.mu.Unlock()
	s.logger.Info("session finished",
		"state", result.State.String(), "stages", result.Stages, "slip", result.Slip)
	if s.listener.OnFinished != nil {
		s.listener.OnFinished(result)
	}
	close(s.done)
}

// UserAction records a participant response: code is emitted
// immediately at the current clock reading, and value is kept as the
// event label. Safe to call from any goroutine.
func (s *Local) UserAction(code marker.Code, value any) {
	now := s.clock.Now()
	elapsed := s.offset(now)
	s.forward(code, now, elapsed)
	label := s.table.Name(code)
	if value != nil {
		label = fmt.Sprintf("%s:%v", label, value)
	}
	s.append(Event{
		IntendedMS: elapsed,
		ActualMS:   elapsed,
		Type:       EventUser,
		Marker:     code,
		HasMarker:  true,
		Label:      label,
	})
}

// Elapsed returns the timeline offset of the current clock reading,
// zero before Started.
func (s *Local) Elapsed() uint64 { return s.offset(s.clock.Now()) }

// Events returns a copy of the event log.
func (s *Local) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Result returns the terminal result once Finished has been called.
func (s *Local) Result() (program.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return program.Result{}, false
	}
	return *s.result, true
}

// Done is closed when the program reports Finished.
func (s *Local) Done() <-chan struct{} { return s.done }

// Close drains the marker queue and returns its counters. Call it
// after the program is terminal.
func (s *Local) Close() ForwarderStats {
	if s.forwarder == nil {
		return ForwarderStats{}
	}
	return s.forwarder.Close()
}

func (s *Local) append(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *Local) offset(at time.Time) uint64 {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()
	if epoch.IsZero() || at.Before(epoch) {
		return 0
	}
	return uint64(at.Sub(epoch) / time.Millisecond)
}

func (s *Local) label(cue any, code marker.Code, has bool) string {
	if cue != nil {
		return cueLabel(cue)
	}
	if has {
		return s.table.Name(code)
	}
	return ""
}

func cueLabel(cue any) string {
	if cue == nil {
		return ""
	}
	if stringer, ok := cue.(fmt.Stringer); ok {
		return stringer.String()
	}
	return fmt.Sprint(cue)
}
