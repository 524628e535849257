// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"fmt"

	"github.com/bureau-foundation/stager/lib/marker"
	"github.com/bureau-foundation/stager/lib/stage"
)

// ProtocolVersion is sent in Hello. A peer speaking a different
// version rejects the client with an error frame.
const ProtocolVersion = 1

// Hello is the first value a client writes after connecting.
type Hello struct {
	Protocol   int    `cbor:"protocol"`
	Experiment string `cbor:"experiment"`

	// MarkerTable is the hex fingerprint of the client's marker
	// table. A peer that pushes marker codes compares it against its
	// own table before sending any stage.
	MarkerTable string `cbor:"marker_table,omitempty"`
}

// Frame types sent from peer to client.
const (
	FrameStage = "stage"
	FrameEnd   = "end"
	FrameError = "error"
)

// Frame is one value of the peer-to-client stream.
type Frame struct {
	Type  string            `cbor:"type"`
	Stage *StageDescription `cbor:"stage,omitempty"`
	Error string            `cbor:"error,omitempty"`
}

// StageDescription is the wire form of a stage.
type StageDescription struct {
	Marker      *marker.Code `cbor:"marker,omitempty"`
	Cue         any          `cbor:"cue,omitempty"`
	DurationMS  uint64       `cbor:"duration_ms"`
	Preload     bool         `cbor:"preload,omitempty"`
	NotRecorded bool         `cbor:"not_recorded,omitempty"`
}

// Stage validates the description and builds the stage it describes.
func (d StageDescription) Stage() (stage.Stage, error) {
	return stage.New(stage.Spec{
		Marker:      d.Marker,
		Cue:         d.Cue,
		DurationMS:  d.DurationMS,
		Preload:     d.Preload,
		NotRecorded: d.NotRecorded,
	})
}

// Describe returns the wire form of s.
func Describe(s stage.Stage) StageDescription {
	description := StageDescription{
		Cue:         s.Cue(),
		DurationMS:  s.DurationMS(),
		Preload:     s.IsPreload(),
		NotRecorded: !s.IsRecorded(),
	}
	if code, has := s.Marker(); has {
		description.Marker = &code
	}
	return description
}

// Event types sent from client to peer.
const (
	EventStageEnter = "stage-enter"
	EventStageExit  = "stage-exit"
	EventInput      = "input"
	EventSelection  = "selection"
)

// Event is one value of the client-to-peer stream: stage
// acknowledgements and user responses.
type Event struct {
	Type   string       `cbor:"type"`
	Marker *marker.Code `cbor:"marker,omitempty"`
	Value  any          `cbor:"value,omitempty"`

	// TimelineMS is the timeline offset the event refers to: the
	// scheduled onset for stage-enter, the scheduled end for
	// stage-exit, and the elapsed time for user events.
	TimelineMS uint64 `cbor:"timeline_ms"`
}

// ChannelError is a fatal failure of the remote channel: a broken
// connection, an error frame from the peer, or a frame that cannot be
// interpreted. The timeline owning the channel must abort.
type ChannelError struct {
	// Op is the failing step ("read", "peer", "decode", ...).
	Op string

	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("remote channel %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }
