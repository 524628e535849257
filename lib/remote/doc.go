// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package remote bridges a stage timeline to a remote peer that owns
// experiment progression.
//
// The wire is a byte stream (TCP or Unix socket) of self-delimiting
// CBOR values. The client writes a [Hello], then [Event] values; the
// peer writes [Frame] values:
//
//	client                          peer
//	  Hello{protocol, experiment} ->
//	                              <- Frame{stage, StageDescription}
//	  Event{stage-enter}          ->
//	  Event{stage-exit}           ->
//	                              <- Frame{end}
//
// On the client, [Dial] starts one goroutine that reads frames into a
// queue and one that writes queued events. The scheduler consumes the
// queue through [Channel.Provider] and never performs network I/O.
// A read error, an error frame, or a frame that does not describe a
// valid stage is fatal. [Channel.Failed] closes at that moment so the
// host can abort the stage in flight, and the provider returns the
// [*ChannelError] without playing stages still queued. There is no
// reconnection: the peer decides what a broken session means.
//
// [Serve] is the peer side, pushing any local provider to one client.
// It backs the "stager peer" command and tests.
package remote
