// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/stager/lib/markerlog"
)

const defaultForwarderBuffer = 256

// MarkerWriter is the acquisition side of the marker stream. A
// *markerlog.Writer is one; a hardware trigger port or a network
// stream would be another.
type MarkerWriter interface {
	WriteMarker(markerlog.Record) error
}

// ForwarderStats counts what happened to forwarded markers.
type ForwarderStats struct {
	// Written is the number of records the writer accepted.
	Written uint64

	// Dropped is the number of records discarded because the queue
	// was full or the forwarder was closed.
	Dropped uint64

	// Failed is the number of records the writer rejected.
	Failed uint64
}

// Forwarder decouples the scheduler from the marker writer. Forward
// never blocks: records go into a bounded queue drained by a
// goroutine. A full queue drops the record and a writer error is
// logged and counted; neither stops the timeline.
type Forwarder struct {
	writer MarkerWriter
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan markerlog.Record
	done   chan struct{}

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewForwarder starts a forwarder draining into writer. buffer is the
// queue capacity (256 when not positive). A nil logger discards.
func NewForwarder(writer MarkerWriter, buffer int, logger *slog.Logger) *Forwarder {
	if writer == nil {
		panic("session.NewForwarder: writer is required")
	}
	if buffer <= 0 {
		buffer = defaultForwarderBuffer
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	forwarder := &Forwarder{
		writer: writer,
		logger: logger,
		queue:  make(chan markerlog.Record, buffer),
		done:   make(chan struct{}),
	}
	go forwarder.drain()
	return forwarder
}

// Forward queues record for the writer without blocking.
func (f *Forwarder) Forward(record markerlog.Record) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		f.dropped.Add(1)
		return
	}
	select {
	case f.queue <- record:
	default:
		count := f.dropped.Add(1)
		f.logger.Warn("marker queue full, dropping marker",
			"code", record.Code, "timeline_ms", record.TimelineMS, "dropped", count)
	}
}

func (f *Forwarder) drain() {
	defer close(f.done)
	for record := range f.queue {
		if err := f.writer.WriteMarker(record); err != nil {
			count := f.failed.Add(1)
			f.logger.Error("marker write failed",
				"code", record.Code, "timeline_ms", record.TimelineMS, "error", err, "failed", count)
			continue
		}
		f.written.Add(1)
	}
}

// Stats returns the current counters.
func (f *Forwarder) Stats() ForwarderStats {
	return ForwarderStats{
		Written: f.written.Load(),
		Dropped: f.dropped.Load(),
		Failed:  f.failed.Load(),
	}
}

// Close stops accepting records, waits for the queue to drain, and
// returns the final counters. Close is idempotent.
func (f *Forwarder) Close() ForwarderStats {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
	f.mu.Unlock()
	<-f.done
	return f.Stats()
}
