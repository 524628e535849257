// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/stager/lib/clock"
	"github.com/bureau-foundation/stager/lib/marker"
	"github.com/bureau-foundation/stager/lib/markerlog"
	"github.com/bureau-foundation/stager/lib/program"
	"github.com/bureau-foundation/stager/lib/stage"
	"github.com/bureau-foundation/stager/lib/testutil"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type memoryWriter struct {
	mu      sync.Mutex
	records []markerlog.Record
}

func (w *memoryWriter) WriteMarker(record markerlog.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, record)
	return nil
}

func testTable() *marker.Table {
	return marker.MustNewTable(marker.Group{
		Name: "cpt",
		Base: marker.CustomBase,
		Size: 100,
		Codes: map[marker.Code]string{
			marker.CustomBase + 10: "target-display",
			marker.CustomBase + 20: "interval",
		},
	})
}

func TestLocalRecordsTimeline(t *testing.T) {
	fake := clock.Fake(epoch)
	writer := &memoryWriter{}
	var (
		entered  []program.Entered
		finished []program.Result
	)
	local := New(Config{
		Clock:  fake,
		Table:  testTable(),
		Writer: writer,
		Listener: Listener{
			OnEntered:  func(e program.Entered) { entered = append(entered, e) },
			OnFinished: func(r program.Result) { finished = append(finished, r) },
		},
	})

	driver := program.New(program.Config{
		Session: local,
		Providers: []stage.Provider{
			stage.Preparation("X"),
			stage.Mark(marker.ExperimentStart),
			stage.Static(
				stage.Marked(marker.CustomBase+10, 500).WithCue("X"),
				stage.Marked(marker.CustomBase+20, 300),
			),
			stage.Mark(marker.ExperimentEnd),
		},
	})
	driver.Start(context.Background())
	fake.WaitForTimers(1)
	fake.Advance(520 * time.Millisecond) // the first wake-up is 20 ms late
	fake.WaitForTimers(1)
	fake.Advance(280 * time.Millisecond)
	testutil.RequireClosed(t, local.Done(), 5*time.Second, "session finished")

	stats := local.Close()
	if stats.Written != 4 || stats.Dropped != 0 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}

	wantRecords := []markerlog.Record{
		{Code: marker.ExperimentStart, Name: "experiment-start", TimestampUnixNS: epoch.UnixNano(), TimelineMS: 0},
		{Code: marker.CustomBase + 10, Name: "target-display", TimestampUnixNS: epoch.UnixNano(), TimelineMS: 0},
		{Code: marker.CustomBase + 20, Name: "interval", TimestampUnixNS: epoch.Add(520 * time.Millisecond).UnixNano(), TimelineMS: 500},
		{Code: marker.ExperimentEnd, Name: "experiment-end", TimestampUnixNS: epoch.Add(800 * time.Millisecond).UnixNano(), TimelineMS: 800},
	}
	writer.mu.Lock()
	records := append([]markerlog.Record(nil), writer.records...)
	writer.mu.Unlock()
	if len(records) != len(wantRecords) {
		t.Fatalf("records = %+v", records)
	}
	for i := range wantRecords {
		if records[i] != wantRecords[i] {
			t.Errorf("record %d = %+v, want %+v", i, records[i], wantRecords[i])
		}
	}

	events := local.Events()
	if len(events) != 9 {
		t.Fatalf("event log has %d entries: %+v", len(events), events)
	}
	if events[0].Type != EventPreload || events[0].Label != "X" {
		t.Errorf("event 0 = %+v", events[0])
	}
	late := events[5] // enter of the interval stage
	if late.Type != EventEnter || late.IntendedMS != 500 || late.ActualMS != 520 || late.Label != "interval" {
		t.Errorf("late enter = %+v", late)
	}

	result, ok := local.Result()
	if !ok || result.State != program.Completed {
		t.Errorf("Result() = %+v, %v", result, ok)
	}
	if len(entered) != 4 || len(finished) != 1 {
		t.Errorf("listener saw %d enters and %d finishes", len(entered), len(finished))
	}
}

func TestUserAction(t *testing.T) {
	fake := clock.Fake(epoch)
	writer := &memoryWriter{}
	local := New(Config{Clock: fake, Writer: writer})

	local.Started(epoch)
	fake.Advance(250 * time.Millisecond)
	local.UserAction(marker.UserAction, "space")
	local.Close()

	if len(writer.records) != 1 {
		t.Fatalf("records = %+v", writer.records)
	}
	record := writer.records[0]
	if record.Code != marker.UserAction || record.TimelineMS != 250 || record.TimestampUnixNS != epoch.Add(250*time.Millisecond).UnixNano() {
		t.Errorf("record = %+v", record)
	}
	events := local.Events()
	if len(events) != 1 || events[0].Type != EventUser || events[0].Label != "user-action:space" || events[0].ActualMS != 250 {
		t.Errorf("events = %+v", events)
	}
	if local.Elapsed() != 250 {
		t.Errorf("Elapsed() = %d", local.Elapsed())
	}
}

// gatedWriter blocks every write until a value arrives on release, and
// reports when the first write has started.
type gatedWriter struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	count   int
}

func (w *gatedWriter) WriteMarker(markerlog.Record) error {
	w.once.Do(func() { close(w.started) })
	<-w.release
	w.count++
	return nil
}

func TestForwarderDropsWhenFull(t *testing.T) {
	writer := &gatedWriter{started: make(chan struct{}), release: make(chan struct{})}
	forwarder := NewForwarder(writer, 1, nil)

	forwarder.Forward(markerlog.Record{Code: 1})
	testutil.RequireClosed(t, writer.started, 5*time.Second, "first write started")

	// The writer holds record 1; record 2 fills the one-slot queue.
	forwarder.Forward(markerlog.Record{Code: 2})
	forwarder.Forward(markerlog.Record{Code: 3})
	forwarder.Forward(markerlog.Record{Code: 4})
	if dropped := forwarder.Stats().Dropped; dropped != 2 {
		t.Errorf("Dropped = %d, want 2", dropped)
	}

	testutil.RequireSend(t, writer.release, struct{}{}, 5*time.Second, "releasing record 1")
	testutil.RequireSend(t, writer.release, struct{}{}, 5*time.Second, "releasing record 2")
	stats := forwarder.Close()
	if stats.Written != 2 || stats.Dropped != 2 {
		t.Errorf("stats = %+v", stats)
	}

	forwarder.Forward(markerlog.Record{Code: 5})
	if forwarder.Stats().Dropped != 3 {
		t.Error("Forward after Close was not counted as dropped")
	}
	forwarder.Close()
}

type failingWriter struct{}

func (failingWriter) WriteMarker(markerlog.Record) error { return errors.New("trigger port unplugged") }

func TestForwarderCountsWriterFailures(t *testing.T) {
	forwarder := NewForwarder(failingWriter{}, 0, nil)
	forwarder.Forward(markerlog.Record{Code: 1})
	forwarder.Forward(markerlog.Record{Code: 2})
	stats := forwarder.Close()
	if stats.Failed != 2 || stats.Written != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestWriteEvents(t *testing.T) {
	var output strings.Builder
	err := WriteEvents(&output, []Event{
		{IntendedMS: 0, ActualMS: 0, Type: EventEnter, Marker: 1, HasMarker: true, Label: "experiment-start"},
		{IntendedMS: 500, ActualMS: 503, Type: EventExit, Label: "fixation, cross"},
	})
	if err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}
	want := "intended_ms,actual_ms,type,marker,label\n" +
		"0,0,ENTER,1,experiment-start\n" +
		"500,503,EXIT,,\"fixation, cross\"\n"
	if output.String() != want {
		t.Errorf("WriteEvents:\n%s\nwant:\n%s", output.String(), want)
	}
}
