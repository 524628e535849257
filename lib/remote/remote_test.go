// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/stager/lib/clock"
	"github.com/bureau-foundation/stager/lib/codec"
	"github.com/bureau-foundation/stager/lib/marker"
	"github.com/bureau-foundation/stager/lib/program"
	"github.com/bureau-foundation/stager/lib/stage"
	"github.com/bureau-foundation/stager/lib/testutil"
)

func listen(t *testing.T) (net.Listener, string) {
	t.Helper()
	path := filepath.Join(testutil.SocketDir(t), "peer.sock")
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })
	return listener, path
}

func dial(t *testing.T, path string, markerTable string) *Channel {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	channel, err := Dial(ctx, DialConfig{
		Network:     "unix",
		Address:     path,
		Experiment:  "mi",
		MarkerTable: markerTable,
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { channel.Close() })
	return channel
}

// rawPeer accepts one client, reports its Hello, writes frames, and
// hangs up.
func rawPeer(t *testing.T, listener net.Listener, frames ...Frame) <-chan Hello {
	t.Helper()
	hellos := make(chan Hello, 1)
	go func() {
		connection, err := listener.Accept()
		if err != nil {
			return
		}
		defer connection.Close()
		var hello Hello
		if err := codec.NewDecoder(connection).Decode(&hello); err != nil {
			return
		}
		hellos <- hello
		encoder := codec.NewEncoder(connection)
		for _, frame := range frames {
			if err := encoder.Encode(frame); err != nil {
				return
			}
		}
	}()
	return hellos
}

func stageFrame(description StageDescription) Frame {
	return Frame{Type: FrameStage, Stage: &description}
}

func codePointer(code marker.Code) *marker.Code { return &code }

// timeline is a program.Session that records notifications as text.
type timeline struct {
	clock clock.Clock

	mu     sync.Mutex
	events []string
}

func (s *timeline) Clock() clock.Clock { return s.clock }
func (s *timeline) Started(time.Time) {}
func (s *timeline) EmitMarker(marker.Code, time.Time) {}
func (s *timeline) StagePreloaded(program.Preloaded) {}
func (s *timeline) Finished(result program.Result) { s.record(result.State.String()) }
func (s *timeline) StageEntered(entered program.Entered) { s.record("enter " + markerText(entered.Stage)) }
func (s *timeline) StageExited(exited program.Exited) {
	line := "exit " + markerText(exited.Stage)
	if exited.Aborted {
		line += " aborted"
	}
	s.record(line)
}

func (s *timeline) record(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, line)
}

func (s *timeline) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func markerText(s stage.Stage) string {
	if code, has := s.Marker(); has {
		return code.String()
	}
	return "-"
}

func TestServeRoundTrip(t *testing.T) {
	listener, path := listen(t)

	var (
		mu     sync.Mutex
		events []string
	)
	served := make(chan error, 1)
	go func() {
		served <- Serve(context.Background(), listener, ServeConfig{
			Provider: stage.Static(
				stage.Marked(1101, 0).WithCue("left-hand.gif"),
				stage.Marked(1102, 0),
			),
			Experiment:  "mi",
			MarkerTable: "table-1",
			Events: func(event Event) {
				mu.Lock()
				defer mu.Unlock()
				line := event.Type
				if event.Marker != nil {
					line += " " + event.Marker.String()
				}
				if event.Value != nil {
					line += fmt.Sprintf(" %v", event.Value)
				}
				events = append(events, line)
			},
		})
	}()

	channel := dial(t, path, "table-1")
	session := &timeline{clock: clock.Fake(time.Unix(0, 0))}
	driver := program.New(program.Config{
		Session:   session,
		Providers: []stage.Provider{channel.Provider()},
		Observers: []program.Observer{channel},
	})

	result := driver.Run(context.Background())
	if result.State != program.Completed {
		t.Fatalf("result = %+v", result)
	}
	if err := channel.Send(Event{Type: EventSelection, Value: "left"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := channel.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := testutil.RequireReceive(t, served, 5*time.Second, "serve returned"); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{
		"stage-enter 1101", "stage-exit 1101",
		"stage-enter 1102", "stage-exit 1102",
		"selection left",
	}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Errorf("peer events = %v, want %v", events, want)
	}

	if err := channel.Send(Event{Type: EventInput}); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("Send after Close: err = %v, want ErrChannelClosed", err)
	}
}

// hangingPeer accepts one client, writes frames, and holds the
// connection open until hangUp is closed.
func hangingPeer(listener net.Listener, hangUp <-chan struct{}, frames ...Frame) {
	go func() {
		connection, err := listener.Accept()
		if err != nil {
			return
		}
		defer connection.Close()
		var hello Hello
		if err := codec.NewDecoder(connection).Decode(&hello); err != nil {
			return
		}
		encoder := codec.NewEncoder(connection)
		for _, frame := range frames {
			if err := encoder.Encode(frame); err != nil {
				return
			}
		}
		<-hangUp
	}()
}

func TestChannelFailureAbortsStageInFlight(t *testing.T) {
	listener, path := listen(t)
	hangUp := make(chan struct{})
	hangingPeer(listener, hangUp,
		stageFrame(StageDescription{Marker: codePointer(1101), DurationMS: 1000}),
		stageFrame(StageDescription{Marker: codePointer(1102), DurationMS: 1000}),
		stageFrame(StageDescription{Marker: codePointer(1103), DurationMS: 1000}),
	)
	channel := dial(t, path, "")

	fake := clock.Fake(time.Unix(0, 0))
	session := &timeline{clock: fake}
	driver := program.New(program.Config{
		Session:   session,
		Providers: []stage.Provider{channel.Provider(), stage.Mark(99)},
	})
	driver.Start(context.Background())
	go func() {
		select {
		case <-channel.Failed():
			driver.Abort(channel.Err())
		case <-driver.Done():
		}
	}()

	// Stage 1101 is waiting out its duration; the clock never moves.
	fake.WaitForTimers(1)
	close(hangUp)
	testutil.RequireClosed(t, driver.Done(), 5*time.Second, "program aborted by the channel failure")

	result := driver.Wait()
	if result.State != program.Aborted || result.Stages != 1 {
		t.Fatalf("result = %+v, want aborted after one stage", result)
	}
	var channelError *ChannelError
	if !errors.As(result.Err, &channelError) || channelError.Op != "read" {
		t.Fatalf("Err = %v, want *ChannelError from read", result.Err)
	}
	if got := strings.Join(session.snapshot(), ","); got != "enter 1101,exit 1101 aborted,aborted" {
		t.Errorf("events = %s", got)
	}

	// The terminal result is sticky.
	if _, err := channel.Provider().Next(context.Background()); !errors.As(err, &channelError) {
		t.Errorf("Next after failure: err = %v", err)
	}
}

func TestFailedChannelDiscardsQueuedStages(t *testing.T) {
	listener, path := listen(t)
	rawPeer(t, listener,
		stageFrame(StageDescription{Marker: codePointer(1101), DurationMS: 1000}),
		stageFrame(StageDescription{Marker: codePointer(1102), DurationMS: 1000}),
	)
	channel := dial(t, path, "")

	if err := channel.Err(); err != nil {
		t.Fatalf("Err before failure = %v", err)
	}
	testutil.RequireClosed(t, channel.Failed(), 5*time.Second, "channel failed")

	_, err := channel.Provider().Next(context.Background())
	var channelError *ChannelError
	if !errors.As(err, &channelError) || channelError.Op != "read" {
		t.Fatalf("Next = %v, want the read failure instead of a queued stage", err)
	}
	if !errors.Is(channel.Err(), err) {
		t.Errorf("Err = %v, want %v", channel.Err(), err)
	}
}

func TestPeerEndDoesNotFail(t *testing.T) {
	listener, path := listen(t)
	rawPeer(t, listener,
		stageFrame(StageDescription{Marker: codePointer(1101)}),
		Frame{Type: FrameEnd},
	)
	channel := dial(t, path, "")

	stages, err := stage.Collect(context.Background(), channel.Provider(), 0)
	if err != nil || len(stages) != 1 {
		t.Fatalf("Collect = %d stages, %v", len(stages), err)
	}
	select {
	case <-channel.Failed():
		t.Errorf("a normal end reported failure: %v", channel.Err())
	default:
	}
}

func TestChannelFatalFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		op    string
	}{
		{"error frame", Frame{Type: FrameError, Error: "trial server crashed"}, "peer"},
		{"unknown type", Frame{Type: "heartbeat"}, "decode"},
		{"stage without body", Frame{Type: FrameStage}, "decode"},
		{"preload with marker", stageFrame(StageDescription{Marker: codePointer(1), Preload: true}), "decode"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			listener, path := listen(t)
			rawPeer(t, listener, test.frame)
			channel := dial(t, path, "")

			_, err := channel.Provider().Next(context.Background())
			var channelError *ChannelError
			if !errors.As(err, &channelError) {
				t.Fatalf("err = %v, want *ChannelError", err)
			}
			if channelError.Op != test.op {
				t.Errorf("Op = %q, want %q", channelError.Op, test.op)
			}
		})
	}
}

func TestPreloadDescriptionBuildsPreloadStage(t *testing.T) {
	listener, path := listen(t)
	rawPeer(t, listener,
		stageFrame(StageDescription{Cue: "right-hand.gif", Preload: true}),
		stageFrame(StageDescription{Marker: codePointer(1103), DurationMS: 3000, NotRecorded: true}),
		Frame{Type: FrameEnd},
	)
	channel := dial(t, path, "")

	stages, err := stage.Collect(context.Background(), channel.Provider(), 0)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(stages) != 2 {
		t.Fatalf("got %d stages", len(stages))
	}
	if !stages[0].IsPreload() || stages[0].Cue() != "right-hand.gif" {
		t.Errorf("stage 0 = %v", stages[0])
	}
	if stages[1].IsRecorded() || stages[1].DurationMS() != 3000 {
		t.Errorf("stage 1 = %v", stages[1])
	}
}

func TestNextHonoursContext(t *testing.T) {
	listener, path := listen(t)
	hang := make(chan struct{})
	defer close(hang)
	go func() {
		connection, err := listener.Accept()
		if err != nil {
			return
		}
		defer connection.Close()
		<-hang
	}()
	channel := dial(t, path, "")

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := channel.Provider().Next(ctx)
		result <- err
	}()
	cancel()
	if err := testutil.RequireReceive(t, result, 5*time.Second, "Next returned"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestServeRejectsMarkerTableMismatch(t *testing.T) {
	listener, path := listen(t)
	served := make(chan error, 1)
	go func() {
		served <- Serve(context.Background(), listener, ServeConfig{
			Provider:    stage.Mark(1),
			MarkerTable: "peer-table",
		})
	}()

	channel := dial(t, path, "client-table")
	_, err := channel.Provider().Next(context.Background())
	var channelError *ChannelError
	if !errors.As(err, &channelError) || channelError.Op != "peer" {
		t.Fatalf("err = %v, want peer *ChannelError", err)
	}
	if !strings.Contains(err.Error(), "marker table mismatch") {
		t.Errorf("err = %v", err)
	}
	if err := testutil.RequireReceive(t, served, 5*time.Second, "serve returned"); err == nil {
		t.Error("Serve accepted a mismatched marker table")
	}
}

func TestServeProviderErrorSendsErrorFrame(t *testing.T) {
	listener, path := listen(t)
	failure := errors.New("script exhausted its cue list")
	served := make(chan error, 1)
	go func() {
		served <- Serve(context.Background(), listener, ServeConfig{
			Provider: stage.Concat(
				stage.Mark(1),
				stage.ProviderFunc(func(context.Context) (stage.Stage, error) { return stage.Stage{}, failure }),
			),
		})
	}()

	channel := dial(t, path, "")
	stages, err := stage.Collect(context.Background(), channel.Provider(), 0)
	if len(stages) > 1 {
		t.Errorf("received %d stages, the peer sent one before failing", len(stages))
	}
	if !strings.Contains(fmt.Sprint(err), failure.Error()) {
		t.Errorf("err = %v", err)
	}
	if err := testutil.RequireReceive(t, served, 5*time.Second, "serve returned"); !errors.Is(err, failure) {
		t.Errorf("Serve err = %v", err)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	listener, _ := listen(t)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- Serve(ctx, listener, ServeConfig{Provider: stage.Mark(1)})
	}()
	cancel()
	if err := testutil.RequireReceive(t, served, 5*time.Second, "serve returned"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestSendReportsFullQueue(t *testing.T) {
	client, server := net.Pipe()
	channel := newChannel(client, DialConfig{OutboundBuffer: 1})

	// Nothing reads the server end, so the writer blocks on its first
	// event and the one-slot queue fills behind it.
	var err error
	for range 3 {
		if err = channel.Send(Event{Type: EventInput}); errors.Is(err, ErrOutboundFull) {
			break
		}
	}
	if !errors.Is(err, ErrOutboundFull) {
		t.Fatalf("err = %v, want ErrOutboundFull", err)
	}

	server.Close()
	channel.Close()
	if _, err := channel.Provider().Next(context.Background()); !errors.Is(err, ErrChannelClosed) && !errors.As(err, new(*ChannelError)) {
		t.Errorf("Next after Close: err = %v", err)
	}
}

func TestScriptProvider(t *testing.T) {
	script, err := ParseScript([]byte(`{
		// motor imagery practice block
		"experiment": "mi",
		"preload": ["left-hand.gif", "right-hand.gif"],
		"repeat": 2,
		"stages": [
			{"marker": 1101, "cue": "left-hand.gif", "duration_ms": 3000},
			{"marker": 1103, "duration_ms": 3000, "not_recorded": true},
		],
	}`))
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	if script.Experiment != "mi" {
		t.Errorf("Experiment = %q", script.Experiment)
	}
	provider, err := script.Provider()
	if err != nil {
		t.Fatalf("Provider: %v", err)
	}
	stages, err := stage.Collect(context.Background(), provider, 0)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(stages) != 6 {
		t.Fatalf("got %d stages, want 6", len(stages))
	}
	if !stages[0].IsPreload() || !stages[1].IsPreload() {
		t.Error("preload stages missing")
	}
	for i, want := range []marker.Code{1101, 1103, 1101, 1103} {
		code, _ := stages[i+2].Marker()
		if code != want {
			t.Errorf("stage %d marker = %d, want %d", i+2, code, want)
		}
	}
	if stages[3].IsRecorded() {
		t.Error("not_recorded ignored")
	}

	if _, err := ParseScript([]byte(`{"stages": [`)); err == nil {
		t.Error("ParseScript accepted truncated input")
	}
	bad := &Script{Repeat: -1}
	if _, err := bad.Provider(); err == nil {
		t.Error("negative repeat accepted")
	}
}
