// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package program

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/stager/lib/clock"
	"github.com/bureau-foundation/stager/lib/marker"
	"github.com/bureau-foundation/stager/lib/stage"
)

// ErrAborted is the abort cause recorded when Abort is called with a
// nil cause.
var ErrAborted = errors.New("program: aborted")

// State is the lifecycle state of a Program.
type State int32

const (
	NotStarted State = iota
	Running
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether s is Completed or Aborted.
func (s State) Terminal() bool { return s == Completed || s == Aborted }

// Entered describes a stage the scheduler has just begun.
type Entered struct {
	// Index is the 0-based position among timed (non-preload)
	// stages.
	Index int

	Stage stage.Stage

	// OnsetMS is the scheduled onset in milliseconds since the
	// timeline epoch: the previous stage's scheduled end.
	OnsetMS uint64

	// EndMS is the scheduled end of the stage. For an overrun stage
	// it is the elapsed time at which the stage was popped.
	EndMS uint64

	// At is the clock reading taken immediately before the marker
	// was emitted.
	At time.Time

	// Overrun reports that the stage was popped after its scheduled
	// end and therefore runs for zero time.
	Overrun bool
}

// Exited describes a stage the scheduler has just finished.
type Exited struct {
	Index int
	Stage stage.Stage

	// EndMS is the scheduled end offset of the stage.
	EndMS uint64

	// At is the clock reading when the wait finished.
	At time.Time

	// Aborted reports that the wait was cut short by an abort.
	Aborted bool
}

// Preloaded describes a preparation stage. Preload stages are
// neither timed nor marked; the host only gets a chance to prepare
// the cue.
type Preloaded struct {
	// Index is the 0-based position among preload stages.
	Index int

	Stage stage.Stage

	// OffsetMS is the elapsed timeline time when the stage was
	// popped.
	OffsetMS uint64
}

// Result is the terminal report of a run.
type Result struct {
	State State

	// Err is nil for Completed runs. For Aborted runs it is the
	// abort cause or the provider error that ended the run.
	Err error

	// Stages is the number of timed stages entered.
	Stages int

	// Slip is the total time by which popped stages had already
	// passed their scheduled end.
	Slip time.Duration

	// Elapsed is the timeline duration from epoch to the terminal
	// state.
	Elapsed time.Duration
}

// Session is the run context a Program drives. Started is called by
// Start before the scheduling goroutine exists; every other method is
// called from the scheduling goroutine, in timeline order. None may block:
// EmitMarker in particular is called at the instant the marker must be
// recorded.
type Session interface {
	Clock() clock.Clock
	Started(epoch time.Time)
	EmitMarker(code marker.Code, timestamp time.Time)
	StagePreloaded(Preloaded)
	StageEntered(Entered)
	StageExited(Exited)
	Finished(Result)
}

// Observer receives stage notifications after the Session. A remote
// channel uses it to acknowledge stage transitions to its peer.
// Observers share the Session's constraints: no blocking.
type Observer interface {
	StageEntered(Entered)
	StageExited(Exited)
}

// Config configures a Program.
type Config struct {
	// Session receives markers and notifications. Required.
	Session Session

	// Providers is the timeline, drained end to end.
	Providers []stage.Provider

	// Observers receive enter and exit notifications after the
	// Session.
	Observers []Observer

	// Logger receives lifecycle and overrun records. Defaults to a
	// discarding logger.
	Logger *slog.Logger
}

// Program schedules a stage timeline against a clock. A Program runs
// at most once.
type Program struct {
	session   Session
	provider  stage.Provider
	observers []Observer
	logger    *slog.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelCauseFunc
	result Result
	done   chan struct{}
}

// New returns a Program in the NotStarted state.
func New(config Config) *Program {
	if config.Session == nil {
		panic("program.New: Session is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Program{
		session:   config.Session,
		provider:  stage.Concat(config.Providers...),
		observers: append([]Observer(nil), config.Observers...),
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start records the timeline epoch and begins scheduling on a new
// goroutine. Cancelling ctx aborts the run with ctx's cause. Start is
// a no-op unless the program is NotStarted.
func (p *Program) Start(ctx context.Context) {
	p.mu.Lock()
	if p.state != NotStarted {
		p.mu.Unlock()
		return
	}
	runContext, cancel := context.WithCancelCause(ctx)
	p.cancel = cancel
	p.state = Running
	stopwatch := clock.StartStopwatch(p.session.Clock())
	p.mu.Unlock()

	p.session.Started(stopwatch.Epoch())
	p.logger.Info("stage program started", "epoch", stopwatch.Epoch())
	go p.run(runContext, stopwatch)
}

// Abort stops the run. A stage in flight is exited immediately and no
// further stage is pulled. A nil cause is recorded as ErrAborted.
// Aborting a program that never started moves it straight to Aborted
// and reports Finished from the calling goroutine. Abort is a no-op in
// terminal states.
func (p *Program) Abort(cause error) {
	if cause == nil {
		cause = ErrAborted
	}
	p.mu.Lock()
	switch p.state {
	case NotStarted:
		p.state = Aborted
		p.result = Result{State: Aborted, Err: cause}
		result := p.result
		p.mu.Unlock()
		p.logger.Info("stage program aborted before start", "cause", cause)
		p.session.Finished(result)
		close(p.done)
	case Running:
		cancel := p.cancel
		p.mu.Unlock()
		cancel(cause)
	default:
		p.mu.Unlock()
	}
}

// State returns the current lifecycle state.
func (p *Program) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Done returns a channel closed once the program reaches a terminal
// state and Finished has returned.
func (p *Program) Done() <-chan struct{} { return p.done }

// Wait blocks until the program is terminal and returns its result.
func (p *Program) Wait() Result {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Run starts the program and waits for it to finish.
func (p *Program) Run(ctx context.Context) Result {
	p.Start(ctx)
	return p.Wait()
}

// run is the scheduling loop. It is the only goroutine that calls
// the provider or the Session once the program is Running.
func (p *Program) run(ctx context.Context, stopwatch clock.Stopwatch) {
	clk := p.session.Clock()
	var (
		scheduledEnd uint64
		slip         time.Duration
		entered      int
		preloaded    int
	)

	finish := func(state State, err error) {
		result := Result{
			State:   state,
			Err:     err,
			Stages:  entered,
			Slip:    slip,
			Elapsed: stopwatch.Elapsed(),
		}
		p.mu.Lock()
		p.state = state
		p.result = result
		cancel := p.cancel
		p.mu.Unlock()

		if err != nil {
			p.logger.Warn("stage program aborted",
				"error", err, "stages", entered, "slip", slip)
		} else {
			p.logger.Info("stage program completed",
				"stages", entered, "slip", slip, "elapsed", result.Elapsed)
		}
		p.session.Finished(result)
		cancel(nil)
		close(p.done)
	}

	for {
		if ctx.Err() != nil {
			finish(Aborted, context.Cause(ctx))
			return
		}

		next, err := p.provider.Next(ctx)
		if errors.Is(err, stage.ErrExhausted) {
			finish(Completed, nil)
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				err = context.Cause(ctx)
			} else {
				err = fmt.Errorf("pulling stage %d: %w", entered, err)
			}
			finish(Aborted, err)
			return
		}

		if next.IsPreload() {
			p.session.StagePreloaded(Preloaded{
				Index:    preloaded,
				Stage:    next,
				OffsetMS: stopwatch.ElapsedMS(),
			})
			preloaded++
			continue
		}

		onset := scheduledEnd
		end := onset + next.DurationMS()
		elapsed := stopwatch.ElapsedMS()
		overrun := false
		if end < elapsed {
			overrun = true
			lag := time.Duration(elapsed-end) * time.Millisecond
			slip += lag
			p.logger.Debug("stage overrun",
				"index", entered, "scheduled_end_ms", end, "elapsed_ms", elapsed, "lag", lag)
			end = elapsed
		}

		now := clk.Now()
		if code, has := next.Marker(); has && next.IsRecorded() {
			p.session.EmitMarker(code, now)
		}
		enter := Entered{
			Index:   entered,
			Stage:   next,
			OnsetMS: onset,
			EndMS:   end,
			At:      now,
			Overrun: overrun,
		}
		p.session.StageEntered(enter)
		for _, observer := range p.observers {
			observer.StageEntered(enter)
		}

		aborted := false
		if end > elapsed {
			timer := clk.NewTimer(stopwatch.Until(end))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				aborted = true
			}
		}

		exit := Exited{
			Index:   entered,
			Stage:   next,
			EndMS:   end,
			At:      clk.Now(),
			Aborted: aborted,
		}
		p.session.StageExited(exit)
		for _, observer := range p.observers {
			observer.StageExited(exit)
		}
		entered++
		scheduledEnd = end
	}
}
