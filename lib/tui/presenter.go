// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/stager/lib/marker"
	"github.com/bureau-foundation/stager/lib/program"
)

// progressTickInterval is the re-render interval while a timed stage
// is on screen.
const progressTickInterval = 50 * time.Millisecond

// EnteredMsg, ExitedMsg, PreloadedMsg, and FinishedMsg carry the
// scheduler's notifications into the bubbletea loop. A [Relay]
// produces them.
type (
	EnteredMsg   program.Entered
	ExitedMsg    program.Exited
	PreloadedMsg program.Preloaded
	FinishedMsg  program.Result
)

// tickMsg drives progress and flash animation.
type tickMsg struct{}

// Config configures a presenter Model.
type Config struct {
	// Title is shown in the header, usually the experiment name.
	Title string

	// Table names stage markers in the header. Defaults to the
	// built-in markers.
	Table *marker.Table

	Theme Theme
	Keys  KeyMap

	// Respond is called on the Respond binding with the key that
	// triggered it. It runs on the bubbletea goroutine.
	Respond func(label string)

	// Abort is called once on the Quit binding while the timeline is
	// still running. The presenter then waits for FinishedMsg.
	Abort func()

	// Output and Profile select the color renderer. Output defaults
	// to stdout; Profile defaults to detection on Output.
	Output  io.Writer
	Profile *termenv.Profile

	// Now defaults to time.Now.
	Now func() time.Time
}

// Model is the bubbletea model that presents a running timeline: the
// current cue centered on screen, the stage's progress, and feedback
// for each response.
type Model struct {
	config   Config
	renderer *lipgloss.Renderer
	progress progress.Model
	flash    FlashTracker

	width  int
	height int

	current   *program.Entered
	prepared  []string
	stages    int
	responses int
	aborting  bool
	result    *program.Result

	tickRunning bool
}

// NewModel returns a presenter for config. Theme and Keys default to
// DefaultTheme and DefaultKeyMap when left zero.
func NewModel(config Config) Model {
	if config.Table == nil {
		config.Table = marker.MustNewTable()
	}
	if config.Theme == (Theme{}) {
		config.Theme = DefaultTheme
	}
	if len(config.Keys.Respond.Keys()) == 0 {
		config.Keys = DefaultKeyMap
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	var options []termenv.OutputOption
	if config.Profile != nil {
		options = append(options, termenv.WithProfile(*config.Profile))
	}
	return Model{
		config:   config,
		renderer: lipgloss.NewRenderer(config.Output, options...),
		progress: progress.New(
			progress.WithGradient(string(config.Theme.ProgressStart), string(config.Theme.ProgressEnd)),
			progress.WithoutPercentage(),
		),
		width:  80,
		height: 24,
	}
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd { return nil }

// Result returns the terminal report once FinishedMsg has arrived.
func (model Model) Result() (program.Result, bool) {
	if model.result == nil {
		return program.Result{}, false
	}
	return *model.result, true
}

// Responses returns the number of responses recorded.
func (model Model) Responses() int { return model.responses }

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		return model.handleKey(message)

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.progress.Width = max(message.Width-8, 10)

	case PreloadedMsg:
		model.prepared = append(model.prepared, cueText(message.Stage.Cue()))

	case EnteredMsg:
		entered := program.Entered(message)
		model.current = &entered
		model.stages++
		model.prepared = nil
		return model.startTick()

	case ExitedMsg:
		if model.current != nil && model.current.Index == message.Index {
			model.current = nil
		}

	case FinishedMsg:
		result := program.Result(message)
		model.result = &result
		model.current = nil
		return model, tea.Quit

	case tickMsg:
		return model.handleTick()
	}
	return model, nil
}

func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.config.Keys.Quit):
		if model.result != nil || model.aborting {
			return model, tea.Quit
		}
		model.aborting = true
		if model.config.Abort != nil {
			model.config.Abort()
		}
		return model, nil

	case key.Matches(message, model.config.Keys.Respond):
		if model.result != nil {
			return model, nil
		}
		model.responses++
		kind := FlashResponse
		if model.current == nil {
			kind = FlashLate
		}
		model.flash.Ignite(kind, model.config.Now())
		if model.config.Respond != nil {
			model.config.Respond(responseLabel(message))
		}
		return model.startTick()
	}
	return model, nil
}

// startTick starts the animation tick if it isn't already running.
func (model Model) startTick() (tea.Model, tea.Cmd) {
	if model.tickRunning {
		return model, nil
	}
	model.tickRunning = true
	return model, scheduleTick()
}

// handleTick keeps ticking while a timed stage or a flash is on
// screen; otherwise it stops the timer.
func (model Model) handleTick() (tea.Model, tea.Cmd) {
	now := model.config.Now()
	timed := model.current != nil && model.current.Stage.DurationMS() > 0
	if model.flash.Live(now) || timed {
		return model, scheduleTick()
	}
	model.tickRunning = false
	return model, nil
}

func scheduleTick() tea.Cmd {
	return tea.Tick(progressTickInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// View implements tea.Model.
func (model Model) View() string {
	theme := model.config.Theme
	faint := model.renderer.NewStyle().Foreground(theme.FaintText)

	sections := []string{
		model.renderHeader(),
		model.renderer.NewStyle().
			Foreground(theme.BorderColor).
			Render(strings.Repeat("─", model.width)),
	}

	bodyHeight := max(model.height-5, 3)
	sections = append(sections, model.renderer.Place(
		model.width, bodyHeight,
		lipgloss.Center, lipgloss.Center,
		model.renderCue(),
	))

	sections = append(sections, "  "+model.renderProgress())

	help := fmt.Sprintf(" %s %s  %s %s",
		model.config.Keys.Respond.Help().Key, model.config.Keys.Respond.Help().Desc,
		model.config.Keys.Quit.Help().Key, model.config.Keys.Quit.Help().Desc)
	sections = append(sections, faint.Render(help))

	return strings.Join(sections, "\n")
}

func (model Model) renderHeader() string {
	theme := model.config.Theme
	style := model.renderer.NewStyle().Bold(true).Foreground(theme.HeaderForeground)

	status := "waiting"
	switch {
	case model.result != nil && model.result.State == program.Completed:
		status = model.renderer.NewStyle().Foreground(theme.Completed).Render("completed")
	case model.result != nil:
		status = model.renderer.NewStyle().Foreground(theme.Aborted).Render("aborted")
	case model.aborting:
		status = "aborting"
	case model.current != nil:
		status = fmt.Sprintf("stage %d", model.current.Index+1)
		if code, ok := model.current.Stage.Marker(); ok {
			status += " " + model.config.Table.Name(code)
		}
	}

	line := fmt.Sprintf(" %s  %s  responses %d", model.config.Title, status, model.responses)
	if ansi.StringWidth(line) > model.width && model.width > 1 {
		line = ansi.Truncate(line, model.width-1, "…")
	}
	return style.Render(line)
}

func (model Model) renderCue() string {
	theme := model.config.Theme
	box := model.renderer.NewStyle().
		Padding(1, 4).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.BorderColor).
		Foreground(theme.CueForeground).
		Bold(true)

	now := model.config.Now()
	if model.flash.Intensity(now) > 0 {
		tint := theme.FlashResponse
		if model.flash.Kind() == FlashLate {
			tint = theme.FlashLate
		}
		box = box.Background(tint)
	}

	switch {
	case model.current != nil:
		text := cueText(model.current.Stage.Cue())
		if text == "" {
			text = "+"
		}
		return box.Render(text)
	case len(model.prepared) > 0:
		return model.renderer.NewStyle().Foreground(theme.FaintText).
			Render("preparing " + strings.Join(model.prepared, ", "))
	case model.result != nil:
		return box.Render(model.result.State.String())
	default:
		return model.renderer.NewStyle().Foreground(theme.FaintText).Render("waiting for the first stage")
	}
}

// renderProgress draws how far the current stage is through its
// scheduled duration.
func (model Model) renderProgress() string {
	if model.current == nil {
		return model.progress.ViewAs(0)
	}
	return model.progress.ViewAs(stageProgress(*model.current, model.config.Now()))
}

// stageProgress returns the fraction of entered's scheduled span that
// has elapsed at now, clamped to [0, 1]. Zero-length stages are
// complete.
func stageProgress(entered program.Entered, now time.Time) float64 {
	span := time.Duration(entered.EndMS-entered.OnsetMS) * time.Millisecond
	if entered.Overrun || span <= 0 {
		return 1
	}
	fraction := float64(now.Sub(entered.At)) / float64(span)
	return min(max(fraction, 0), 1)
}

// responseLabel names the key that triggered a response.
func responseLabel(message tea.KeyMsg) string {
	if message.Type == tea.KeySpace || message.String() == " " {
		return "space"
	}
	return message.String()
}

func cueText(cue any) string {
	if cue == nil {
		return ""
	}
	if stringer, ok := cue.(fmt.Stringer); ok {
		return stringer.String()
	}
	return fmt.Sprint(cue)
}
