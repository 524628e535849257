// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/stager/cmd/stager/cli"
	"github.com/bureau-foundation/stager/lib/config"
	"github.com/bureau-foundation/stager/lib/experiment"
	"github.com/bureau-foundation/stager/lib/experiment/catalog"
	"github.com/bureau-foundation/stager/lib/markerlog"
	"github.com/bureau-foundation/stager/lib/process"
	"github.com/bureau-foundation/stager/lib/program"
	"github.com/bureau-foundation/stager/lib/session"
	"github.com/bureau-foundation/stager/lib/tui"
	"github.com/bureau-foundation/stager/lib/version"
)

type runOptions struct {
	configPath string
	experiment string
	seed       uint64
	terminalUI bool
	logOutput  string
}

func runCommand(stdout io.Writer) *cli.Command {
	var options runOptions
	return &cli.Command{
		Name:    "run",
		Summary: "Run an experiment timeline",
		Description: `Run the experiment named in the config file. Markers are recorded to
the configured marker log and the event log is saved when the run
ends, whether it completed or was aborted.

Without --tui, each line read from stdin is a response. With --tui the
cue is shown full screen and space or enter responds; q aborts.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.StringVar(&options.configPath, "config", "", "config file (default: $STAGER_CONFIG)")
			flagSet.StringVar(&options.experiment, "experiment", "", "override experiment.name")
			flagSet.Uint64Var(&options.seed, "seed", 0, "override experiment.seed")
			flagSet.BoolVar(&options.terminalUI, "tui", false, "present cues in a full-screen terminal UI")
			flagSet.StringVar(&options.logOutput, "log-output", "", "write JSON log records to this file (with --tui, logs are otherwise discarded)")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Run the configured experiment in the terminal UI", Command: "stager run --config stager.yaml --tui"},
			{Description: "Replay a generated CPT timeline", Command: "stager run --config cpt.yaml --seed 1234"},
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Usage("unexpected argument: %s", args[0])
			}
			return runExperiment(stdout, options)
		},
	}
}

func loadConfig(options runOptions) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if options.configPath != "" {
		cfg, err = config.LoadFile(options.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if options.experiment != "" {
		cfg.Experiment.Name = options.experiment
	}
	if options.seed != 0 {
		cfg.Experiment.Seed = options.seed
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config:\n%w", err)
	}
	return cfg, nil
}

func newRunLogger(cfg *config.Config, options runOptions) (*slog.Logger, func(), error) {
	if options.logOutput != "" {
		level, err := process.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return nil, nil, err
		}
		file, err := os.Create(options.logOutput)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
		return slog.New(handler), func() { file.Close() }, nil
	}
	if options.terminalUI {
		// stderr belongs to the alternate screen.
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	logger, err := process.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() {}, nil
}

func runExperiment(stdout io.Writer, options runOptions) error {
	cfg, err := loadConfig(options)
	if err != nil {
		return err
	}
	logger, closeLog, err := newRunLogger(cfg, options)
	if err != nil {
		return err
	}
	defer closeLog()

	seed := cfg.Experiment.Seed
	if seed == 0 {
		seed = rand.Uint64()
		logger.Info("picked a random seed", "seed", seed)
	}

	registry := catalog.Default()
	table, err := registry.MarkerTable()
	if err != nil {
		return err
	}
	environment := experiment.Environment{
		Logger:        logger,
		Seed:          seed,
		MarkerTable:   table.FingerprintHex(),
		RemoteNetwork: cfg.Remote.Network,
		RemoteAddress: cfg.Remote.Address,
	}
	built, err := registry.Build(cfg.Experiment.Name, &cfg.Experiment.Params, environment)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timeline, err := built.Timeline(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := timeline.Close(); err != nil {
			logger.Warn("closing timeline", "error", err)
		}
	}()

	if err := cfg.EnsurePaths(); err != nil {
		return err
	}
	prepareProcess(cfg.Session, logger)

	var writer *markerlog.Writer
	if cfg.Session.MarkerLog != "" {
		compression, err := markerlog.ParseCompression(cfg.Session.Compression)
		if err != nil {
			return err
		}
		writer, err = markerlog.Create(cfg.Session.MarkerLog, markerlog.Header{
			CreatedUnixNS:    time.Now().UnixNano(),
			Experiment:       built.Name(),
			TableFingerprint: table.FingerprintHex(),
			Compression:      compression,
			Seed:             seed,
			Writer:           version.Writer(),
		})
		if err != nil {
			return err
		}
	}

	var relay *tui.Relay
	sessionConfig := session.Config{
		Table:  table,
		Buffer: cfg.Session.MarkerBuffer,
		Logger: logger,
	}
	if writer != nil {
		sessionConfig.Writer = writer
	}
	if options.terminalUI {
		relay = tui.NewRelay(0, logger)
		sessionConfig.Listener = relay.Listener()
	}
	runSession := session.New(sessionConfig)

	stageProgram := program.New(program.Config{
		Session:   runSession,
		Providers: timeline.Providers,
		Observers: timeline.Observers,
		Logger:    logger,
	})

	respond := func(label string) {
		runSession.UserAction(timeline.UserMarker, label)
		if timeline.Input == nil {
			return
		}
		if err := timeline.Input(label, runSession.Elapsed()); err != nil {
			logger.Warn("forwarding response", "error", err)
		}
	}

	logger.Info("starting experiment",
		"experiment", built.Name(),
		"seed", seed,
		"marker_log", cfg.Session.MarkerLog,
	)
	stageProgram.Start(ctx)
	watchContext, stopWatching := context.WithCancel(ctx)
	defer stopWatching()
	timeline.WatchFailures(watchContext, stageProgram.Abort)

	if options.terminalUI {
		model := tui.NewModel(tui.Config{
			Title:   built.Name(),
			Table:   table,
			Respond: respond,
			Abort:   func() { stageProgram.Abort(nil) },
		})
		presenter := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		go relay.Run(ctx, presenter.Send)
		if _, err := presenter.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			logger.Warn("terminal UI stopped", "error", err)
		}
		// The presenter can exit first on a second quit key.
		stageProgram.Abort(nil)
	} else {
		go readResponses(os.Stdin, respond)
	}

	result := stageProgram.Wait()
	stats := runSession.Close()
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("closing marker log", "error", err)
		}
	}

	events := runSession.Events()
	if cfg.Session.EventLog != "" {
		if err := session.SaveEvents(cfg.Session.EventLog, events); err != nil {
			logger.Error("saving event log", "error", err)
		}
	}

	printReport(stdout, built.Name(), result, stats, summarize(timeline, events))

	switch {
	case result.State == program.Completed:
		return nil
	case errors.Is(result.Err, program.ErrAborted), errors.Is(result.Err, context.Canceled):
		return &cli.ExitError{Code: 130}
	default:
		return fmt.Errorf("timeline aborted: %w", result.Err)
	}
}

// prepareProcess applies the realtime settings. Failures leave the
// run at normal priority.
func prepareProcess(settings config.SessionConfig, logger *slog.Logger) {
	if settings.LockMemory {
		if err := process.LockMemory(); err != nil {
			logger.Warn("running without locked memory", "error", err)
		}
	}
	if settings.Nice != 0 {
		if err := process.SetNice(settings.Nice); err != nil {
			logger.Warn("running at normal priority", "error", err)
		}
	}
}

// readResponses turns each stdin line into a response. An empty line
// is reported as "enter".
func readResponses(input io.Reader, respond func(string)) {
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		label := strings.TrimSpace(scanner.Text())
		if label == "" {
			label = "enter"
		}
		respond(label)
	}
}

func summarize(timeline *experiment.Timeline, events []session.Event) []experiment.SummaryItem {
	if timeline.Summarize == nil {
		return nil
	}
	return timeline.Summarize(events)
}

func printReport(stdout io.Writer, name string, result program.Result, stats session.ForwarderStats, summary []experiment.SummaryItem) {
	tw := tabwriter.NewWriter(stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "experiment:\t%s\n", name)
	fmt.Fprintf(tw, "state:\t%s\n", result.State)
	if result.Err != nil {
		fmt.Fprintf(tw, "cause:\t%v\n", result.Err)
	}
	fmt.Fprintf(tw, "stages:\t%d\n", result.Stages)
	fmt.Fprintf(tw, "elapsed:\t%s\n", result.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(tw, "slip:\t%s\n", result.Slip.Round(time.Microsecond))
	fmt.Fprintf(tw, "markers:\t%d written, %d dropped, %d failed\n", stats.Written, stats.Dropped, stats.Failed)
	for _, item := range summary {
		fmt.Fprintf(tw, "%s:\t%s\n", strings.ToLower(item.Label), item.Value)
	}
	tw.Flush()
}
