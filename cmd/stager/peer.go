// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/stager/cmd/stager/cli"
	"github.com/bureau-foundation/stager/lib/experiment/catalog"
	"github.com/bureau-foundation/stager/lib/process"
	"github.com/bureau-foundation/stager/lib/remote"
)

type peerOptions struct {
	network    string
	listen     string
	experiment string
	checkTable bool
	logLevel   string
	logFormat  string
}

func peerCommand(stdout io.Writer) *cli.Command {
	var options peerOptions
	return &cli.Command{
		Name:    "peer",
		Summary: "Drive a remote-driven experiment from a stage script",
		Usage:   "stager peer <script> [flags]",
		Description: `Listen for one stager client and push the stages of a JSONC stage
script to it. Every acknowledgement and user event the client sends
back is printed as it arrives.

The script lists preload cues, a stage list, and a repeat count:

    {
        "experiment": "mi",
        "preload": ["left-hand", "right-hand"],
        "repeat": 20,
        "stages": [
            {"marker": 1101, "cue": "left-hand", "duration_ms": 3000},
            {"marker": 1103, "duration_ms": 3000},
        ],
    }`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("peer", pflag.ContinueOnError)
			flagSet.StringVar(&options.network, "network", "tcp", "listen network (tcp or unix)")
			flagSet.StringVar(&options.listen, "listen", "127.0.0.1:4567", "listen address")
			flagSet.StringVar(&options.experiment, "experiment", "", "required client experiment (default: the script's)")
			flagSet.BoolVar(&options.checkTable, "check-table", true, "require the client's marker table to match this build's")
			flagSet.StringVar(&options.logLevel, "log-level", "info", "log level")
			flagSet.StringVar(&options.logFormat, "log-format", "auto", "log format (text, json, or auto)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Usage("peer takes exactly one stage script path")
			}
			return servePeer(stdout, args[0], options)
		},
	}
}

func servePeer(stdout io.Writer, scriptPath string, options peerOptions) error {
	logger, err := process.NewLogger(options.logLevel, options.logFormat)
	if err != nil {
		return cli.Usage("%v", err)
	}

	script, err := remote.ReadScript(scriptPath)
	if err != nil {
		return err
	}
	provider, err := script.Provider()
	if err != nil {
		return fmt.Errorf("%s: %w", scriptPath, err)
	}

	config := remote.ServeConfig{
		Provider:   provider,
		Experiment: options.experiment,
		Events: func(event remote.Event) {
			printPeerEvent(stdout, event)
		},
		Logger: logger,
	}
	if config.Experiment == "" {
		config.Experiment = script.Experiment
	}
	if options.checkTable {
		table, err := catalog.Default().MarkerTable()
		if err != nil {
			return err
		}
		config.MarkerTable = table.FingerprintHex()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen(options.network, options.listen)
	if err != nil {
		return fmt.Errorf("listening on %s %s: %w", options.network, options.listen, err)
	}
	logger.Info("waiting for client",
		"network", options.network,
		"address", listener.Addr().String(),
		"experiment", config.Experiment,
	)
	return remote.Serve(ctx, listener, config)
}

func printPeerEvent(stdout io.Writer, event remote.Event) {
	code := "-"
	if event.Marker != nil {
		code = event.Marker.String()
	}
	if event.Value != nil {
		fmt.Fprintf(stdout, "%8d  %-12s %6s  %v\n", event.TimelineMS, event.Type, code, event.Value)
		return
	}
	fmt.Fprintf(stdout, "%8d  %-12s %6s\n", event.TimelineMS, event.Type, code)
}
