// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"

	"github.com/bureau-foundation/stager/cmd/stager/cli"
	"github.com/bureau-foundation/stager/lib/version"
)

// root builds the command tree. Command output goes to stdout.
func root(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:        "stager",
		Description: "stager schedules experiment timelines and records their markers.",
		Subcommands: []*cli.Command{
			runCommand(stdout),
			peerCommand(stdout),
			inspectCommand(stdout),
			markersCommand(stdout),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					if len(args) > 0 {
						return cli.Usage("unexpected argument: %s", args[0])
					}
					fmt.Fprintf(stdout, "stager %s\n", version.Full())
					return nil
				},
			},
		},
	}
}
