// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// stager runs experiment timelines: it schedules stages against the
// clock, records their markers to a marker log, and presents cues in
// the terminal. It also plays the peer side of remote-driven
// experiments and reads back the logs it wrote.
package main

import (
	"errors"
	"os"

	"github.com/bureau-foundation/stager/cmd/stager/cli"
	"github.com/bureau-foundation/stager/lib/process"
)

func main() {
	if err := run(); err != nil {
		code := 1
		var usage *cli.UsageError
		if errors.As(err, &usage) {
			code = 2
		}
		process.Exit(err, code)
	}
}

func run() error {
	return root(os.Stdout).Execute(os.Args[1:], os.Stderr)
}
