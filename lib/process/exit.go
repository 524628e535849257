// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitCoder is implemented by errors that have already reported
// themselves and only carry the exit code.
type ExitCoder interface {
	ExitCode() int
}

// Exit ends the process for an error returned by a command. An
// ExitCoder exits silently with its own code; any other error is
// written to stderr as "error: err" and exits with code.
func Exit(err error, code int) {
	os.Exit(report(os.Stderr, err, code))
}

// report writes err unless it is an ExitCoder and returns the exit
// code to use.
func report(stderr io.Writer, err error, code int) int {
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return code
}
