// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command tree behind the stager binary: pflag
// parsing per command, help output, and did-you-mean suggestions for
// mistyped commands.
//
// Commands return errors. main prints them and exits 1, except for
// [UsageError] (exit 2) and [ExitError], which carries its own code
// and prints nothing.
package cli
