// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for the stager
// binary. These functions centralize the two legitimate raw I/O
// patterns that exist before or after the structured logger:
//
//   - Error reporting to stderr with the right exit code once a
//     command has returned ([Exit]).
//   - Construction of the structured logger itself from the logging
//     configuration, choosing a human-readable or JSON handler.
//
// It also prepares the process for timing-sensitive runs: [LockMemory]
// pins pages in RAM and [SetNice] raises the scheduling priority. Both
// are best-effort for callers; without privileges they fail and the
// run continues at normal priority.
package process
