// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cpt implements a continuous performance test. Letters are
// flashed one at a time; the participant responds to the target letter
// and withholds responses to every other letter.
//
// The letter stream comes from lib/trial. In pseudo-random mode the
// number of targets is exactly round(rate × trials), shuffled; in
// independent mode each letter is a separate draw. Both are seeded
// from the host environment, so a seed reproduces a run.
//
// After a run, [Summarize] scores the session event log: omissions,
// commissions, perseverations (responses under 100 ms), detectability,
// and reaction time statistics.
package cpt
