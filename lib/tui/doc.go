// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui presents a running timeline in the terminal. Built on
// bubbletea (Elm architecture), the presenter [Model] shows the
// current stage's cue centered on screen with a progress bar for the
// stage's scheduled span, and turns key presses into user responses.
//
// The scheduler never talks to bubbletea directly. Session callbacks
// feed a [Relay], which queues them without blocking and delivers
// them to the program from its own goroutine. Responses flash the cue
// box through a [FlashTracker] so the subject sees that the press was
// taken.
package tui
