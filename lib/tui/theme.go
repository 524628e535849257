// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme is the color palette of the presenter. All colors use
// lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	// Cue text.
	CueForeground    lipgloss.Color
	FaintText        lipgloss.Color
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// Progress bar gradient, start to end of the stage.
	ProgressStart lipgloss.Color
	ProgressEnd   lipgloss.Color

	// Response flashes: a background tint on the cue box that decays
	// after the subject responds.
	FlashResponse lipgloss.Color
	FlashLate     lipgloss.Color

	// Terminal states.
	Completed lipgloss.Color
	Aborted   lipgloss.Color
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	CueForeground:    lipgloss.Color("255"),
	FaintText:        lipgloss.Color("245"),
	HeaderForeground: lipgloss.Color("252"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	ProgressStart: lipgloss.Color("#5A56E0"),
	ProgressEnd:   lipgloss.Color("#EE6FF8"),

	FlashResponse: lipgloss.Color("58"), // dark amber
	FlashLate:     lipgloss.Color("52"), // dark red

	Completed: lipgloss.Color("114"), // green
	Aborted:   lipgloss.Color("196"), // red
}
