// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the presenter's key bindings.
type KeyMap struct {
	// Respond records a user action against the current stage.
	Respond key.Binding

	// Quit aborts the timeline and closes the presenter.
	Quit key.Binding
}

// DefaultKeyMap responds on space or enter.
var DefaultKeyMap = KeyMap{
	Respond: key.NewBinding(
		key.WithKeys(" ", "enter"),
		key.WithHelp("space", "respond"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "abort"),
	),
}

// ShortHelp lists the bindings for the footer.
func (keys KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{keys.Respond, keys.Quit}
}
