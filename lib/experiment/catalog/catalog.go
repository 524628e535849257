// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog registers the built-in experiment modules.
package catalog

import (
	"github.com/bureau-foundation/stager/lib/experiment"
	"github.com/bureau-foundation/stager/lib/experiment/cpt"
	"github.com/bureau-foundation/stager/lib/experiment/mi"
	"github.com/bureau-foundation/stager/lib/experiment/textdisplay"
)

// Default returns a registry holding every built-in module.
func Default() *experiment.Registry {
	registry := experiment.NewRegistry()
	registry.MustRegister(
		textdisplay.Factory{},
		cpt.Factory{},
		mi.Factory{},
	)
	return registry
}
