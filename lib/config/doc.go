// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for stager.
//
// Configuration is loaded from a single file specified by either the
// STAGER_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks and no automatic file
// search. Files ending in .json or .jsonc are accepted too; comments
// and trailing commas are stripped before parsing.
//
// The experiment.params subtree is kept as a yaml.Node and decoded by
// the selected experiment module, so each module owns its own
// settings and defaults.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${STAGER_DATA}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Experiment, Paths, Session, Remote, Logging
//   - [Default] -- returns a Config with every default filled in
//   - [Load] and [LoadFile] -- the two entry points for loading
package config
