// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package experiment defines how paradigm modules plug into the host.
//
// A [Factory] turns a YAML params node into an [Experiment]; the
// experiment turns into a [Timeline] once per run. The [Registry]
// collects factories by name and assembles the marker table from the
// groups they declare, so two modules that claim overlapping code
// slices fail at startup rather than corrupting a recording.
//
// Params are decoded strictly with [DecodeParams]: the module fills a
// struct with its defaults, and unknown keys are an error.
//
// The built-in modules live in sub-packages; the catalog package
// registers all of them.
package experiment
