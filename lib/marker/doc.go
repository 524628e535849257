// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package marker defines the numeric namespace of event markers
// recorded into the acquisition stream.
//
// The namespace has two parts. Built-in boundary markers
// ([ExperimentStart], [ExperimentEnd], [TrialStart], [TrialEnd],
// [UserAction]) live below [CustomBase] and mean the same thing in
// every experiment. Above CustomBase, each experiment module reserves
// a [Group]: a documented base and size, plus names for the codes it
// emits. Reserved bases in this repository:
//
//	cpt  [CustomBase+0,   CustomBase+100)
//	mi   [CustomBase+100, CustomBase+200)
//
// [NewTable] assembles the namespace once at startup and refuses
// overlapping groups, so two modules can never emit the same code for
// different events. The resulting [Table] is read-only. Its
// [Table.Fingerprint] is written into every marker log: data is only
// interpretable downstream with an identical table.
package marker
