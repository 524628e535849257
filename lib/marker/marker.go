// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package marker

import "strconv"

// Code identifies an event kind in the acquisition stream. Codes are
// small integers so that they fit the trigger channels of biosignal
// amplifiers and eye trackers.
type Code int32

// String returns the decimal form of the code.
func (c Code) String() string { return strconv.FormatInt(int64(c), 10) }

// Built-in boundary markers. These occupy [0, CustomBase) and are
// shared by every experiment module.
const (
	// ExperimentStart brackets the first recorded stage of a run.
	ExperimentStart Code = 1

	// ExperimentEnd brackets the last recorded stage of a run.
	ExperimentEnd Code = 2

	// TrialStart marks the onset of a trial in paradigms that do not
	// define their own trial markers.
	TrialStart Code = 11

	// TrialEnd marks the end of such a trial.
	TrialEnd Code = 12

	// UserAction records a participant response that the experiment
	// does not distinguish further.
	UserAction Code = 20
)

// CustomBase is the first code available to experiment modules. Every
// module reserves a disjoint [Base, Base+Size) slice at or above it.
const CustomBase Code = 1000

// builtins lists the built-in definitions in code order.
var builtins = []Definition{
	{Code: ExperimentStart, Name: "experiment-start"},
	{Code: ExperimentEnd, Name: "experiment-end"},
	{Code: TrialStart, Name: "trial-start"},
	{Code: TrialEnd, Name: "trial-end"},
	{Code: UserAction, Name: "user-action"},
}

// Definition names one marker code.
type Definition struct {
	Code  Code   `cbor:"code"`
	Name  string `cbor:"name"`
	Group string `cbor:"group,omitempty"`
}

// Group is the slice of the custom range owned by one experiment
// module, plus the names of the codes the module uses inside it.
type Group struct {
	// Name identifies the owning module (for example "cpt").
	Name string `cbor:"name"`

	// Base is the first code of the slice. Must be >= CustomBase.
	Base Code `cbor:"base"`

	// Size is the number of codes in the slice.
	Size int32 `cbor:"size"`

	// Codes names the codes the module emits, keyed by code. Every
	// code must lie inside [Base, Base+Size).
	Codes map[Code]string `cbor:"codes,omitempty"`
}

// End returns the first code after the slice. NewTable rejects
// groups whose end does not fit in a Code.
func (g Group) End() Code { return g.Base + Code(g.Size) }

// Contains reports whether code lies inside the slice.
func (g Group) Contains(code Code) bool {
	return code >= g.Base && int64(code) < int64(g.Base)+int64(g.Size)
}

// Offset returns Base+offset. Modules declare their codes as offsets
// from their documented base so the slice can be moved in one place.
func (g Group) Offset(offset int32) Code { return g.Base + Code(offset) }
