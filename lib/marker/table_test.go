// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package marker

import (
	"math"
	"strings"
	"testing"
)

func cptGroup() Group {
	return Group{
		Name: "cpt",
		Base: CustomBase,
		Size: 100,
		Codes: map[Code]string{
			CustomBase + 10: "cpt-target-display",
			CustomBase + 11: "cpt-non-target-display",
		},
	}
}

func miGroup() Group {
	return Group{
		Name:  "mi",
		Base:  CustomBase + 100,
		Size:  100,
		Codes: map[Code]string{CustomBase + 101: "mi-cue-a"},
	}
}

func TestNewTableLookup(t *testing.T) {
	table, err := NewTable(miGroup(), cptGroup())
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	definition, ok := table.Lookup(CustomBase + 10)
	if !ok {
		t.Fatal("cpt target display not defined")
	}
	if definition.Group != "cpt" || definition.Name != "cpt-target-display" {
		t.Errorf("definition = %+v", definition)
	}

	if name := table.Name(ExperimentStart); name != "experiment-start" {
		t.Errorf("Name(ExperimentStart) = %q", name)
	}
	if name := table.Name(CustomBase + 150); name != "mi+50" {
		t.Errorf("Name(unnamed mi code) = %q, want mi+50", name)
	}
	if name := table.Name(999); name != "unknown-999" {
		t.Errorf("Name(999) = %q", name)
	}

	groups := table.Groups()
	if len(groups) != 2 || groups[0].Name != "cpt" || groups[1].Name != "mi" {
		t.Errorf("Groups() not ordered by base: %+v", groups)
	}

	definitions := table.Definitions()
	for i := 1; i < len(definitions); i++ {
		if definitions[i-1].Code >= definitions[i].Code {
			t.Fatalf("Definitions() not ordered at %d", i)
		}
	}
}

func TestNewTableRejectsInvalidGroups(t *testing.T) {
	tests := []struct {
		name   string
		groups []Group
		want   string
	}{
		{
			name:   "overlap",
			groups: []Group{cptGroup(), {Name: "speller", Base: CustomBase + 50, Size: 100}},
			want:   "overlap",
		},
		{
			name:   "builtin range",
			groups: []Group{{Name: "rest", Base: 10, Size: 5}},
			want:   "built-in range",
		},
		{
			name:   "duplicate name",
			groups: []Group{cptGroup(), {Name: "cpt", Base: CustomBase + 500, Size: 1}},
			want:   "registered twice",
		},
		{
			name:   "empty slice",
			groups: []Group{{Name: "empty", Base: CustomBase, Size: 0}},
			want:   "size must be positive",
		},
		{
			name:   "code outside slice",
			groups: []Group{{Name: "stray", Base: CustomBase, Size: 10, Codes: map[Code]string{CustomBase + 10: "x"}}},
			want:   "outside its slice",
		},
		{
			name:   "past largest code",
			groups: []Group{{Name: "edge", Base: math.MaxInt32 - 5, Size: 10}},
			want:   "passes the largest code",
		},
		{
			name:   "unnamed",
			groups: []Group{{Base: CustomBase, Size: 10}},
			want:   "has no name",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewTable(test.groups...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error %q does not mention %q", err, test.want)
			}
		})
	}
}

func TestAdjacentGroupsDoNotOverlap(t *testing.T) {
	if _, err := NewTable(cptGroup(), miGroup()); err != nil {
		t.Fatalf("adjacent slices rejected: %v", err)
	}
}

func TestMustNewTablePanicsOnCollision(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("MustNewTable did not panic on overlapping groups")
		}
	}()
	MustNewTable(cptGroup(), cptGroup())
}

func TestFingerprintStable(t *testing.T) {
	first := MustNewTable(cptGroup(), miGroup())
	second := MustNewTable(miGroup(), cptGroup())
	if first.Fingerprint() != second.Fingerprint() {
		t.Error("registration order changed the fingerprint")
	}
	if len(first.FingerprintHex()) != 64 {
		t.Errorf("FingerprintHex() length = %d", len(first.FingerprintHex()))
	}

	different := MustNewTable(cptGroup())
	if first.Fingerprint() == different.Fingerprint() {
		t.Error("tables with different groups share a fingerprint")
	}
}

func TestGroupContainsNearLargestCode(t *testing.T) {
	group := Group{Name: "edge", Base: math.MaxInt32 - 5, Size: 10}
	if !group.Contains(math.MaxInt32) {
		t.Error("largest code not inside a slice that covers it")
	}
	if group.Contains(math.MaxInt32 - 6) {
		t.Error("code below the base reported inside")
	}

	// End is the largest code itself, so the slice still fits.
	last := Group{Name: "last", Base: math.MaxInt32 - 10, Size: 10}
	if _, err := NewTable(last); err != nil {
		t.Errorf("slice ending just below the largest code rejected: %v", err)
	}
}
