// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package marker

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/stager/lib/codec"
)

// fingerprintKey is the 32-byte BLAKE3 key for table fingerprints.
// Keyed hashing keeps a table fingerprint from colliding with a plain
// BLAKE3 digest of the same bytes computed for another purpose.
var fingerprintKey = [32]byte{
	's', 't', 'a', 'g', 'e', 'r', '.', 'm', 'a', 'r', 'k', 'e', 'r', '-',
	't', 'a', 'b', 'l', 'e', '.', 'v', '1',
}

// Table is the process-wide marker namespace: the built-in boundary
// markers plus the registered experiment groups. A Table is immutable
// after NewTable returns and safe for concurrent reads.
type Table struct {
	groups      []Group
	definitions map[Code]Definition
	ordered     []Definition
	fingerprint [32]byte
}

// NewTable validates the groups and assembles a Table. Errors name
// every problem found: empty or duplicate names, empty slices, slices
// that reach into the built-in range or past the largest code,
// overlapping slices, and named codes outside their own slice.
func NewTable(groups ...Group) (*Table, error) {
	var errs []error

	sorted := make([]Group, len(groups))
	copy(sorted, groups)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Base < sorted[j].Base })

	names := make(map[string]bool, len(sorted))
	overflow := false
	for _, group := range sorted {
		if group.Name == "" {
			errs = append(errs, fmt.Errorf("marker group at base %d has no name", group.Base))
		} else if names[group.Name] {
			errs = append(errs, fmt.Errorf("marker group %q registered twice", group.Name))
		}
		names[group.Name] = true

		if group.Size <= 0 {
			errs = append(errs, fmt.Errorf("marker group %q: size must be positive, got %d", group.Name, group.Size))
		}
		if group.Base < CustomBase {
			errs = append(errs, fmt.Errorf("marker group %q: base %d is inside the built-in range (custom codes start at %d)",
				group.Name, group.Base, CustomBase))
		}
		if int64(group.Base)+int64(group.Size) > math.MaxInt32 {
			overflow = true
			errs = append(errs, fmt.Errorf("marker group %q: base %d plus size %d passes the largest code %d",
				group.Name, group.Base, group.Size, int32(math.MaxInt32)))
		}
		for code := range group.Codes {
			if !group.Contains(code) {
				errs = append(errs, fmt.Errorf("marker group %q: code %d outside its slice [%d, %d)",
					group.Name, code, group.Base, group.End()))
			}
		}
	}

	// Slice ends are meaningless once one has wrapped.
	for i := 1; i < len(sorted) && !overflow; i++ {
		previous, current := sorted[i-1], sorted[i]
		if current.Base < previous.End() {
			errs = append(errs, fmt.Errorf("marker groups %q [%d, %d) and %q [%d, %d) overlap",
				previous.Name, previous.Base, previous.End(),
				current.Name, current.Base, current.End()))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	table := &Table{
		groups:      sorted,
		definitions: make(map[Code]Definition),
	}
	for _, definition := range builtins {
		table.definitions[definition.Code] = definition
	}
	for _, group := range sorted {
		for code, name := range group.Codes {
			table.definitions[code] = Definition{Code: code, Name: name, Group: group.Name}
		}
	}
	table.ordered = make([]Definition, 0, len(table.definitions))
	for _, definition := range table.definitions {
		table.ordered = append(table.ordered, definition)
	}
	sort.Slice(table.ordered, func(i, j int) bool { return table.ordered[i].Code < table.ordered[j].Code })

	fingerprint, err := table.computeFingerprint()
	if err != nil {
		return nil, err
	}
	table.fingerprint = fingerprint
	return table, nil
}

// MustNewTable is NewTable for process startup: a namespace collision
// between two modules is a programming error, not a runtime condition.
func MustNewTable(groups ...Group) *Table {
	table, err := NewTable(groups...)
	if err != nil {
		panic("marker: invalid marker table: " + err.Error())
	}
	return table
}

// Lookup returns the definition of code.
func (t *Table) Lookup(code Code) (Definition, bool) {
	definition, ok := t.definitions[code]
	return definition, ok
}

// Name returns the name of code, or a placeholder naming the owning
// group (or "unknown") for codes without a definition.
func (t *Table) Name(code Code) string {
	if definition, ok := t.definitions[code]; ok {
		return definition.Name
	}
	for _, group := range t.groups {
		if group.Contains(code) {
			return fmt.Sprintf("%s+%d", group.Name, code-group.Base)
		}
	}
	return "unknown-" + code.String()
}

// Groups returns the registered groups ordered by base.
func (t *Table) Groups() []Group {
	groups := make([]Group, len(t.groups))
	copy(groups, t.groups)
	return groups
}

// Definitions returns every named code ordered by code.
func (t *Table) Definitions() []Definition {
	definitions := make([]Definition, len(t.ordered))
	copy(definitions, t.ordered)
	return definitions
}

// Fingerprint returns a keyed BLAKE3 digest of the table's canonical
// encoding. Two processes that register the same groups produce the
// same fingerprint; recordings store it so that readers can tell
// whether their marker namespace matches the one the data was
// recorded with.
func (t *Table) Fingerprint() [32]byte { return t.fingerprint }

// FingerprintHex returns Fingerprint as lowercase hex.
func (t *Table) FingerprintHex() string {
	return hex.EncodeToString(t.fingerprint[:])
}

func (t *Table) computeFingerprint() ([32]byte, error) {
	canonical := struct {
		Definitions []Definition `cbor:"definitions"`
		Groups      []Group      `cbor:"groups"`
	}{
		Definitions: t.ordered,
		Groups:      t.groups,
	}
	data, err := codec.Marshal(canonical)
	if err != nil {
		return [32]byte{}, fmt.Errorf("encoding marker table: %w", err)
	}

	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		panic("marker: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)

	var fingerprint [32]byte
	copy(fingerprint[:], hasher.Sum(nil))
	return fingerprint, nil
}
