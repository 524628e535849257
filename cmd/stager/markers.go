// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"

	"github.com/bureau-foundation/stager/cmd/stager/cli"
	"github.com/bureau-foundation/stager/lib/experiment/catalog"
	"github.com/bureau-foundation/stager/lib/marker"
)

func markersCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "markers",
		Summary: "List the marker table of the built-in experiments",
		Usage:   "stager markers [pattern]",
		Description: `List every marker code the built-in experiments can emit, the group
that owns it, and the table fingerprint that marker logs are stamped
with. A pattern fuzzy-matches marker names, best match first.`,
		Examples: []cli.Example{
			{Description: "Find the CPT target codes", Command: "stager markers cpttarg"},
		},
		Run: func(args []string) error {
			if len(args) > 1 {
				return cli.Usage("unexpected argument: %s", args[1])
			}
			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}
			return listMarkers(stdout, pattern)
		},
	}
}

func listMarkers(stdout io.Writer, pattern string) error {
	registry := catalog.Default()
	table, err := registry.MarkerTable()
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "fingerprint %s\n\n", table.FingerprintHex())
	tw := tabwriter.NewWriter(stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "CODE\tNAME\tGROUP\n")
	for _, definition := range matchDefinitions(table.Definitions(), pattern) {
		group := definition.Group
		if group == "" {
			group = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", definition.Code, definition.Name, group)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if pattern != "" {
		return nil
	}
	fmt.Fprintf(stdout, "\nexperiments:\n")
	for _, name := range registry.Names() {
		factory, _ := registry.Lookup(name)
		fmt.Fprintf(stdout, "  %-14s %s\n", name, factory.Description())
	}
	return nil
}

// matchDefinitions returns the definitions whose names fuzzy-match
// pattern, best score first. An empty pattern keeps every definition
// in code order.
func matchDefinitions(definitions []marker.Definition, pattern string) []marker.Definition {
	if pattern == "" {
		return definitions
	}
	type scored struct {
		definition marker.Definition
		score      int
	}
	runes := []rune(pattern)
	slab := util.MakeSlab(16*1024, 2048)
	var matches []scored
	for _, definition := range definitions {
		chars := util.ToChars([]byte(definition.Name))
		result, _ := algo.FuzzyMatchV2(false, true, true, &chars, runes, false, slab)
		if result.Start < 0 {
			continue
		}
		matches = append(matches, scored{definition: definition, score: result.Score})
	}
	slices.SortStableFunc(matches, func(a, b scored) int { return b.score - a.score })

	filtered := make([]marker.Definition, len(matches))
	for i, match := range matches {
		filtered[i] = match.definition
	}
	return filtered
}
