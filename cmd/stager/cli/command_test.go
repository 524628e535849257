// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func testTree(called *string, receivedArgs *[]string, seed *uint64) *Command {
	return &Command{
		Name: "stager",
		Subcommands: []*Command{
			{
				Name:    "run",
				Summary: "run an experiment",
				Flags: func() *pflag.FlagSet {
					flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
					flagSet.Uint64Var(seed, "seed", 0, "random seed")
					return flagSet
				},
				Run: func(args []string) error {
					*called = "run"
					*receivedArgs = args
					return nil
				},
			},
			{
				Name:    "markers",
				Summary: "list marker codes",
				Run: func(args []string) error {
					*called = "markers"
					return nil
				},
			},
		},
	}
}

func TestExecuteDispatchesWithFlags(t *testing.T) {
	var called string
	var args []string
	var seed uint64

	root := testTree(&called, &args, &seed)
	if err := root.Execute([]string{"run", "--seed", "42", "extra"}, io.Discard); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "run" || seed != 42 {
		t.Errorf("called=%q seed=%d", called, seed)
	}
	if len(args) != 1 || args[0] != "extra" {
		t.Errorf("args = %v, want [extra]", args)
	}
}

func TestExecuteSuggestsCommand(t *testing.T) {
	var called string
	var args []string
	var seed uint64

	err := testTree(&called, &args, &seed).Execute([]string{"makers"}, io.Discard)
	var usage *UsageError
	if !errors.As(err, &usage) {
		t.Fatalf("Execute() error = %v, want a UsageError", err)
	}
	if !strings.Contains(err.Error(), `did you mean "markers"`) {
		t.Errorf("error = %v, want a suggestion", err)
	}
}

func TestExecuteBadFlag(t *testing.T) {
	var called string
	var args []string
	var seed uint64

	err := testTree(&called, &args, &seed).Execute([]string{"run", "--sede", "1"}, io.Discard)
	var usage *UsageError
	if !errors.As(err, &usage) || !strings.Contains(err.Error(), "stager run --help") {
		t.Errorf("Execute() error = %v", err)
	}
	if called != "" {
		t.Error("command ran despite a bad flag")
	}
}

func TestHelp(t *testing.T) {
	var called string
	var args []string
	var seed uint64

	var output bytes.Buffer
	root := testTree(&called, &args, &seed)
	if err := root.Execute([]string{"--help"}, &output); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	for _, want := range []string{"Usage:\n  stager <command> [flags]", "run", "list marker codes"} {
		if !strings.Contains(output.String(), want) {
			t.Errorf("help missing %q:\n%s", want, output.String())
		}
	}

	output.Reset()
	if err := root.Execute([]string{"run", "-h"}, &output); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.Contains(output.String(), "--seed") {
		t.Errorf("subcommand help missing flags:\n%s", output.String())
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"run", "run", 0},
		{"makers", "markers", 1},
		{"peer", "per", 1},
		{"abc", "xyz", 3},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
