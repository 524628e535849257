// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is a node of the stager command tree: a group such as the
// root, or a leaf such as "stager inspect".
type Command struct {
	Name string

	// Summary is the line shown next to Name in the parent's listing.
	Summary string

	// Description heads the command's own help. Summary stands in
	// when it is empty.
	Description string

	// Usage replaces the generated "stager inspect [flags]" line.
	Usage string

	Examples []Example

	// Flags builds a fresh flag set for each parse or help print.
	Flags func() *pflag.FlagSet

	Subcommands []*Command

	// Run receives the positional arguments left after flags.
	Run func(args []string) error

	parent *Command
}

// Example is one sample invocation in help output.
type Example struct {
	Description string
	Command     string
}

// Execute dispatches args down the tree and runs the matching
// command. Help text goes to helpOutput. Mistyped commands and bad
// flags come back as a *UsageError.
func (c *Command) Execute(args []string, helpOutput io.Writer) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(helpOutput)
		return nil
	}

	if len(c.Subcommands) > 0 && len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub, err := c.subcommand(args[0])
		if err != nil {
			return err
		}
		return sub.Execute(args[1:], helpOutput)
	}

	if c.Run == nil {
		c.PrintHelp(helpOutput)
		if len(c.Subcommands) > 0 {
			return Usage("subcommand required")
		}
		return fmt.Errorf("no action defined for %q", c.fullName())
	}

	positional, err := c.parseFlags(args)
	if err != nil {
		return err
	}
	return c.Run(positional)
}

func (c *Command) subcommand(name string) (*Command, error) {
	for _, sub := range c.Subcommands {
		if sub.Name == name {
			sub.parent = c
			return sub, nil
		}
	}
	hint := ""
	if suggestion := suggestCommand(name, c.Subcommands); suggestion != "" {
		hint = fmt.Sprintf(" (did you mean %q?)", suggestion)
	}
	return nil, Usage("unknown command %q%s\n\nRun '%s --help' for usage.", name, hint, c.fullName())
}

func (c *Command) parseFlags(args []string) ([]string, error) {
	if c.Flags == nil {
		return args, nil
	}
	flagSet := c.Flags()
	flagSet.SetOutput(io.Discard)
	if err := flagSet.Parse(args); err != nil {
		return nil, Usage("%v\n\nRun '%s --help' for usage.", err, c.fullName())
	}
	return flagSet.Args(), nil
}

// PrintHelp writes the description, usage, subcommands, flags, and
// examples of the command.
func (c *Command) PrintHelp(w io.Writer) {
	heading := c.Description
	if heading == "" {
		heading = c.Summary
	}
	if heading != "" {
		fmt.Fprintf(w, "%s\n\n", heading)
	}

	fmt.Fprintf(w, "Usage:\n  %s\n", c.usageLine())
	c.printSubcommands(w)
	c.printFlags(w)
	c.printExamples(w)

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", c.fullName())
	}
}

func (c *Command) usageLine() string {
	switch {
	case c.Usage != "":
		return c.Usage
	case len(c.Subcommands) > 0:
		return c.fullName() + " <command> [flags]"
	default:
		return c.fullName() + " [flags]"
	}
}

func (c *Command) printSubcommands(w io.Writer) {
	if len(c.Subcommands) == 0 {
		return
	}
	fmt.Fprintf(w, "\nCommands:\n")
	table := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	for _, sub := range c.Subcommands {
		fmt.Fprintf(table, "  %s\t%s\n", sub.Name, sub.Summary)
	}
	table.Flush()
}

func (c *Command) printFlags(w io.Writer) {
	if c.Flags == nil {
		return
	}
	var defaults strings.Builder
	flagSet := c.Flags()
	flagSet.SetOutput(&defaults)
	flagSet.PrintDefaults()
	if defaults.Len() > 0 {
		fmt.Fprintf(w, "\nFlags:\n%s", defaults.String())
	}
}

func (c *Command) printExamples(w io.Writer) {
	if len(c.Examples) == 0 {
		return
	}
	fmt.Fprintf(w, "\nExamples:\n")
	for _, example := range c.Examples {
		if example.Description != "" {
			fmt.Fprintf(w, "  # %s\n", example.Description)
		}
		fmt.Fprintf(w, "  %s\n\n", example.Command)
	}
}

func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func isHelpFlag(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	}
	return false
}

// suggestCommand returns the subcommand closest to a mistyped name,
// or "" when none is within three edits.
func suggestCommand(mistyped string, commands []*Command) string {
	const maxDistance = 3
	closest, closestDistance := "", maxDistance+1
	for _, command := range commands {
		if distance := levenshtein(mistyped, command.Name); distance < closestDistance {
			closest, closestDistance = command.Name, distance
		}
	}
	return closest
}

// levenshtein is the byte-wise edit distance between a and b.
func levenshtein(a, b string) int {
	previous := make([]int, len(b)+1)
	current := make([]int, len(b)+1)
	for j := range previous {
		previous[j] = j
	}
	for i := 1; i <= len(a); i++ {
		current[0] = i
		for j := 1; j <= len(b); j++ {
			substitution := previous[j-1]
			if a[i-1] != b[j-1] {
				substitution++
			}
			current[j] = min(previous[j]+1, current[j-1]+1, substitution)
		}
		previous, current = current, previous
	}
	return previous[len(b)]
}
