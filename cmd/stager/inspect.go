// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/stager/cmd/stager/cli"
	"github.com/bureau-foundation/stager/lib/experiment/catalog"
	"github.com/bureau-foundation/stager/lib/markerlog"
)

type inspectOptions struct {
	csv   bool
	check bool
}

func inspectCommand(stdout io.Writer) *cli.Command {
	var options inspectOptions
	return &cli.Command{
		Name:    "inspect",
		Summary: "Print the header and records of a marker log",
		Usage:   "stager inspect <marker-log> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
			flagSet.BoolVar(&options.csv, "csv", false, "write the records as CSV instead of a table")
			flagSet.BoolVar(&options.check, "check", false, "fail unless the log was recorded against the current marker table")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Export a recording for analysis", Command: "stager inspect ~/stager/markers.stgm --csv > markers.csv"},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Usage("inspect takes exactly one marker log path")
			}
			return inspect(stdout, args[0], options)
		},
	}
}

func inspect(stdout io.Writer, path string, options inspectOptions) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	reader, err := markerlog.Open(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	header := reader.Header()
	if options.check {
		table, err := catalog.Default().MarkerTable()
		if err != nil {
			return err
		}
		if err := header.CheckTable(table); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if options.csv {
		return markerlog.WriteCSV(stdout, records)
	}

	tw := tabwriter.NewWriter(stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "experiment:\t%s\n", header.Experiment)
	fmt.Fprintf(tw, "created:\t%s\n", time.Unix(0, header.CreatedUnixNS).UTC().Format(time.RFC3339))
	fmt.Fprintf(tw, "format:\t%s v%d\n", header.Format, header.Version)
	fmt.Fprintf(tw, "compression:\t%s\n", header.Compression)
	fmt.Fprintf(tw, "table:\t%s\n", header.TableFingerprint)
	if header.Seed != 0 {
		fmt.Fprintf(tw, "seed:\t%d\n", header.Seed)
	}
	if header.Writer != "" {
		fmt.Fprintf(tw, "writer:\t%s\n", header.Writer)
	}
	fmt.Fprintf(tw, "records:\t%s\n", humanize.Comma(int64(len(records))))
	fmt.Fprintf(tw, "size:\t%s\n", humanize.Bytes(uint64(info.Size())))
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	fmt.Fprintln(stdout)
	tw = tabwriter.NewWriter(stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "TIMELINE_MS\tCODE\tNAME\n")
	for _, record := range records {
		fmt.Fprintf(tw, "%d\t%d\t%s\n", record.TimelineMS, record.Code, record.Name)
	}
	return tw.Flush()
}
