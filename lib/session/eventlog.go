// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// WriteEvents writes the event log as CSV with the columns
// intended_ms, actual_ms, type, marker, label.
func WriteEvents(destination io.Writer, events []Event) error {
	writer := csv.NewWriter(destination)
	if err := writer.Write([]string{"intended_ms", "actual_ms", "type", "marker", "label"}); err != nil {
		return fmt.Errorf("writing event log header: %w", err)
	}
	for _, event := range events {
		code := ""
		if event.HasMarker {
			code = event.Marker.String()
		}
		row := []string{
			strconv.FormatUint(event.IntendedMS, 10),
			strconv.FormatUint(event.ActualMS, 10),
			string(event.Type),
			code,
			event.Label,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing event log row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// SaveEvents writes the event log to a CSV file at path.
func SaveEvents(path string, events []Event) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating event log: %w", err)
	}
	if err := WriteEvents(file, events); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
