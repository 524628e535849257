// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package markerlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// csvColumns is the CSV export header. intended_ms is the scheduled
// timeline offset; actual_ms is the clock reading relative to the
// first record, so the two columns line up for drift analysis.
var csvColumns = []string{"intended_ms", "actual_ms", "timestamp", "code", "name"}

// WriteCSV writes records as CSV with a header row.
func WriteCSV(destination io.Writer, records []Record) error {
	writer := csv.NewWriter(destination)
	if err := writer.Write(csvColumns); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	var base int64
	if len(records) > 0 {
		base = records[0].TimestampUnixNS - int64(records[0].TimelineMS)*int64(time.Millisecond)
	}
	for _, record := range records {
		actual := float64(record.TimestampUnixNS-base) / float64(time.Millisecond)
		row := []string{
			strconv.FormatUint(record.TimelineMS, 10),
			strconv.FormatFloat(actual, 'f', 3, 64),
			time.Unix(0, record.TimestampUnixNS).UTC().Format(time.RFC3339Nano),
			record.Code.String(),
			record.Name,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
