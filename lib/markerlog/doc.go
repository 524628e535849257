// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package markerlog records the markers of a session to a file.
//
// # File layout
//
//	"STGM" | uint32 big-endian header length | CBOR Header | body
//
// The header is never compressed, so [Header.CheckTable] works without
// touching the body. The body is a stream of CBOR [Record] values,
// optionally wrapped in an lz4 frame or a zstd stream as named by
// [Header.Compression]. Every record is flushed through the
// compressor as it is written.
//
// [WriteCSV] exports records with intended (scheduled) and actual
// (clock) columns for timing analysis.
package markerlog
