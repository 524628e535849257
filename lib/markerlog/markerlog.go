// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package markerlog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/stager/lib/codec"
	"github.com/bureau-foundation/stager/lib/marker"
)

// Format and Version identify the file layout. Readers reject other
// values.
const (
	Format  = "stager-marker-log"
	Version = 1
)

// magic opens every marker log file.
var magic = [4]byte{'S', 'T', 'G', 'M'}

// maxHeaderSize bounds the header a reader will allocate for.
const maxHeaderSize = 64 * 1024

// Compression identifies the body compression. The value is stored in
// the header, so the numbering is part of the file format.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4", or "zstd".
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown marker log compression: %q", name)
	}
}

// Header describes a marker log. It is stored uncompressed so that a
// reader can check the marker table before decoding any record.
type Header struct {
	Format  string `cbor:"format"`
	Version int    `cbor:"version"`

	// CreatedUnixNS is when the log was created.
	CreatedUnixNS int64 `cbor:"created"`

	Experiment string `cbor:"experiment"`

	// TableFingerprint is the hex fingerprint of the marker table
	// the codes were recorded against.
	TableFingerprint string `cbor:"table_fingerprint"`

	Compression Compression `cbor:"compression"`

	// Seed is the random seed of the run, so that a generated
	// timeline can be rebuilt from the recording.
	Seed uint64 `cbor:"seed,omitempty"`

	// Writer names the program and version that wrote the log.
	Writer string `cbor:"writer,omitempty"`
}

// CheckTable reports whether the log was recorded against table.
func (h Header) CheckTable(table *marker.Table) error {
	if h.TableFingerprint != table.FingerprintHex() {
		return fmt.Errorf("marker log recorded against table %s, current table is %s",
			h.TableFingerprint, table.FingerprintHex())
	}
	return nil
}

// Record is one marker as delivered to the acquisition stream.
type Record struct {
	Code marker.Code `cbor:"code"`
	Name string      `cbor:"name,omitempty"`

	// TimestampUnixNS is the clock reading passed with the marker.
	TimestampUnixNS int64 `cbor:"timestamp_unix_ns"`

	// TimelineMS is the stage's scheduled onset in milliseconds
	// since the timeline epoch.
	TimelineMS uint64 `cbor:"timeline_ms"`
}

// flushWriteCloser is the interface shared by the zstd and lz4 stream
// writers.
type flushWriteCloser interface {
	io.WriteCloser
	Flush() error
}

// Writer appends records to a marker log. Each record is flushed
// through the compressor as it is written, so a log cut short by a
// crash still holds every record written before it.
type Writer struct {
	compressor flushWriteCloser
	buffered   *bufio.Writer
	encoder    *codec.Encoder
	file       *os.File
	records    int
}

// Create creates the file at path and writes header to it.
func Create(path string, header Header) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating marker log: %w", err)
	}
	writer, err := NewWriter(file, header)
	if err != nil {
		file.Close()
		os.Remove(path)
		return nil, err
	}
	writer.file = file
	return writer, nil
}

// NewWriter writes header to destination and returns a Writer for the
// body. Format and Version are filled in when empty.
func NewWriter(destination io.Writer, header Header) (*Writer, error) {
	if header.Format == "" {
		header.Format = Format
	}
	if header.Version == 0 {
		header.Version = Version
	}

	encoded, err := codec.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("encoding marker log header: %w", err)
	}
	prefix := make([]byte, 8)
	copy(prefix, magic[:])
	binary.BigEndian.PutUint32(prefix[4:], uint32(len(encoded)))
	if _, err := destination.Write(prefix); err != nil {
		return nil, fmt.Errorf("writing marker log header: %w", err)
	}
	if _, err := destination.Write(encoded); err != nil {
		return nil, fmt.Errorf("writing marker log header: %w", err)
	}

	writer := &Writer{}
	body := destination
	switch header.Compression {
	case CompressionNone:
		writer.buffered = bufio.NewWriter(destination)
		body = writer.buffered
	case CompressionLZ4:
		writer.compressor = lz4.NewWriter(destination)
		body = writer.compressor
	case CompressionZstd:
		encoder, err := zstd.NewWriter(destination, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("creating zstd writer: %w", err)
		}
		writer.compressor = encoder
		body = encoder
	default:
		return nil, fmt.Errorf("unsupported marker log compression %s", header.Compression)
	}
	writer.encoder = codec.NewEncoder(body)
	return writer, nil
}

// WriteMarker appends record and flushes it.
func (w *Writer) WriteMarker(record Record) error {
	if err := w.encoder.Encode(record); err != nil {
		return fmt.Errorf("writing marker %d: %w", record.Code, err)
	}
	if err := w.flush(); err != nil {
		return fmt.Errorf("flushing marker %d: %w", record.Code, err)
	}
	w.records++
	return nil
}

func (w *Writer) flush() error {
	if w.compressor != nil {
		return w.compressor.Flush()
	}
	return w.buffered.Flush()
}

// Records returns the number of records written.
func (w *Writer) Records() int { return w.records }

// Close finishes the compressed stream and closes the file when the
// Writer was made by Create.
func (w *Writer) Close() error {
	var errs []error
	if w.compressor != nil {
		errs = append(errs, w.compressor.Close())
	} else {
		errs = append(errs, w.buffered.Flush())
	}
	if w.file != nil {
		errs = append(errs, w.file.Sync(), w.file.Close())
	}
	return errors.Join(errs...)
}

// Reader reads records from a marker log.
type Reader struct {
	header  Header
	decoder *codec.Decoder
	zstd    *zstd.Decoder
	file    *os.File
}

// Open opens the marker log at path.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening marker log: %w", err)
	}
	reader, err := NewReader(bufio.NewReader(file))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	reader.file = file
	return reader, nil
}

// NewReader reads and validates the header from source.
func NewReader(source io.Reader) (*Reader, error) {
	prefix := make([]byte, 8)
	if _, err := io.ReadFull(source, prefix); err != nil {
		return nil, fmt.Errorf("reading marker log header: %w", err)
	}
	if [4]byte(prefix[:4]) != magic {
		return nil, fmt.Errorf("not a marker log (magic %q)", prefix[:4])
	}
	size := binary.BigEndian.Uint32(prefix[4:])
	if size > maxHeaderSize {
		return nil, fmt.Errorf("marker log header of %d bytes exceeds limit %d", size, maxHeaderSize)
	}
	encoded := make([]byte, size)
	if _, err := io.ReadFull(source, encoded); err != nil {
		return nil, fmt.Errorf("reading marker log header: %w", err)
	}

	var header Header
	if err := codec.Unmarshal(encoded, &header); err != nil {
		return nil, fmt.Errorf("decoding marker log header: %w", err)
	}
	if header.Format != Format {
		return nil, fmt.Errorf("unexpected marker log format %q", header.Format)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("unsupported marker log version %d", header.Version)
	}

	reader := &Reader{header: header}
	body := source
	switch header.Compression {
	case CompressionNone:
	case CompressionLZ4:
		body = lz4.NewReader(source)
	case CompressionZstd:
		decoder, err := zstd.NewReader(source)
		if err != nil {
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		reader.zstd = decoder
		body = decoder
	default:
		return nil, fmt.Errorf("unsupported marker log compression %s", header.Compression)
	}
	reader.decoder = codec.NewDecoder(body)
	return reader, nil
}

// Header returns the log header.
func (r *Reader) Header() Header { return r.header }

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	var record Record
	if err := r.decoder.Decode(&record); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("reading marker record: %w", err)
	}
	return record, nil
}

// ReadAll returns every remaining record.
func (r *Reader) ReadAll() ([]Record, error) {
	var records []Record
	for {
		record, err := r.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
}

// Close releases the decompressor and the file opened by Open.
func (r *Reader) Close() error {
	if r.zstd != nil {
		r.zstd.Close()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
