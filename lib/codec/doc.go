// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration shared by the
// remote stage protocol and the marker log.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// Same logical data always produces identical bytes, which is what
// makes the marker table fingerprint stable across processes.
//
// For buffer-oriented operations (fingerprints, single values):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (sockets, log files):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// CBOR values are self-delimiting, so a stream of them needs no
// additional framing.
//
// Wire types carry `cbor` struct tags with snake_case keys.
package codec
