// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for stager packages.
//
// [SocketDir] creates a temporary directory in /tmp suitable for Unix
// domain sockets. Unix domain sockets have a 108-byte path limit
// (sun_path in sockaddr_un), which deeply nested temporary directories
// can exceed. The directory is automatically removed when the test
// completes.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. Timeline
// tests otherwise run entirely on the fake clock.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation, such as distinct experiment names or file names in a
// shared directory.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no stager-internal dependencies.
package testutil
