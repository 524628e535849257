// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"strconv"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns "prefix-N" with N increasing across the test
// binary. Tests use it for experiment names and writer tags that must
// differ between runs sharing a temp directory or a peer.
//
//	name := testutil.UniqueID("experiment") // "experiment-1", "experiment-2", ...
func UniqueID(prefix string) string {
	return prefix + "-" + strconv.FormatUint(uniqueCounter.Add(1), 10)
}
