// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// TB is the part of testing.TB the helpers need.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive reads one value from ch within timeout, or fails the
// test. Scheduler and remote tests use it to wait on results that a
// goroutine reports over a channel.
//
//	result := testutil.RequireReceive(t, finished, 5*time.Second, "program finished")
func RequireReceive[T any](t TB, ch <-chan T, timeout time.Duration, what ...any) T {
	t.Helper()
	deadline := time.NewTimer(timeout) //nolint:realclock test hang prevention
	defer deadline.Stop()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed before %s", describe(what))
		}
		return value
	case <-deadline.C:
		t.Fatalf("timed out after %v: %s", timeout, describe(what))
	}
	panic("unreachable")
}

// RequireSend sends value on ch within timeout, or fails the test.
func RequireSend[T any](t TB, ch chan<- T, value T, timeout time.Duration, what ...any) {
	t.Helper()
	deadline := time.NewTimer(timeout) //nolint:realclock test hang prevention
	defer deadline.Stop()
	select {
	case ch <- value:
	case <-deadline.C:
		t.Fatalf("timed out after %v: %s", timeout, describe(what))
	}
}

// RequireClosed waits until ch is closed or yields a value, or fails
// the test. Done channels of programs and sessions signal by closing.
//
//	testutil.RequireClosed(t, program.Done(), 5*time.Second, "done after abort")
func RequireClosed(t TB, ch <-chan struct{}, timeout time.Duration, what ...any) {
	t.Helper()
	deadline := time.NewTimer(timeout) //nolint:realclock test hang prevention
	defer deadline.Stop()
	select {
	case <-ch:
	case <-deadline.C:
		t.Fatalf("timed out after %v waiting for close: %s", timeout, describe(what))
	}
}

// describe renders the optional description: a plain value, or a
// format string followed by its arguments.
func describe(what []any) string {
	switch {
	case len(what) == 0:
		return "(no description)"
	case len(what) == 1:
		return fmt.Sprint(what[0])
	}
	if format, ok := what[0].(string); ok {
		return fmt.Sprintf(format, what[1:]...)
	}
	return fmt.Sprint(what...)
}
