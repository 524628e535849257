// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session provides the run context a stage program drives on
// a single machine.
//
// [Local] implements program.Session. It forwards recorded markers to
// a [MarkerWriter] through a [Forwarder], fans notifications out to a
// presentation [Listener], and keeps an event log of intended and
// actual offsets for every stage transition and user response.
//
// The Forwarder is the only buffer between the scheduler and the
// acquisition stream. When it cannot keep up it drops markers and
// counts them; when the writer fails it logs and counts the failure.
// The timeline keeps running in both cases, and [ForwarderStats]
// reports the losses at the end of the session.
package session
