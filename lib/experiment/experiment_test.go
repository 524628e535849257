// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/stager/lib/testutil"
)

type sampleParams struct {
	Count int    `yaml:"count"`
	Label string `yaml:"label"`
}

func node(t *testing.T, text string) *yaml.Node {
	t.Helper()
	var document yaml.Node
	if err := yaml.Unmarshal([]byte(text), &document); err != nil {
		t.Fatalf("parsing: %v", err)
	}
	return document.Content[0]
}

func TestDecodeParamsKeepsDefaults(t *testing.T) {
	params := sampleParams{Count: 5, Label: "default"}
	if err := DecodeParams(node(t, "count: 9"), &params); err != nil {
		t.Fatalf("DecodeParams: %v", err)
	}
	if params.Count != 9 || params.Label != "default" {
		t.Errorf("params = %+v", params)
	}

	if err := DecodeParams(nil, &params); err != nil || params.Count != 9 {
		t.Errorf("nil node: %v, %+v", err, params)
	}
}

func TestDecodeParamsRejectsUnknownKeys(t *testing.T) {
	var params sampleParams
	err := DecodeParams(node(t, "count: 1\ncolour: red"), &params)
	if err == nil || !strings.Contains(err.Error(), "colour") {
		t.Errorf("DecodeParams error = %v, want one naming the unknown key", err)
	}
}

func TestTimelineCloseOrder(t *testing.T) {
	var order []string
	timeline := &Timeline{}
	timeline.OnClose(func() error { order = append(order, "first"); return nil })
	timeline.OnClose(func() error { order = append(order, "second"); return errors.New("stuck") })

	err := timeline.Close()
	if err == nil || err.Error() != "stuck" {
		t.Errorf("Close error = %v", err)
	}
	if strings.Join(order, ",") != "second,first" {
		t.Errorf("close order = %v", order)
	}
	if err := timeline.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestEnvironmentRandomIsSeeded(t *testing.T) {
	first, second := Environment{Seed: 11}.Random(), Environment{Seed: 11}.Random()
	for i := 0; i < 10; i++ {
		if first.Uint64() != second.Uint64() {
			t.Fatal("equal seeds produced different streams")
		}
	}
}

type stubFailure struct {
	failed chan struct{}
	err    error
}

func (f *stubFailure) Failed() <-chan struct{} { return f.failed }
func (f *stubFailure) Err() error              { return f.err }

func TestWatchFailuresAbortsWithCause(t *testing.T) {
	lost := &stubFailure{failed: make(chan struct{}), err: errors.New("peer hung up")}
	quiet := &stubFailure{failed: make(chan struct{})}
	timeline := &Timeline{Failures: []Failure{quiet, lost}}

	causes := make(chan error, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	timeline.WatchFailures(ctx, func(cause error) { causes <- cause })

	close(lost.failed)
	if cause := testutil.RequireReceive(t, causes, 5*time.Second, "abort cause"); cause != lost.err {
		t.Errorf("cause = %v, want %v", cause, lost.err)
	}
	if len(causes) != 0 {
		t.Errorf("a quiet failure aborted the run")
	}
}
