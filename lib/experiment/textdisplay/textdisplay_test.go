// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package textdisplay

import (
	"context"
	"errors"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/stager/lib/experiment"
	"github.com/bureau-foundation/stager/lib/marker"
	"github.com/bureau-foundation/stager/lib/stage"
)

func parse(t *testing.T, text string) *yaml.Node {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(text), &node); err != nil {
		t.Fatalf("parsing params: %v", err)
	}
	if len(node.Content) == 0 {
		return nil
	}
	return node.Content[0]
}

func collect(t *testing.T, built experiment.Experiment) []stage.Stage {
	t.Helper()
	timeline, err := built.Timeline(context.Background())
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	defer timeline.Close()
	stages, err := stage.Collect(context.Background(), stage.Concat(timeline.Providers...), 0)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return stages
}

func TestDefaultTimeline(t *testing.T) {
	built, err := Factory{}.Build(nil, experiment.Environment{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	stages := collect(t, built)

	// preparation, start, 5×(trial, interval), end, closing delay
	if len(stages) != 14 {
		t.Fatalf("got %d stages: %v", len(stages), stages)
	}
	if !stages[0].IsPreload() {
		t.Errorf("stage 0 = %v, want preload", stages[0])
	}
	if code, _ := stages[1].Marker(); code != marker.ExperimentStart {
		t.Errorf("stage 1 marker = %d", code)
	}
	for trial := 0; trial < 5; trial++ {
		shown, blank := stages[2+2*trial], stages[3+2*trial]
		if code, _ := shown.Marker(); code != marker.TrialStart || shown.DurationMS() != 10000 || shown.Cue() != "Text" {
			t.Errorf("trial %d stimulus = %v", trial, shown)
		}
		if code, _ := blank.Marker(); code != marker.TrialEnd || blank.DurationMS() != 2000 {
			t.Errorf("trial %d interval = %v", trial, blank)
		}
	}
	if code, _ := stages[12].Marker(); code != marker.ExperimentEnd {
		t.Errorf("stage 12 marker = %d", code)
	}
	if _, has := stages[13].Marker(); has || stages[13].DurationMS() != 1000 {
		t.Errorf("closing stage = %v", stages[13])
	}
}

func TestTimelineIsRepeatable(t *testing.T) {
	built, err := Factory{}.Build(parse(t, "trial_count: 2\ntext: hello"), experiment.Environment{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	first, second := collect(t, built), collect(t, built)
	if len(first) != 8 || len(second) != 8 {
		t.Fatalf("stage counts %d and %d, want 8", len(first), len(second))
	}
	if first[2].Cue() != "hello" {
		t.Errorf("cue = %v", first[2].Cue())
	}
}

func TestRejectsInvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		params string
		field  string
	}{
		{"zero trials", "trial_count: 0", "trial_count"},
		{"negative duration", "trial_duration_ms: -1", "trial_duration_ms"},
		{"zero interval", "inter_stimulus_interval_ms: 0", "inter_stimulus_interval_ms"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Factory{}.Build(parse(t, test.params), experiment.Environment{})
			var configError *stage.ConfigError
			if !errors.As(err, &configError) || configError.Field != test.field {
				t.Errorf("Build error = %v, want ConfigError on %s", err, test.field)
			}
		})
	}
}

func TestRejectsUnknownParams(t *testing.T) {
	if _, err := (Factory{}).Build(parse(t, "font_size: 90"), experiment.Environment{}); err == nil {
		t.Error("Build accepted an unknown key")
	}
}
