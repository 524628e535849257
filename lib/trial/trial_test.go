// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trial

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/bureau-foundation/stager/lib/stage"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func countTargets(t *testing.T, provider *Provider) (targets, total int) {
	t.Helper()
	stages, err := stage.Collect(context.Background(), provider, 0)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for i, generated := range stages {
		decision, ok := generated.Cue().(Trial)
		if !ok {
			t.Fatalf("stage %d cue is %T, want Trial", i, generated.Cue())
		}
		if decision.Index != i {
			t.Fatalf("stage %d has index %d", i, decision.Index)
		}
		code, _ := generated.Marker()
		if decision.Target {
			targets++
			if code != 1010 {
				t.Fatalf("target stage %d has marker %d", i, code)
			}
		} else if code != 1011 {
			t.Fatalf("non-target stage %d has marker %d", i, code)
		}
	}
	return targets, len(stages)
}

func baseConfig() Config {
	return Config{
		TargetRate:              0.7,
		TrialDurationMS:         500,
		InterStimulusIntervalMS: 1300,
		TargetMarker:            1010,
		NonTargetMarker:         1011,
	}
}

func TestPseudoRandomExactTargets(t *testing.T) {
	config := baseConfig()
	config.TrialCount = 10

	for seed := range uint64(200) {
		provider, err := NewProvider(config, seeded(seed), nil)
		if err != nil {
			t.Fatalf("NewProvider: %v", err)
		}
		targets, total := countTargets(t, provider)
		if total != 10 || targets != 7 {
			t.Fatalf("seed %d: %d targets of %d, want 7 of 10", seed, targets, total)
		}
	}
}

func TestPseudoRandomRounding(t *testing.T) {
	tests := []struct {
		rate    float64
		count   int
		targets int
	}{
		{rate: 0.25, count: 10, targets: 3}, // 2.5 rounds away from zero
		{rate: 0.33, count: 7, targets: 2},
		{rate: 0, count: 5, targets: 0},
		{rate: 1, count: 5, targets: 5},
		{rate: 0.5, count: 1, targets: 1},
	}
	for _, test := range tests {
		config := baseConfig()
		config.TargetRate = test.rate
		config.TrialCount = test.count
		if got := TargetCount(config); got != test.targets {
			t.Errorf("TargetCount(rate=%v, count=%d) = %d, want %d", test.rate, test.count, got, test.targets)
		}
		provider, err := NewProvider(config, seeded(7), nil)
		if err != nil {
			t.Fatalf("NewProvider: %v", err)
		}
		targets, total := countTargets(t, provider)
		if total != test.count || targets != test.targets {
			t.Errorf("rate=%v count=%d: got %d/%d", test.rate, test.count, targets, total)
		}
	}
}

func TestCountFromExperimentDuration(t *testing.T) {
	config := baseConfig()
	config.ExperimentDurationMS = 8 * 60 * 1000

	// 480000 / 1800 = 266.67, rounded down.
	if got := Count(config); got != 266 {
		t.Fatalf("Count() = %d, want 266", got)
	}

	provider, err := NewProvider(config, seeded(1), nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	targets, total := countTargets(t, provider)
	if total != 266 {
		t.Errorf("total = %d, want 266", total)
	}
	if targets != 186 { // round(0.7 × 266) = round(186.2)
		t.Errorf("targets = %d, want 186", targets)
	}
}

func TestIndependentModeProducesExactCount(t *testing.T) {
	config := baseConfig()
	config.Mode = Independent
	config.TrialCount = 2000

	provider, err := NewProvider(config, seeded(42), nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	targets, total := countTargets(t, provider)
	if total != 2000 {
		t.Fatalf("total = %d, want 2000", total)
	}
	// Bernoulli(0.7) over 2000 draws: the standard deviation of the
	// count is about 20, so ±150 is far outside any plausible seed.
	if targets < 1250 || targets > 1550 {
		t.Errorf("targets = %d, not near 1400", targets)
	}
}

func TestPlanIsPermutation(t *testing.T) {
	plan := Plan(3, 8, seeded(3))
	if len(plan) != 8 {
		t.Fatalf("len = %d", len(plan))
	}
	targets := 0
	for _, target := range plan {
		if target {
			targets++
		}
	}
	if targets != 3 {
		t.Errorf("targets = %d, want 3", targets)
	}

	// Different seeds should not all produce the same arrangement.
	first := Plan(5, 20, seeded(1))
	differs := false
	for seed := uint64(2); seed < 10 && !differs; seed++ {
		other := Plan(5, 20, seeded(seed))
		for i := range other {
			if other[i] != first[i] {
				differs = true
				break
			}
		}
	}
	if !differs {
		t.Error("Plan ignored the random source")
	}
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"rate above one", func(c *Config) { c.TargetRate = 1.5 }, "target rate"},
		{"negative rate", func(c *Config) { c.TargetRate = -0.1 }, "target rate"},
		{"zero period", func(c *Config) {
			c.TrialDurationMS, c.InterStimulusIntervalMS, c.ExperimentDurationMS = 0, 0, 1000
		}, "trial duration"},
		{"too short", func(c *Config) { c.ExperimentDurationMS = 1000 }, "experiment duration"},
		{"negative count", func(c *Config) { c.TrialCount = -1 }, "trial count"},
		{"unknown mode", func(c *Config) { c.Mode = Mode(9); c.TrialCount = 1 }, "mode"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := baseConfig()
			test.modify(&config)
			_, err := NewProvider(config, seeded(1), nil)
			var configError *stage.ConfigError
			if !errors.As(err, &configError) {
				t.Fatalf("err = %v, want *stage.ConfigError", err)
			}
			if configError.Field != test.field {
				t.Errorf("Field = %q, want %q", configError.Field, test.field)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for name, want := range map[string]Mode{"": PseudoRandom, "pseudo-random": PseudoRandom, "independent": Independent} {
		got, err := ParseMode(name)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseMode("sometimes"); err == nil {
		t.Error("ParseMode accepted an unknown mode")
	}
}

func TestCustomShape(t *testing.T) {
	config := baseConfig()
	config.TrialCount = 4
	provider, err := NewProvider(config, seeded(5), func(decision Trial) stage.Stage {
		return stage.Timed(uint64(decision.Index))
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	stages, _ := stage.Collect(context.Background(), provider, 0)
	for i, generated := range stages {
		if generated.DurationMS() != uint64(i) {
			t.Errorf("stage %d duration = %d", i, generated.DurationMS())
		}
	}
	if provider.Total() != 4 {
		t.Errorf("Total() = %d", provider.Total())
	}
}
