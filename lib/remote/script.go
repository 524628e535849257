// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/stager/lib/marker"
	"github.com/bureau-foundation/stager/lib/stage"
)

// Script is a peer-side timeline authored as JSONC:
//
//	{
//	    "experiment": "mi",
//	    "preload": ["left-hand.gif", "right-hand.gif"],
//	    "repeat": 20,
//	    "stages": [
//	        {"marker": 1101, "cue": "left-hand.gif", "duration_ms": 3000},
//	        {"marker": 1103, "duration_ms": 3000},  // rest
//	    ],
//	}
type Script struct {
	Experiment string        `json:"experiment"`
	Preload    []any         `json:"preload"`
	Repeat     int           `json:"repeat"`
	Stages     []ScriptStage `json:"stages"`
}

// ScriptStage is one stage of a Script.
type ScriptStage struct {
	Marker      *marker.Code `json:"marker"`
	Cue         any          `json:"cue"`
	DurationMS  uint64       `json:"duration_ms"`
	NotRecorded bool         `json:"not_recorded"`
}

// ParseScript strips JSONC comments and trailing commas from data and
// unmarshals the result.
func ParseScript(data []byte) (*Script, error) {
	var script Script
	if err := json.Unmarshal(jsonc.ToJSON(data), &script); err != nil {
		return nil, fmt.Errorf("parsing stage script: %w", err)
	}
	return &script, nil
}

// ReadScript reads and parses a JSONC stage script file.
func ReadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	script, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return script, nil
}

// Provider builds the script's timeline: one preload stage per
// preload cue, then the stage list repeated Repeat times (once when
// Repeat is zero).
func (s *Script) Provider() (stage.Provider, error) {
	stages := make([]stage.Stage, 0, len(s.Stages))
	for i, scripted := range s.Stages {
		built, err := stage.New(stage.Spec{
			Marker:      scripted.Marker,
			Cue:         scripted.Cue,
			DurationMS:  scripted.DurationMS,
			NotRecorded: scripted.NotRecorded,
		})
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		stages = append(stages, built)
	}

	repeat := s.Repeat
	if repeat == 0 {
		repeat = 1
	}
	repeating, err := stage.RepeatStatic(stages, repeat)
	if err != nil {
		return nil, err
	}
	if len(s.Preload) == 0 {
		return repeating, nil
	}
	return stage.Concat(stage.Preparation(s.Preload...), repeating), nil
}
