// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cpt

import (
	"fmt"
	"math"
	"time"

	"github.com/bureau-foundation/stager/lib/experiment"
	"github.com/bureau-foundation/stager/lib/session"
)

// anticipationMS is the reaction time below which a response counts
// as a perseveration.
const anticipationMS = 100

// Response is the outcome of one letter.
type Response struct {
	Target  bool
	OnsetMS uint64
	Replied bool

	// ReactionMS is the delay from letter onset to the first
	// response, valid when Replied.
	ReactionMS uint64
}

// Missed reports a target without a response.
func (r Response) Missed() bool { return r.Target && !r.Replied }

// Incorrect reports a response to a non-target.
func (r Response) Incorrect() bool { return !r.Target && r.Replied }

// Score is the scored outcome of a run.
type Score struct {
	Responses []Response
	Duration  time.Duration
}

// ScoreEvents pairs each response with the letter on screen or in the
// interval after it. Only the first response to a letter counts.
func ScoreEvents(events []session.Event) Score {
	var score Score
	current := -1
	for _, event := range events {
		switch {
		case event.Type == session.EventEnter && event.HasMarker &&
			(event.Marker == TargetDisplay || event.Marker == NonTargetDisplay):
			score.Responses = append(score.Responses, Response{
				Target:  event.Marker == TargetDisplay,
				OnsetMS: event.ActualMS,
			})
			current = len(score.Responses) - 1
		case event.Type == session.EventUser && event.Marker == UserAction:
			if current < 0 || score.Responses[current].Replied {
				continue
			}
			response := &score.Responses[current]
			response.Replied = true
			if event.ActualMS > response.OnsetMS {
				response.ReactionMS = event.ActualMS - response.OnsetMS
			}
		}
		if event.ActualMS > uint64(score.Duration/time.Millisecond) {
			score.Duration = time.Duration(event.ActualMS) * time.Millisecond
		}
	}
	return score
}

// Targets counts target letters.
func (s Score) Targets() int {
	count := 0
	for _, response := range s.Responses {
		if response.Target {
			count++
		}
	}
	return count
}

// Omissions counts targets without a response.
func (s Score) Omissions() int {
	count := 0
	for _, response := range s.Responses {
		if response.Missed() {
			count++
		}
	}
	return count
}

// Commissions counts responses to non-targets.
func (s Score) Commissions() int {
	count := 0
	for _, response := range s.Responses {
		if response.Incorrect() {
			count++
		}
	}
	return count
}

// Perseverations counts responses faster than 100 ms.
func (s Score) Perseverations() int {
	count := 0
	for _, response := range s.Responses {
		if response.Replied && response.ReactionMS < anticipationMS {
			count++
		}
	}
	return count
}

// Detectability is the share of correct letters among those the
// participant did not miss. NaN when every letter was missed.
func (s Score) Detectability() float64 {
	total := len(s.Responses)
	omissions := s.Omissions()
	if total == omissions {
		return math.NaN()
	}
	return float64(total-omissions-s.Commissions()) / float64(total-omissions)
}

// ReactionTime returns the mean and standard deviation of reaction
// times over replied letters. Both are NaN without responses.
func (s Score) ReactionTime() (mean, deviation float64) {
	var sum float64
	var count int
	for _, response := range s.Responses {
		if response.Replied {
			sum += float64(response.ReactionMS)
			count++
		}
	}
	if count == 0 {
		return math.NaN(), math.NaN()
	}
	mean = sum / float64(count)
	var squares float64
	for _, response := range s.Responses {
		if response.Replied {
			delta := float64(response.ReactionMS) - mean
			squares += delta * delta
		}
	}
	return mean, math.Sqrt(squares / float64(count))
}

// Summarize scores the event log of a run.
func Summarize(events []session.Event) []experiment.SummaryItem {
	score := ScoreEvents(events)
	total := len(score.Responses)
	targets := score.Targets()
	mean, deviation := score.ReactionTime()
	return []experiment.SummaryItem{
		{Label: "Duration", Value: fmt.Sprintf("%.2f min", score.Duration.Minutes())},
		{Label: "Trials", Value: fmt.Sprintf("%d (targets: %d)", total, targets)},
		{Label: "Detectability", Value: percent(score.Detectability())},
		{Label: "Omissions", Value: fmt.Sprintf("%d (%s)", score.Omissions(), percent(ratio(score.Omissions(), targets)))},
		{Label: "Commissions", Value: fmt.Sprintf("%d (%s)", score.Commissions(), percent(ratio(score.Commissions(), total-targets)))},
		{Label: "Perseverations", Value: fmt.Sprintf("%d (%s)", score.Perseverations(), percent(ratio(score.Perseverations(), total)))},
		{Label: "Mean reaction time", Value: fmt.Sprintf("%.2f ms", mean)},
		{Label: "Reaction time SD", Value: fmt.Sprintf("%.2f", deviation)},
	}
}

func ratio(part, whole int) float64 {
	if whole == 0 {
		return math.NaN()
	}
	return float64(part) / float64(whole)
}

func percent(value float64) string {
	if math.IsNaN(value) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", value*100)
}
