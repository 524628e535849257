// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package trial generates target/non-target trial streams for
// vigilance paradigms such as the continuous performance test.
//
// The stream length is fixed before the first trial: either an
// explicit count, or the number of whole trial periods
// (stimulus + inter-stimulus interval) that fit in the experiment
// duration. [PseudoRandom] mode fills a block with exactly
// round(rate·count) targets and shuffles it; [Independent] mode draws
// each trial separately. Both modes produce exactly [Count] stages.
package trial
