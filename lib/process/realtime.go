// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MinNice and MaxNice bound the scheduling priority accepted by
// [SetNice].
const (
	MinNice = -20
	MaxNice = 19
)

// LockMemory locks every current and future page of the process into
// RAM, so that a page fault cannot delay a stage onset. Usually needs
// CAP_IPC_LOCK or a raised RLIMIT_MEMLOCK.
func LockMemory() error {
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return fmt.Errorf("mlockall: %w", err)
	}
	return nil
}

// UnlockMemory undoes [LockMemory].
func UnlockMemory() error {
	if err := unix.Munlockall(); err != nil {
		return fmt.Errorf("munlockall: %w", err)
	}
	return nil
}

// SetNice sets the scheduling priority of the whole process. Negative
// values need CAP_SYS_NICE.
func SetNice(nice int) error {
	if nice < MinNice || nice > MaxNice {
		return fmt.Errorf("nice value %d out of range [%d, %d]", nice, MinNice, MaxNice)
	}
	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, nice); err != nil {
		return fmt.Errorf("setpriority(%d): %w", nice, err)
	}
	return nil
}

// Nice returns the current scheduling priority of the process.
func Nice() (int, error) {
	// The raw syscall returns 20 - nice so that the result is never
	// negative.
	value, err := unix.Getpriority(unix.PRIO_PROCESS, 0)
	if err != nil {
		return 0, fmt.Errorf("getpriority: %w", err)
	}
	return 20 - value, nil
}
