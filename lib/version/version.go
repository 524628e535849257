// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Build metadata is injected via -ldflags, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/stager/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/stager

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty is "true" when the tree had uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version, set by hand for releases.
	Version = "0.1.0-dev"
)

// buildInfo is swapped by tests.
var buildInfo = debug.ReadBuildInfo

// vcs returns the commit, dirty flag, and build time, preferring
// ldflags and falling back to the VCS stamp the go command embeds
// in module builds.
func vcs() (commit string, dirty bool, built string) {
	commit, dirty, built = GitCommit, GitDirty == "true", BuildTime
	if commit != "unknown" {
		return commit, dirty, built
	}
	info, ok := buildInfo()
	if !ok {
		return commit, dirty, built
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			commit = setting.Value
			if len(commit) > 12 {
				commit = commit[:12]
			}
		case "vcs.modified":
			dirty = setting.Value == "true"
		case "vcs.time":
			if built == "unknown" {
				built = setting.Value
			}
		}
	}
	return commit, dirty, built
}

// Info returns the one-line version string for version output.
func Info() string {
	commit, dirty, built := vcs()
	suffix := ""
	if dirty {
		suffix = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, commit, suffix, built)
}

// Full returns Info plus the Go version and platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number.
func Short() string {
	return Version
}

// Writer returns the tag stamped into recordings: the program name,
// version, and commit when known.
func Writer() string {
	commit, _, _ := vcs()
	if commit == "unknown" {
		return "stager " + Version
	}
	return fmt.Sprintf("stager %s+%s", Version, commit)
}
