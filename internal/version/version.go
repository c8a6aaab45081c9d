// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

// Package version carries the build identity stamped in via ldflags.
package version

import "fmt"

var (
	// Version is the release tag; the default marks untagged dev builds.
	Version = "v0.3.0-dev"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String renders the full build identity for -version output and startup logs.
func String() string {
	return fmt.Sprintf("playerd %s (commit: %s, built: %s)", Version, Commit, Date)
}
