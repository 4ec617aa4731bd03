/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build version information.
package version

// Version is the current version of Heimdall Signage.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/heimdall_signage/internal/version.Version=X.Y.Z
var Version = "0.4.0"

// Commit is the git commit the binary was built from, set via ldflags.
var Commit = "unknown"

// String returns a human readable version string.
func String() string {
	if Commit == "unknown" {
		return Version
	}
	return Version + " (" + Commit + ")"
}
