// Package version provides build and version information.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build information set via ldflags.
var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// Date is the build date (set via -ldflags).
	Date = "unknown"
)

// Current returns Version, falling back to the module version recorded by
// `go install` when no ldflags were given.
func Current() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return Version
}

// String returns the full version line shown by `paira version`.
func String() string {
	return fmt.Sprintf("paira %s (commit %s, built %s, %s/%s)", Current(), Commit, Date, runtime.GOOS, runtime.GOARCH)
}

// UserAgent returns the User-Agent sent to the paira service.
func UserAgent() string {
	return fmt.Sprintf("paira/%s (%s; %s)", Current(), runtime.GOOS, runtime.GOARCH)
}
