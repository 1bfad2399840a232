// Package build provides version and build information for hookrelay.
// It has no dependencies on other internal packages.
package build

import "fmt"

var (
	// Version information - set via ldflags during build
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// IsDevBuild returns true if running a development build (not a release)
func IsDevBuild() bool {
	return Version == "dev"
}

// Summary returns a one-line version string, e.g. "v0.3.1 (abc1234, 2026-05-02)"
func Summary() string {
	if IsDevBuild() {
		return fmt.Sprintf("dev (%s)", Commit)
	}
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, BuildDate)
}
