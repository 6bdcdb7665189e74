package version

import (
	"fmt"
	"runtime"
)

// These variables are set by ldflags during build.
var (
	version   = "dev"     // App version (e.g., v0.1.0)
	buildDate = "unknown" // Build date (RFC3339)
	gitCommit = "unknown" // Git commit SHA
)

// BuildInfo contains version and build details.
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
	GoVersion string
}

// Get returns the build information.
func Get() BuildInfo {
	return BuildInfo{
		Version:   version,
		BuildDate: buildDate,
		GitCommit: gitCommit,
		GoVersion: runtime.Version(),
	}
}

// String renders the build information on one line
func (b BuildInfo) String() string {
	return fmt.Sprintf("shotty version %s (built: %s, commit: %s, %s)", b.Version, b.BuildDate, b.GitCommit, b.GoVersion)
}
