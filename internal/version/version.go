package version

import "fmt"

// Build metadata, overridden at link time:
//
//	go build -ldflags "-X wakemeup/internal/version.Version=..."
var (
	// Version is the release the binary was built from.
	Version = "0.1.0-dev"
	// Commit is the git revision the binary was built from.
	Commit = "unknown"
	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"
)

// Short returns only the release string.
func Short() string {
	return Version
}

// Full returns the release, commit and build time in one line.
func Full() string {
	return fmt.Sprintf("wakemeup %s (commit %s, built %s)", Version, Commit, BuildTime)
}
