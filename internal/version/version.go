// Package version holds build metadata stamped via ldflags.
package version

//nolint:revive // Overridden by ldflags at release time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
