// Package version holds build metadata injected via ldflags.
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders version, commit and build date for banners and CLI output.
func String() string {
	return Version + " (" + Commit + ", built " + Date + ")"
}
