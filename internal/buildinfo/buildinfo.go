// Package buildinfo holds version metadata injected at link time via
// -ldflags "-X tailview/internal/buildinfo.Version=...".
package buildinfo

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
