// Package version carries the build-time version string printed by
// the -version flag, following the teacher's cmd/vget-server pattern
// of a small standalone version package.
package version

// Version is overridden at build time via -ldflags "-X tgfs/internal/version.Version=...".
var Version = "dev"
