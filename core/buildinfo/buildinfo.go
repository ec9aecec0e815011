// Package buildinfo carries release metadata stamped in with -ldflags:
//
//	-X 'github.com/m3rciful/tunebot/core/buildinfo.Version=v0.3.0'
//	-X 'github.com/m3rciful/tunebot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/tunebot/core/buildinfo.Date=2026-01-05T12:00:00Z'
package buildinfo

var (
	Version = "dev"
	Commit  = "local"
	// Date is RFC3339; empty for local builds.
	Date = ""
)

// String renders the metadata for --version and startup logs.
func String() string {
	s := Version + " (" + Commit
	if Date != "" {
		s += ", " + Date
	}
	return s + ")"
}
