package version

// Version is the service version. It is overridden at build time with
// -ldflags "-X github.com/hrygo/timetable/internal/version.Version=...".
var Version = "0.3.0"

// DevVersion is reported in dev mode.
var DevVersion = "0.3.0-dev"

// GetCurrentVersion returns the version for the given mode.
func GetCurrentVersion(mode string) string {
	if mode == "dev" || mode == "demo" {
		return DevVersion
	}
	return Version
}
