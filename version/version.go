// Package version exposes build metadata injected at link time.
package version

import (
	"fmt"
	"runtime"
)

// These variables are populated by the Go linker during the build process.
var (
	Version   = "dev"     // Overridden by the Git tag or dev version string
	Commit    = "none"    // Overridden by the Git commit hash
	Branch    = "unknown" // Overridden by the Git branch name
	BuildDate = "unknown" // Overridden by the build timestamp
)

// Info holds all the versioning information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Branch    string `json:"branch"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// GetInfo returns a struct populated with the version information.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Branch:    Branch,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a formatted string of the version information.
func (i Info) String() string {
	return fmt.Sprintf(
		"  Commit:     %s\n  Branch:     %s\n  Built:      %s\n  Go:         %s\n  Platform:   %s",
		i.Commit, i.Branch, i.BuildDate, i.GoVersion, i.Platform,
	)
}

// UserAgent is the User-Agent header sent to the orchestration service.
func UserAgent() string {
	return fmt.Sprintf("storefront/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
