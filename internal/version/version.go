// Package version provides build information for stellar-art.
package version

import (
	"fmt"
	"runtime"
)

// These variables are set at build time using -ldflags
var (
	// Name is the application name
	Name = "stellar-art"

	// Version is the semantic version (set via -ldflags at build time)
	Version = "0.1.0"

	// BuildTime is the build timestamp (set via -ldflags at build time)
	BuildTime = ""

	// GitCommit is the git commit hash (set via -ldflags at build time)
	GitCommit = ""
)

// ProjectURL is sent in the User-Agent of outgoing requests.
const ProjectURL = "https://github.com/edumarques81/stellar-artwork"

// Info contains version information
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	BuildTime string `json:"buildTime,omitempty"`
	GitCommit string `json:"gitCommit,omitempty"`
	GoVersion string `json:"goVersion"`
}

// GetInfo returns the current version information
func GetInfo() Info {
	return Info{
		Name:      Name,
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
	}
}

// String returns a formatted version string
func (i Info) String() string {
	s := fmt.Sprintf("%s v%s", i.Name, i.Version)
	if i.GitCommit != "" {
		s += fmt.Sprintf(" (%s)", i.GitCommit[:min(7, len(i.GitCommit))])
	}
	if i.BuildTime != "" {
		s += fmt.Sprintf(" built %s", i.BuildTime)
	}
	return s
}

// UserAgent identifies this build to the MusicBrainz-style APIs, which ask
// for an application name, version and contact URL.
func UserAgent() string {
	return fmt.Sprintf("StellarArtwork/%s (%s)", Version, ProjectURL)
}
