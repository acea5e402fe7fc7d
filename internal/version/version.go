// Package version holds build information injected at link time.
package version

import (
	"runtime"
)

// Set with -ldflags "-X github.com/Tyrowin/roomhub/internal/version.Version=..."
var (
	Version   = "0.0.0-dev"
	GitCommit = ""
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	GoVersion string `json:"goVersion"`
	Arch      string `json:"arch"`
	OS        string `json:"os"`
}

// GetVersionInfo returns the build information of the running binary.
func GetVersionInfo() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Arch:      runtime.GOARCH,
		OS:        runtime.GOOS,
	}
}
