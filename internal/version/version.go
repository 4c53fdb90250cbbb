// Package version carries the build metadata injected at link time.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Build-time metadata injected via -ldflags.
// Defaults are used for local/dev builds.
var (
	AppVersion = "dev"
	GitCommit  = "unknown"
	BuildTime  = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// Current returns the build metadata for this binary.
func Current() Info {
	return Info{
		Version:   orUnknown(AppVersion, "dev"),
		Commit:    orUnknown(GitCommit, "unknown"),
		BuildTime: orUnknown(BuildTime, "unknown"),
		GoVersion: runtime.Version(),
	}
}

// String returns a human-readable version string.
func (i Info) String() string {
	return fmt.Sprintf("openvpn-webui %s (commit %s, built %s, %s)",
		orUnknown(i.Version, "dev"),
		orUnknown(i.Commit, "unknown"),
		orUnknown(i.BuildTime, "unknown"),
		orUnknown(i.GoVersion, runtime.Version()),
	)
}

func orUnknown(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
