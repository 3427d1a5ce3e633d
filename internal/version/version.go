// Package version holds build information. The variables are set with
// -ldflags, for example:
//
//	go build -ldflags "-X github.com/OpenCHAMI/maas-power-unifi/internal/version.Version=v1.0.0"
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is the release or semantic version of the binary.
	Version string
	// GitCommit is the commit the binary was built from.
	GitCommit string
	// BuildTime is the UTC build timestamp.
	BuildTime string
)

// SetVersionInfo() is used by main to pass values set through -ldflags on
// the main package.
func SetVersionInfo(version, commit, date string) {
	if version != "" {
		Version = version
	}
	if commit != "" {
		GitCommit = commit
	}
	if date != "" {
		BuildTime = date
	}
}

// Tag() returns the version, falling back to the module version recorded
// by the Go toolchain and then to "dev".
func Tag() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// Revision() returns the commit, falling back to the VCS revision recorded
// by the Go toolchain.
func Revision() string {
	if GitCommit != "" {
		return GitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}

// VersionInfo() is the one line summary printed by --version.
func VersionInfo() string {
	info := fmt.Sprintf("%s (commit %s", Tag(), Revision())
	if BuildTime != "" {
		info += ", built " + BuildTime
	}
	return info + ", " + runtime.Version() + ")"
}
