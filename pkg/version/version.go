// Package version describes the running volworker build.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Set through -ldflags "-X github.com/vulntor/volworker/pkg/version.Version=...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// StartDate is when the process started.
var StartDate = time.Now()

var readBuildInfo = debug.ReadBuildInfo

// BuildInfo is printed by the version command and served by /readyz.
type BuildInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildDate string `json:"buildDate" yaml:"buildDate"`
	GoVersion string `json:"goVersion" yaml:"goVersion"`
	Platform  string `json:"platform" yaml:"platform"`
	Release   bool   `json:"release" yaml:"release"`
}

// Get returns the build information. Builds without ldflags (go install)
// fall back to the module version and VCS revision recorded by the toolchain.
func Get() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := readBuildInfo(); ok {
		if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info.Commit == "none":
				info.Commit = s.Value
			case s.Key == "vcs.time" && info.BuildDate == "unknown":
				info.BuildDate = s.Value
			}
		}
	}
	info.Release = isRelease(info.Version)
	return info
}

func (b BuildInfo) String() string {
	s := fmt.Sprintf("volworker %s (commit: %s, date: %s)", b.Version, b.Commit, b.BuildDate)
	if !b.Release {
		s += " [development build]"
	}
	return s
}

// Uptime is the time since StartDate.
func Uptime() time.Duration {
	return time.Since(StartDate).Round(time.Second)
}

// isRelease reports whether v is a tagged, non-prerelease semver.
func isRelease(v string) bool {
	sv, err := semver.NewVersion(v)
	return err == nil && sv.Prerelease() == ""
}
