package version

import (
	"runtime"
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBuildInfo(t *testing.T, bi *debug.BuildInfo) {
	t.Helper()
	old := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, bi != nil }
	t.Cleanup(func() { readBuildInfo = old })
}

func withVars(t *testing.T, v, commit, date string) {
	t.Helper()
	oldV, oldC, oldD := Version, Commit, BuildDate
	Version, Commit, BuildDate = v, commit, date
	t.Cleanup(func() { Version, Commit, BuildDate = oldV, oldC, oldD })
}

func TestGet_LinkerValues(t *testing.T) {
	withVars(t, "1.4.0", "abc123", "2025-06-01")
	withBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "v9.9.9"}})

	info := Get()
	assert.Equal(t, "1.4.0", info.Version)
	assert.Equal(t, "abc123", info.Commit)
	assert.Equal(t, "2025-06-01", info.BuildDate)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.True(t, info.Release)
	assert.Equal(t, "volworker 1.4.0 (commit: abc123, date: 2025-06-01)", info.String())
}

func TestGet_FallsBackToBuildInfo(t *testing.T) {
	withVars(t, "dev", "none", "unknown")
	withBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "deadbeef"},
			{Key: "vcs.time", Value: "2025-05-30T10:00:00Z"},
		},
	})

	info := Get()
	assert.Equal(t, "v0.3.0", info.Version)
	assert.Equal(t, "deadbeef", info.Commit)
	assert.Equal(t, "2025-05-30T10:00:00Z", info.BuildDate)
	assert.True(t, info.Release)
}

func TestGet_DevelopmentBuild(t *testing.T) {
	withVars(t, "dev", "none", "unknown")
	withBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})

	info := Get()
	assert.Equal(t, "dev", info.Version)
	assert.False(t, info.Release)
	assert.Contains(t, info.String(), "[development build]")
}

func TestIsRelease(t *testing.T) {
	for v, want := range map[string]bool{
		"dev":          false,
		"1.2.3":        true,
		"v0.4.0":       true,
		"1.0.0-rc.1":   false,
		"not-a-semver": false,
	} {
		assert.Equal(t, want, isRelease(v), v)
	}
}

func TestUptime(t *testing.T) {
	require.GreaterOrEqual(t, Uptime(), time.Duration(0))
	require.Less(t, Uptime(), time.Hour)
}
