package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "volworker"

// ConfigDirEnv overrides every other config directory lookup. It is useful
// for containers where HOME is not writable.
const ConfigDirEnv = "VOLWORKER_CONFIG_DIR"

// ConfigDir resolves the configuration directory: $VOLWORKER_CONFIG_DIR,
// then $XDG_CONFIG_HOME/volworker, then the platform default.
func ConfigDir() string {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir
	}
	if dir, ok := xdg("XDG_CONFIG_HOME"); ok {
		return dir
	}
	if dir, ok := appData(); ok {
		return dir
	}
	return filepath.Join(home(), ".config", appName)
}

// ConfigFile is the config.yaml read when --config is not given.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir resolves the directory holding the default workspace:
// $XDG_DATA_HOME/volworker, then the platform default.
func DataDir() string {
	if dir, ok := xdg("XDG_DATA_HOME"); ok {
		return dir
	}
	if dir, ok := appData(); ok {
		return dir
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home(), "Library", "Application Support", "Volworker")
	}
	return filepath.Join(home(), ".local", "share", appName)
}

func xdg(name string) (string, bool) {
	base := os.Getenv(name)
	if base == "" {
		return "", false
	}
	return filepath.Join(base, appName), true
}

func appData() (string, bool) {
	if runtime.GOOS != "windows" {
		return "", false
	}
	base := os.Getenv("AppData")
	if base == "" {
		return "", false
	}
	return filepath.Join(base, "Volworker"), true
}

func home() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return dir
}
