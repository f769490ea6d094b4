// Package paths resolves the on-disk location of the schemalog data
// directory from its configured form.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultDataDir returns the platform-specific data directory used when the
// configured data_dir is empty.
//
// Linux:   $XDG_DATA_HOME/schemalog (fallback ~/.local/share/schemalog)
// macOS:   ~/Library/Application Support/schemalog
// Windows: %APPDATA%/schemalog
func DefaultDataDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "schemalog"), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "schemalog"), nil
	default:
		// macOS and Windows use os.UserConfigDir which returns
		// ~/Library/Application Support on macOS and %APPDATA% on Windows.
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "schemalog"), nil
	}
}

// ResolveDataDir turns the configured data_dir into an absolute path. An
// empty value resolves to the platform default; a leading "~/" is expanded
// against the home directory; relative paths are anchored at the working
// directory so a daemon that changes directory keeps its store.
func ResolveDataDir(configured string) (string, error) {
	switch {
	case configured == "":
		return DefaultDataDir()
	case configured == "~" || strings.HasPrefix(configured, "~/"):
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(configured, "~")), nil
	default:
		return filepath.Abs(configured)
	}
}
