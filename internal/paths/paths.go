// Package paths resolves configuration and data directory locations and
// discovers the upstream database files.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "TASKBRIDGE_CONFIG_DIR"
	EnvDataDir   = "TASKBRIDGE_DATA_DIR"
)

// Upstream database locations under ~/Library/Group Containers. The team
// identifier prefix varies per install, hence the globs.
const (
	notesDatabaseGlob = "*.net.shinyfrog.bear/Application Data/database.sqlite"
	tasksDatabaseGlob = "*.com.culturedcode.ThingsMac/ThingsData-*/Things Database.thingsdatabase/main.sqlite"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/taskbridge (fallback ~/.config/taskbridge)
// macOS:   ~/Library/Application Support/taskbridge
// Windows: %APPDATA%/taskbridge
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "taskbridge"), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "taskbridge"), nil
	default:
		// macOS and Windows use os.UserConfigDir which returns
		// ~/Library/Application Support on macOS and %APPDATA% on Windows.
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "taskbridge"), nil
	}
}

// DefaultDataDir returns the platform-specific default data directory,
// which holds the sync state file and logs.
//
// Linux:   $XDG_DATA_HOME/taskbridge (fallback ~/.local/share/taskbridge)
// macOS:   ~/Library/Application Support/taskbridge
// Windows: %APPDATA%/taskbridge
func DefaultDataDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "taskbridge"), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "taskbridge"), nil
	default:
		// macOS and Windows: same as config dir.
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "taskbridge"), nil
	}
}

// ResolveConfigDir returns the configuration directory following the
// precedence chain: flag > TASKBRIDGE_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > config value > TASKBRIDGE_DATA_DIR env > DefaultDataDir().
func ResolveDataDir(flag, configValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configValue != "" {
		return filepath.Abs(configValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultDataDir()
}

// NotesDatabasePath returns the configured path, or discovers the notes
// database under the group containers directory.
func NotesDatabasePath(configured string) (string, error) {
	return databasePath(configured, notesDatabaseGlob, "notes")
}

// TasksDatabasePath returns the configured path, or discovers the task
// manager database under the group containers directory.
func TasksDatabasePath(configured string) (string, error) {
	return databasePath(configured, tasksDatabaseGlob, "tasks")
}

func databasePath(configured, glob, which string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("%s database: %w", which, err)
		}
		return configured, nil
	}

	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	pattern := filepath.Join(home, "Library", "Group Containers", glob)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("discover %s database: %w", which, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%s database not found under %s", which, pattern)
	}
	// Deterministic choice when multiple containers match.
	sort.Strings(matches)
	return matches[0], nil
}
