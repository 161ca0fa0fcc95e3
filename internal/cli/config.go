// Config loading for the taskbridge CLI.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/taskbridge/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envPrefix      = "TASKBRIDGE"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# taskbridge configuration

# Tag attached to every to-do taskbridge creates in the task manager.
sync_tag: Notes Sync

# Propagate task-manager completions back into notes.
bidirectional: true

# Ignore opposite-origin triggers this soon after our own pass.
cooldown_window: 5s

# Minimum gap between watcher-triggered passes for the same source.
min_sync_interval: 10s

# Retry policy for the scripting bridge and locked databases.
max_retries: 3
retry_initial_delay: 1s

# Per-query timeout against the upstream databases.
sqlite_timeout: 5s

# One of: debug, info, warning, error.
log_level: info

# Explicit database paths. Leave unset for auto-discovery.
# notes_database_path:
# tasks_database_path:
`

// loadConfig reads config.yaml from the config directory, layering
// TASKBRIDGE_* environment variables on top. The directory and a default
// config.yaml are created on first run; a missing file is not an error.
func loadConfig(configDir string) (types.Config, error) {
	cfg := types.Default()

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return cfg, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return cfg, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := types.Default()
	v.SetDefault("sync_tag", defaults.SyncTag)
	v.SetDefault("bidirectional", defaults.Bidirectional)
	v.SetDefault("cooldown_window", defaults.CooldownWindow)
	v.SetDefault("min_sync_interval", defaults.MinSyncInterval)
	v.SetDefault("max_retries", defaults.MaxRetries)
	v.SetDefault("retry_initial_delay", defaults.RetryInitialDelay)
	v.SetDefault("sqlite_timeout", defaults.SQLiteTimeout)
	v.SetDefault("log_level", defaults.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ensureDefaultConfigFile creates a commented config.yaml if none exists.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
