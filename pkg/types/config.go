package types

import (
	"errors"
	"time"
)

// Config holds the runtime settings for the reconciliation engine and the
// two store adapters. Values come from config.yaml and TASKBRIDGE_*
// environment variables; zero values are filled in by Default.
type Config struct {
	// Database paths. Empty means auto-discovery.
	NotesDatabasePath string `mapstructure:"notes_database_path" yaml:"notes_database_path,omitempty"`
	TasksDatabasePath string `mapstructure:"tasks_database_path" yaml:"tasks_database_path,omitempty"`

	// SyncTag is the marker label attached to every item taskbridge
	// creates in the task store.
	SyncTag string `mapstructure:"sync_tag" yaml:"sync_tag"`

	// Bidirectional enables tasks-to-notes completion propagation.
	Bidirectional bool `mapstructure:"bidirectional" yaml:"bidirectional"`

	// CooldownWindow is the period after a pass during which an
	// opposite-origin trigger is treated as an echo of our own write.
	CooldownWindow time.Duration `mapstructure:"cooldown_window" yaml:"cooldown_window"`

	// MinSyncInterval throttles how often the watcher fires a pass for
	// the same source.
	MinSyncInterval time.Duration `mapstructure:"min_sync_interval" yaml:"min_sync_interval"`

	// Retry policy for scripting-bridge and locked-database operations.
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryInitialDelay time.Duration `mapstructure:"retry_initial_delay" yaml:"retry_initial_delay"`

	// SQLiteTimeout bounds each read query against an upstream database.
	SQLiteTimeout time.Duration `mapstructure:"sqlite_timeout" yaml:"sqlite_timeout"`

	// LogLevel is one of debug, info, warning, error.
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Config validation errors.
var (
	ErrCooldownInvalid = errors.New("cooldown window must be positive")
	ErrRetriesInvalid  = errors.New("max retries must be positive")
	ErrSyncTagEmpty    = errors.New("sync tag must not be empty")
)

// Default returns the configuration used when no config file exists.
func Default() Config {
	return Config{
		SyncTag:           "Notes Sync",
		Bidirectional:     true,
		CooldownWindow:    5 * time.Second,
		MinSyncInterval:   10 * time.Second,
		MaxRetries:        3,
		RetryInitialDelay: time.Second,
		SQLiteTimeout:     5 * time.Second,
		LogLevel:          "info",
	}
}

// Validate checks that the Config is well-formed, returning a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.CooldownWindow <= 0 {
		return ErrCooldownInvalid
	}
	if c.MaxRetries <= 0 {
		return ErrRetriesInvalid
	}
	if c.SyncTag == "" {
		return ErrSyncTagEmpty
	}
	return nil
}
