// Package config handles configuration loading and management for Loom.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/mwhitfield/loom/internal/coordinator"
	"github.com/mwhitfield/loom/internal/scheduler"
)

// Config holds all configuration for Loom.
type Config struct {
	Scheduler   scheduler.Config   `mapstructure:"scheduler"`
	Coordinator coordinator.Config `mapstructure:"coordinator"`
	Workers     WorkersConfig      `mapstructure:"workers"`
	Logging     LoggingConfig      `mapstructure:"logging"`
	Storage     StorageConfig      `mapstructure:"storage"`
}

// WorkersConfig points at the declarative worker and scoring definitions.
type WorkersConfig struct {
	// Definitions is the YAML file describing the worker roster.
	Definitions string `mapstructure:"definitions"`
	// ScoringRules is the YAML file with keyword scoring rules. When set,
	// the file is watched and reloaded on change.
	ScoringRules string `mapstructure:"scoring_rules"`
}

// LoggingConfig holds debug log settings.
type LoggingConfig struct {
	// DebugLog is the path of the debug log file. Empty disables logging.
	DebugLog string `mapstructure:"debug_log"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// DBPath is the SQLite database location. Empty uses the XDG default.
	DBPath string `mapstructure:"db_path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (LOOM_*)
// 2. Project config (.loom.yaml in current directory or parent)
// 3. User config (~/.config/loom/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Load user config from XDG path
	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.SetEnvPrefix("LOOM")
	v.AutomaticEnv()
	v.BindEnv("scheduler.max_concurrent_tasks", "LOOM_MAX_CONCURRENT_TASKS")
	v.BindEnv("logging.debug_log", "LOOM_DEBUG_LOG")
	v.BindEnv("storage.db_path", "LOOM_DB_PATH")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Logging.DebugLog = os.ExpandEnv(cfg.Logging.DebugLog)
	cfg.Storage.DBPath = os.ExpandEnv(cfg.Storage.DBPath)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Logging.DebugLog = os.ExpandEnv(cfg.Logging.DebugLog)
	cfg.Storage.DBPath = os.ExpandEnv(cfg.Storage.DBPath)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("scheduler.max_concurrent_tasks", cfg.Scheduler.MaxConcurrentTasks)
	v.Set("scheduler.max_queue_size", cfg.Scheduler.MaxQueueSize)
	v.Set("scheduler.enable_persistence", cfg.Scheduler.EnablePersistence)
	v.Set("scheduler.retry_failed_tasks", cfg.Scheduler.RetryFailedTasks)
	v.Set("scheduler.max_retries", cfg.Scheduler.MaxRetries)
	v.Set("scheduler.history_limit", cfg.Scheduler.HistoryLimit)
	v.Set("scheduler.persisted_history_limit", cfg.Scheduler.PersistedHistoryLimit)
	v.Set("scheduler.poll_interval", cfg.Scheduler.PollInterval.String())
	v.Set("coordinator.default_worker", cfg.Coordinator.DefaultWorker)
	v.Set("coordinator.history_limit", cfg.Coordinator.HistoryLimit)
	v.Set("coordinator.history_trim", cfg.Coordinator.HistoryTrim)
	v.Set("workers.definitions", cfg.Workers.Definitions)
	v.Set("workers.scoring_rules", cfg.Workers.ScoringRules)
	v.Set("logging.debug_log", cfg.Logging.DebugLog)
	v.Set("storage.db_path", cfg.Storage.DBPath)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	sched := scheduler.DefaultConfig()
	v.SetDefault("scheduler.max_concurrent_tasks", sched.MaxConcurrentTasks)
	v.SetDefault("scheduler.max_queue_size", sched.MaxQueueSize)
	v.SetDefault("scheduler.enable_persistence", sched.EnablePersistence)
	v.SetDefault("scheduler.retry_failed_tasks", sched.RetryFailedTasks)
	v.SetDefault("scheduler.max_retries", sched.MaxRetries)
	v.SetDefault("scheduler.history_limit", sched.HistoryLimit)
	v.SetDefault("scheduler.persisted_history_limit", sched.PersistedHistoryLimit)
	v.SetDefault("scheduler.poll_interval", sched.PollInterval.String())

	coord := coordinator.DefaultConfig()
	v.SetDefault("coordinator.default_worker", coord.DefaultWorker)
	v.SetDefault("coordinator.history_limit", coord.HistoryLimit)
	v.SetDefault("coordinator.history_trim", coord.HistoryTrim)

	v.SetDefault("workers.definitions", "")
	v.SetDefault("workers.scoring_rules", "")
	v.SetDefault("logging.debug_log", "")
	v.SetDefault("storage.db_path", "")
}

// getUserConfigDir returns the XDG config directory for Loom.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "loom")
	}

	// Fall back to ~/.config/loom
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "loom")
	}
	return filepath.Join(home, ".config", "loom")
}

// findProjectConfig searches for .loom.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".loom.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Scheduler:   scheduler.DefaultConfig(),
		Coordinator: coordinator.DefaultConfig(),
	}
}
