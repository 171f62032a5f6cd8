package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mwhitfield/loom/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Loom configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/loom/config.yaml
Project-specific overrides can be placed in .loom.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

func configValues(cfg *config.Config) map[string]string {
	return map[string]string{
		"scheduler.max_concurrent_tasks":    strconv.Itoa(cfg.Scheduler.MaxConcurrentTasks),
		"scheduler.max_queue_size":          strconv.Itoa(cfg.Scheduler.MaxQueueSize),
		"scheduler.enable_persistence":      strconv.FormatBool(cfg.Scheduler.EnablePersistence),
		"scheduler.retry_failed_tasks":      strconv.FormatBool(cfg.Scheduler.RetryFailedTasks),
		"scheduler.max_retries":             strconv.Itoa(cfg.Scheduler.MaxRetries),
		"scheduler.history_limit":           strconv.Itoa(cfg.Scheduler.HistoryLimit),
		"scheduler.persisted_history_limit": strconv.Itoa(cfg.Scheduler.PersistedHistoryLimit),
		"scheduler.poll_interval":           cfg.Scheduler.PollInterval.String(),
		"coordinator.default_worker":        cfg.Coordinator.DefaultWorker,
		"coordinator.history_limit":         strconv.Itoa(cfg.Coordinator.HistoryLimit),
		"coordinator.history_trim":          strconv.Itoa(cfg.Coordinator.HistoryTrim),
		"workers.definitions":               cfg.Workers.Definitions,
		"workers.scoring_rules":             cfg.Workers.ScoringRules,
		"logging.debug_log":                 cfg.Logging.DebugLog,
		"storage.db_path":                   cfg.Storage.DBPath,
	}
}

// configKeyOrder keeps display output stable.
var configKeyOrder = []string{
	"scheduler.max_concurrent_tasks",
	"scheduler.max_queue_size",
	"scheduler.enable_persistence",
	"scheduler.retry_failed_tasks",
	"scheduler.max_retries",
	"scheduler.history_limit",
	"scheduler.persisted_history_limit",
	"scheduler.poll_interval",
	"coordinator.default_worker",
	"coordinator.history_limit",
	"coordinator.history_trim",
	"workers.definitions",
	"workers.scoring_rules",
	"logging.debug_log",
	"storage.db_path",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	values := configValues(cfg)
	for _, key := range configKeyOrder {
		value := values[key]
		if value == "" {
			value = "(not set)"
		}
		fmt.Printf("%s: %s\n", key, value)
	}
	fmt.Printf("\nUser config: %s\n", config.GetUserConfigPath())
	if project := config.GetProjectConfigPath(); project != "" {
		fmt.Printf("Project config: %s\n", project)
	}
}

// displayConfigKey prints the value of a single key.
func displayConfigKey(cfg *config.Config, key string) {
	values := configValues(cfg)
	value, ok := values[key]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", key)
		os.Exit(1)
	}
	if value == "" {
		value = "(not set)"
	}
	fmt.Println(value)
}

// setConfigKey updates a single key and writes the user config.
func setConfigKey(cfg *config.Config, key, value string) {
	var err error
	switch key {
	case "scheduler.max_concurrent_tasks":
		cfg.Scheduler.MaxConcurrentTasks, err = strconv.Atoi(value)
	case "scheduler.max_queue_size":
		cfg.Scheduler.MaxQueueSize, err = strconv.Atoi(value)
	case "scheduler.enable_persistence":
		cfg.Scheduler.EnablePersistence, err = strconv.ParseBool(value)
	case "scheduler.retry_failed_tasks":
		cfg.Scheduler.RetryFailedTasks, err = strconv.ParseBool(value)
	case "scheduler.max_retries":
		cfg.Scheduler.MaxRetries, err = strconv.Atoi(value)
	case "coordinator.default_worker":
		cfg.Coordinator.DefaultWorker = value
	case "workers.definitions":
		cfg.Workers.Definitions = value
	case "workers.scoring_rules":
		cfg.Workers.ScoringRules = value
	case "logging.debug_log":
		cfg.Logging.DebugLog = value
	case "storage.db_path":
		cfg.Storage.DBPath = value
	default:
		fmt.Fprintf(os.Stderr, "Config key %s cannot be set from the CLI\n", key)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid value for %s: %v\n", key, err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s set to %s\n", key, value)
}
