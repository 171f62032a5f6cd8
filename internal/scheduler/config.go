package scheduler

import "time"

// Config holds scheduler tuning knobs. The zero value is not usable; start
// from DefaultConfig and override fields as needed.
type Config struct {
	// MaxConcurrentTasks caps how many jobs execute at once.
	MaxConcurrentTasks int `mapstructure:"max_concurrent_tasks"`
	// MaxQueueSize caps the live job collection (queued + running + paused).
	MaxQueueSize int `mapstructure:"max_queue_size"`
	// EnablePersistence controls snapshot writes to the state store.
	EnablePersistence bool `mapstructure:"enable_persistence"`
	// RetryFailedTasks enables re-queueing jobs whose executor errored.
	RetryFailedTasks bool `mapstructure:"retry_failed_tasks"`
	// MaxRetries bounds retries for jobs that don't set their own limit.
	MaxRetries int `mapstructure:"max_retries"`
	// HistoryLimit caps the in-memory terminal job history.
	HistoryLimit int `mapstructure:"history_limit"`
	// PersistedHistoryLimit caps how much history goes into snapshots.
	PersistedHistoryLimit int `mapstructure:"persisted_history_limit"`
	// PollInterval is the dispatch loop tick period.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// DefaultConfig returns the standard scheduler configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentTasks:    3,
		MaxQueueSize:          100,
		EnablePersistence:     true,
		RetryFailedTasks:      true,
		MaxRetries:            3,
		HistoryLimit:          100,
		PersistedHistoryLimit: 50,
		PollInterval:          500 * time.Millisecond,
	}
}

// normalize fills in zero fields with defaults so a partially-populated
// Config can't wedge the dispatch loop.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.MaxConcurrentTasks <= 0 {
		c.MaxConcurrentTasks = def.MaxConcurrentTasks
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = def.MaxQueueSize
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = def.HistoryLimit
	}
	if c.PersistedHistoryLimit <= 0 {
		c.PersistedHistoryLimit = def.PersistedHistoryLimit
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	return c
}
