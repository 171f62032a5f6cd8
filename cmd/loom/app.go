package main

import (
	"fmt"

	"github.com/mwhitfield/loom/internal/config"
	"github.com/mwhitfield/loom/internal/coordinator"
	"github.com/mwhitfield/loom/internal/logging"
	"github.com/mwhitfield/loom/internal/registry"
	"github.com/mwhitfield/loom/internal/scheduler"
	"github.com/mwhitfield/loom/internal/state"
	"github.com/mwhitfield/loom/internal/workers"
)

// app bundles the wired components behind a CLI command.
type app struct {
	cfg      *config.Config
	logger   *logging.DebugLogger
	store    state.Store
	registry *registry.Registry
	coord    *coordinator.Coordinator
	sched    *scheduler.Scheduler

	cleanups []func()
}

// buildApp assembles the full pipeline: config, logging, persistence, the
// worker roster, the coordinator, and the scheduler with the coordinator
// registered as its executor.
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{cfg: cfg, logger: logging.Nop()}
	if cfg.Logging.DebugLog != "" {
		logger, err := logging.New(cfg.Logging.DebugLog)
		if err != nil {
			return nil, fmt.Errorf("open debug log: %w", err)
		}
		a.logger = logger
		a.cleanups = append(a.cleanups, func() { logger.Close() })
	}

	if cfg.Scheduler.EnablePersistence {
		dbPath := cfg.Storage.DBPath
		if dbPath == "" {
			dbPath = state.DefaultDBPath()
		}
		db, err := state.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open state db: %w", err)
		}
		a.store = db
		a.cleanups = append(a.cleanups, func() { db.Close() })
	}

	a.registry = registry.New()
	if cfg.Workers.Definitions != "" {
		defs, err := registry.LoadDefinitions(cfg.Workers.Definitions)
		if err != nil {
			return nil, fmt.Errorf("load worker definitions: %w", err)
		}
		if err := a.registry.RegisterDefinitions(defs, workers.Bindings()); err != nil {
			return nil, fmt.Errorf("register workers: %w", err)
		}
	}
	if a.registry.Count() == 0 {
		if err := workers.Register(a.registry); err != nil {
			return nil, fmt.Errorf("register built-in workers: %w", err)
		}
	}

	scorer := coordinator.NewKeywordScorer()
	if cfg.Workers.ScoringRules != "" {
		stop, err := scorer.WatchRules(cfg.Workers.ScoringRules, a.logger)
		if err != nil {
			return nil, fmt.Errorf("load scoring rules: %w", err)
		}
		a.cleanups = append(a.cleanups, stop)
	}

	a.coord = coordinator.New(cfg.Coordinator, a.registry,
		coordinator.WithScorer(scorer),
		coordinator.WithLogger(a.logger),
	)

	schedOpts := []scheduler.Option{scheduler.WithLogger(a.logger)}
	if a.store != nil {
		schedOpts = append(schedOpts, scheduler.WithStore(a.store))
	}
	a.sched = scheduler.New(cfg.Scheduler, schedOpts...)
	a.sched.RegisterExecutor(coordinator.JobType, coordinator.NewExecutor(a.coord))

	return a, nil
}

// Close releases everything buildApp opened, in reverse order.
func (a *app) Close() {
	a.sched.Destroy()
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
}
