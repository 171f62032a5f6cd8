package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mwhitfield/loom/internal/logging"
	"github.com/mwhitfield/loom/internal/registry"
	"github.com/mwhitfield/loom/pkg/models"
)

// Config tunes coordinator behavior.
type Config struct {
	// DefaultWorker answers alone when no capability matches, and leads
	// hierarchical groups when it is part of the selection.
	DefaultWorker string `mapstructure:"default_worker"`
	// HistoryLimit bounds the performance history before trimming.
	HistoryLimit int `mapstructure:"history_limit"`
	// HistoryTrim is how many recent entries survive a trim.
	HistoryTrim int `mapstructure:"history_trim"`
}

// DefaultConfig returns the stock coordinator settings.
func DefaultConfig() Config {
	return Config{
		DefaultWorker: "generalist",
		HistoryLimit:  1000,
		HistoryTrim:   500,
	}
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if c.DefaultWorker == "" {
		c.DefaultWorker = def.DefaultWorker
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = def.HistoryLimit
	}
	if c.HistoryTrim <= 0 || c.HistoryTrim > c.HistoryLimit {
		c.HistoryTrim = c.HistoryLimit / 2
	}
}

// PerfEntry records one coordinated request for trend inspection.
type PerfEntry struct {
	Category    string          `json:"category"`
	Workers     []string        `json:"workers"`
	Topology    models.Topology `json:"topology"`
	Duration    time.Duration   `json:"duration"`
	Success     bool            `json:"success"`
	CompletedAt time.Time       `json:"completed_at"`
}

// CoordinationMeta describes how a response was produced.
type CoordinationMeta struct {
	Topology   models.Topology `json:"topology"`
	Workers    []string        `json:"workers"`
	Reasoning  string          `json:"reasoning"`
	Confidence float64         `json:"confidence"`
	Fallback   bool            `json:"fallback,omitempty"`
}

// Response is the synthesized answer to one coordinated request.
type Response struct {
	TaskID        string                          `json:"task_id"`
	Content       string                          `json:"content"`
	WorkerResults map[string]*models.WorkerResult `json:"worker_results"`
	Coordination  CoordinationMeta                `json:"coordination"`
	Duration      time.Duration                   `json:"duration"`
}

// Coordinator routes requests to workers and folds their answers into one
// response. It holds no worker logic itself; workers come from the registry
// and scoring comes from the Scorer.
type Coordinator struct {
	cfg      Config
	registry *registry.Registry
	scorer   Scorer
	logger   *logging.DebugLogger

	mu      sync.Mutex
	active  map[string]*models.CoordinatedTask
	history []PerfEntry
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithScorer swaps the worker-ranking strategy.
func WithScorer(s Scorer) Option {
	return func(c *Coordinator) { c.scorer = s }
}

// WithLogger attaches a debug logger.
func WithLogger(l *logging.DebugLogger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// New creates a Coordinator over the given worker registry.
func New(cfg Config, reg *registry.Registry, opts ...Option) *Coordinator {
	cfg.normalize()
	c := &Coordinator{
		cfg:      cfg,
		registry: reg,
		scorer:   NewKeywordScorer(),
		logger:   logging.Nop(),
		active:   make(map[string]*models.CoordinatedTask),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProcessRequest selects workers for the request, runs them under the chosen
// topology, and synthesizes their answers. Individual worker failures are
// tolerated; an error is returned only when no worker produces a result.
func (c *Coordinator) ProcessRequest(ctx context.Context, request string, reqCtx map[string]any) (*Response, error) {
	start := time.Now()
	task := &models.CoordinatedTask{
		ID:        uuid.New().String(),
		Request:   request,
		Context:   reqCtx,
		Status:    models.CoordinatedPending,
		CreatedAt: start,
		UpdatedAt: start,
	}

	c.mu.Lock()
	c.active[task.ID] = task
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.active, task.ID)
		c.mu.Unlock()
	}()

	sel, err := selectWorkers(c.registry, c.scorer, c.cfg.DefaultWorker, request, reqCtx)
	if err != nil {
		c.recordPerf(request, reqCtx, nil, "", time.Since(start), false)
		return nil, err
	}

	names := make([]string, len(sel.Workers))
	for i, w := range sel.Workers {
		names[i] = w.Name()
	}
	c.logger.Log("request %s: %s", task.ID, sel.Reasoning)

	c.mu.Lock()
	task.Workers = names
	task.Topology = sel.Topology
	task.Status = models.CoordinatedInProgress
	task.UpdatedAt = time.Now()
	c.mu.Unlock()

	results := c.run(ctx, sel, request, reqCtx)
	duration := time.Since(start)

	if len(results) == 0 {
		c.mu.Lock()
		task.Status = models.CoordinatedFailed
		task.UpdatedAt = time.Now()
		c.mu.Unlock()
		c.recordPerf(request, reqCtx, names, sel.Topology, duration, false)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("coordinator: all %d selected workers failed", len(sel.Workers))
	}

	content := synthesize(sel, results)

	c.mu.Lock()
	task.Status = models.CoordinatedCompleted
	task.Results = results
	task.UpdatedAt = time.Now()
	c.mu.Unlock()
	c.recordPerf(request, reqCtx, names, sel.Topology, duration, true)

	return &Response{
		TaskID:        task.ID,
		Content:       content,
		WorkerResults: results,
		Coordination: CoordinationMeta{
			Topology:   sel.Topology,
			Workers:    names,
			Reasoning:  sel.Reasoning,
			Confidence: sel.Confidence,
			Fallback:   sel.Fallback,
		},
		Duration: duration,
	}, nil
}

// ActiveTasks returns a snapshot of requests currently in flight.
func (c *Coordinator) ActiveTasks() []models.CoordinatedTask {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.CoordinatedTask, 0, len(c.active))
	for _, task := range c.active {
		copied := *task
		copied.Workers = append([]string(nil), task.Workers...)
		out = append(out, copied)
	}
	return out
}

// PerformanceHistory returns a copy of recorded request outcomes, oldest
// first.
func (c *Coordinator) PerformanceHistory() []PerfEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PerfEntry, len(c.history))
	copy(out, c.history)
	return out
}

// WorkerStats exposes the registry's rolling stats for a worker.
func (c *Coordinator) WorkerStats(name string) (models.WorkerStats, bool) {
	return c.registry.Stats(name)
}

func (c *Coordinator) recordPerf(request string, reqCtx map[string]any, workers []string, topology models.Topology, duration time.Duration, success bool) {
	category := "general"
	if ks, ok := c.scorer.(*KeywordScorer); ok {
		category = ks.TopDomain(request, reqCtx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, PerfEntry{
		Category:    category,
		Workers:     workers,
		Topology:    topology,
		Duration:    duration,
		Success:     success,
		CompletedAt: time.Now(),
	})
	if len(c.history) > c.cfg.HistoryLimit {
		trimmed := c.history[len(c.history)-c.cfg.HistoryTrim:]
		c.history = append([]PerfEntry(nil), trimmed...)
	}
}
