// Package registry declares the set of specialized workers available to the
// coordinator. Workers register once at startup; afterwards the registry is
// read-mostly, with per-worker stats folded in after each invocation.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mwhitfield/loom/pkg/models"
)

// Worker is a specialized capability provider consulted by the coordinator.
// Implementations are opaque to this core; Process typically wraps a call to
// a language-model provider, but nothing here depends on that.
type Worker interface {
	// Process answers the request, reading ambient signal from ctx's
	// request context map.
	Process(ctx context.Context, request string, reqCtx map[string]any) (*models.WorkerResult, error)
	// Name is the worker's unique identity.
	Name() string
	// Role is a short human-readable role description.
	Role() string
	// Capabilities are the domains the worker advertises competence in.
	Capabilities() []string
}

// Specializer is optionally implemented by workers with a longer
// specialization description for synthesis headers.
type Specializer interface {
	Specialization() string
}

// Registry is the thread-safe worker lookup table.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]Worker
	order   []string
	stats   map[string]*models.WorkerStats
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		workers: make(map[string]Worker),
		stats:   make(map[string]*models.WorkerStats),
	}
}

// Register adds a worker. Registering a name twice is an error; workers are
// identities, not routes.
func (r *Registry) Register(w Worker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := w.Name()
	if name == "" {
		return fmt.Errorf("registry: worker has empty name")
	}
	if _, exists := r.workers[name]; exists {
		return fmt.Errorf("registry: worker %q already registered", name)
	}
	r.workers[name] = w
	r.order = append(r.order, name)
	r.stats[name] = &models.WorkerStats{}
	return nil
}

// Get returns the worker with the given name.
func (r *Registry) Get(name string) (Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[name]
	return w, ok
}

// All returns workers in registration order. Selection scoring iterates this
// so ties resolve deterministically.
func (r *Registry) All() []Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Worker, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.workers[name])
	}
	return out
}

// Count returns the number of registered workers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}

// RecordResult folds one invocation outcome into the worker's rolling stats.
func (r *Registry) RecordResult(name string, latency time.Duration, confidence float64, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stats[name]; ok {
		s.Record(latency, confidence, failed)
	}
}

// Stats returns a copy of the worker's accumulated stats.
func (r *Registry) Stats(name string) (models.WorkerStats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stats[name]
	if !ok {
		return models.WorkerStats{}, false
	}
	return *s, true
}
