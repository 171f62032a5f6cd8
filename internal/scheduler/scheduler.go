// Package scheduler provides the priority-ordered background task scheduler.
// It dispatches queued jobs to registered per-type executors under a global
// concurrency cap, retries executor errors up to a bound, and checkpoints its
// state to a blob store so queued work survives restarts.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mwhitfield/loom/internal/logging"
	"github.com/mwhitfield/loom/internal/state"
	"github.com/mwhitfield/loom/pkg/models"
)

// Scheduler owns the live job collection and the dispatch loop. All mutable
// state is encapsulated here; construct with New and tear down with Destroy.
type Scheduler struct {
	cfg    Config
	logger *logging.DebugLogger
	store  state.Store

	// mu protects executors, jobs, running, history, and the lifecycle flags.
	mu        sync.Mutex
	executors map[string]Executor
	jobs      map[string]*models.Job
	running   map[string]context.CancelFunc
	history   []*models.Job
	started   bool
	destroyed bool

	notifier notifier

	// done belongs to the current dispatch loop; Start replaces it so the
	// scheduler can be stopped and started again.
	done   chan struct{}
	loopWG sync.WaitGroup
	wg     sync.WaitGroup
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithStore sets the snapshot store used when persistence is enabled.
func WithStore(store state.Store) Option {
	return func(s *Scheduler) { s.store = store }
}

// WithLogger sets the debug logger. Defaults to a no-op logger.
func WithLogger(logger *logging.DebugLogger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// New creates a Scheduler with the given configuration. If persistence is
// enabled and a store is provided, a prior snapshot is rehydrated: jobs that
// were running when the snapshot was taken re-enter the queue, since a prior
// run's in-flight progress is not trusted across restarts.
func New(cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:       cfg.normalize(),
		logger:    logging.Nop(),
		executors: make(map[string]Executor),
		jobs:      make(map[string]*models.Job),
		running:   make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cfg.EnablePersistence && s.store != nil {
		s.restore()
	}

	return s
}

// RegisterExecutor associates a job type with an executor. The last
// registration for a type wins.
func (s *Scheduler) RegisterExecutor(jobType string, exec Executor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executors[jobType] = exec
}

// TaskOption customizes a job at AddTask time.
type TaskOption func(*models.Job)

// WithPriority sets the job's dispatch priority. Defaults to normal.
func WithPriority(p models.JobPriority) TaskOption {
	return func(j *models.Job) { j.Priority = p }
}

// WithDescription sets the job's long description.
func WithDescription(desc string) TaskOption {
	return func(j *models.Job) { j.Description = desc }
}

// WithCancelable controls whether CancelTask may cancel the job.
// Jobs are cancelable by default.
func WithCancelable(cancelable bool) TaskOption {
	return func(j *models.Job) { j.Cancelable = cancelable }
}

// WithPausable marks the job as pausable while running.
func WithPausable(pausable bool) TaskOption {
	return func(j *models.Job) { j.Pausable = pausable }
}

// WithMetadata attaches opaque caller data that travels with the job.
func WithMetadata(meta map[string]any) TaskOption {
	return func(j *models.Job) { j.Metadata = meta }
}

// WithMaxRetries overrides the scheduler-wide retry bound for this job.
func WithMaxRetries(n int) TaskOption {
	return func(j *models.Job) { j.MaxRetries = n }
}

// AddTask enqueues a new job of the given type and returns its ID.
// Returns ErrQueueFull when the live collection is at MaxQueueSize; the
// failed call does not mutate state.
func (s *Scheduler) AddTask(jobType, name string, opts ...TaskOption) (string, error) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return "", ErrDestroyed
	}
	if len(s.jobs) >= s.cfg.MaxQueueSize {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %d live jobs", ErrQueueFull, s.cfg.MaxQueueSize)
	}

	job := &models.Job{
		ID:         uuid.New().String(),
		Type:       jobType,
		Name:       name,
		Priority:   models.PriorityNormal,
		Status:     models.JobStatusQueued,
		CreatedAt:  time.Now(),
		Cancelable: true,
		MaxRetries: s.cfg.MaxRetries,
	}
	for _, opt := range opts {
		opt(job)
	}

	s.jobs[job.ID] = job
	s.logger.Log("[scheduler] queued job %s (%s) type=%s priority=%s", job.ID, name, jobType, job.Priority)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snap)
	// ShowToast=false: the job is queued, not yet running.
	s.notifier.publish(models.Notification{
		JobID:     job.ID,
		JobName:   name,
		Kind:      models.NotifyStarted,
		Message:   fmt.Sprintf("Queued: %s", name),
		Timestamp: time.Now(),
	})

	return job.ID, nil
}

// CancelTask cancels a job. Returns (false, nil) for unknown or already
// terminal job IDs, and ErrNotCancelable when the job's cancelable flag is
// unset. Cancellation is cooperative: the executor's optional Cancel hook is
// invoked and the job's context is canceled, then the job is marked canceled
// regardless of whether the executor honored either signal.
func (s *Scheduler) CancelTask(id string) (bool, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		s.mu.Unlock()
		return false, nil
	}
	if !job.Cancelable {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrNotCancelable, id)
	}

	if cancelFn, isRunning := s.running[id]; isRunning {
		if c, ok := s.executors[job.Type].(Canceler); ok {
			c.Cancel(job)
		}
		cancelFn()
		delete(s.running, id)
	}

	now := time.Now()
	job.Status = models.JobStatusCanceled
	job.CompletedAt = &now
	s.archiveLocked(job)
	s.logger.Log("[scheduler] canceled job %s (%s)", job.ID, job.Name)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snap)
	s.notifier.publish(models.Notification{
		JobID:     job.ID,
		JobName:   job.Name,
		Kind:      models.NotifyCanceled,
		Message:   fmt.Sprintf("Canceled: %s", job.Name),
		Timestamp: now,
		ShowToast: true,
	})

	return true, nil
}

// PauseTask pauses a running, pausable job. The executor's optional Pause
// hook is invoked and the job's context is canceled; the job leaves the
// running set. Pausing is silent: no notification is emitted.
func (s *Scheduler) PauseTask(id string) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	if job.Status != models.JobStatusRunning {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRunning, id)
	}
	if !job.Pausable {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotPausable, id)
	}

	if p, ok := s.executors[job.Type].(Pauser); ok {
		p.Pause(job)
	}
	if cancelFn, isRunning := s.running[id]; isRunning {
		cancelFn()
		delete(s.running, id)
	}

	job.Status = models.JobStatusPaused
	s.logger.Log("[scheduler] paused job %s (%s)", job.ID, job.Name)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snap)
	return nil
}

// ResumeTask moves a paused job back into the queue. Execution restarts from
// the beginning unless the executor checkpoints its own progress.
func (s *Scheduler) ResumeTask(id string) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	if job.Status != models.JobStatusPaused {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotPaused, id)
	}

	job.Status = models.JobStatusQueued
	job.StartedAt = nil
	s.logger.Log("[scheduler] resumed job %s (%s), re-queued", job.ID, job.Name)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snap)
	return nil
}

// copyJob returns a snapshot safe to hand to callers: the metadata map and
// result are cloned so a caller mutating them cannot reach the live job.
func copyJob(job *models.Job) *models.Job {
	cp := *job
	if job.Metadata != nil {
		meta := make(map[string]any, len(job.Metadata))
		for k, v := range job.Metadata {
			meta[k] = v
		}
		cp.Metadata = meta
	}
	if job.Result != nil {
		res := *job.Result
		cp.Result = &res
	}
	return &cp
}

// GetTask returns a copy of the job with the given ID, checking the live
// collection first and then history.
func (s *Scheduler) GetTask(id string) (*models.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[id]; ok {
		return copyJob(job), true
	}
	for _, job := range s.history {
		if job.ID == id {
			return copyJob(job), true
		}
	}
	return nil, false
}

// TaskFilter narrows GetTasks results. Zero-valued fields match everything.
type TaskFilter struct {
	Status models.JobStatus
	Type   string
}

// GetTasks returns copies of live jobs matching the filter, ordered by
// creation time.
func (s *Scheduler) GetTasks(filter TaskFilter) []*models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Job
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.Type != "" && job.Type != filter.Type {
			continue
		}
		out = append(out, copyJob(job))
	}
	sortJobsByCreation(out)
	return out
}

// Stats summarizes the scheduler's current population.
type Stats struct {
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Paused    int `json:"paused"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Canceled  int `json:"canceled"`
	// Live is the size of the live collection (queued + running + paused).
	Live int `json:"live"`
	// HistorySize is the number of archived terminal jobs.
	HistorySize int `json:"history_size"`
}

// GetStats returns counts of jobs by state. Terminal counts come from the
// bounded history, so they understate totals once eviction kicks in.
func (s *Scheduler) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{Live: len(s.jobs), HistorySize: len(s.history)}
	for _, job := range s.jobs {
		switch job.Status {
		case models.JobStatusQueued:
			stats.Queued++
		case models.JobStatusRunning:
			stats.Running++
		case models.JobStatusPaused:
			stats.Paused++
		}
	}
	for _, job := range s.history {
		switch job.Status {
		case models.JobStatusCompleted:
			stats.Completed++
		case models.JobStatusFailed:
			stats.Failed++
		case models.JobStatusCanceled:
			stats.Canceled++
		}
	}
	return stats
}

// GetHistory returns copies of archived jobs, most recent first. A limit of
// zero or less returns the whole history.
func (s *Scheduler) GetHistory(limit int) []*models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*models.Job, 0, n)
	for _, job := range s.history[:n] {
		out = append(out, copyJob(job))
	}
	return out
}

// Subscribe registers a notification listener and returns its unsubscribe
// function. Delivery is synchronous and in subscription order.
func (s *Scheduler) Subscribe(fn Listener) func() {
	return s.notifier.subscribe(fn)
}

// ClearCompleted removes successfully completed jobs from the history.
func (s *Scheduler) ClearCompleted() {
	s.mu.Lock()
	kept := s.history[:0]
	for _, job := range s.history {
		if job.Status != models.JobStatusCompleted {
			kept = append(kept, job)
		}
	}
	s.history = kept
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snap)
}

// ClearAll removes all history and all live jobs that are not currently
// running. Running jobs are left to finish.
func (s *Scheduler) ClearAll() {
	s.mu.Lock()
	s.history = nil
	for id, job := range s.jobs {
		if job.Status != models.JobStatusRunning {
			delete(s.jobs, id)
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snap)
}

// Start launches the dispatch loop. Calling Start twice is a no-op, and a
// stopped scheduler can be started again.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started || s.destroyed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.loopWG.Add(1)
	go s.loop(done)
}

// Stop halts the dispatch loop and waits for it to exit. In-flight executors
// run to completion and their outcomes are still applied; queued jobs stay
// queued for a later Start or scheduler to rehydrate.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	done := s.done
	s.mu.Unlock()

	close(done)
	s.loopWG.Wait()
}

// Destroy stops the loop, cancels in-flight job contexts, drops all
// listeners, and clears all state. The scheduler is unusable afterwards.
func (s *Scheduler) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	wasStarted := s.started
	s.started = false
	for id, cancelFn := range s.running {
		cancelFn()
		delete(s.running, id)
	}
	s.jobs = make(map[string]*models.Job)
	s.history = nil
	s.executors = make(map[string]Executor)
	s.mu.Unlock()

	if wasStarted {
		close(s.done)
	}
	s.loopWG.Wait()
	s.wg.Wait()
	s.notifier.clear()
}

// loop runs the fixed-interval dispatch tick until its done channel closes.
func (s *Scheduler) loop(done chan struct{}) {
	defer s.loopWG.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.dispatchOnce()
		}
	}
}

// dispatchOnce advances job state by at most one dispatch per tick. This is
// the only place concurrency decisions are made.
func (s *Scheduler) dispatchOnce() {
	s.mu.Lock()
	if s.destroyed || len(s.running) >= s.cfg.MaxConcurrentTasks {
		s.mu.Unlock()
		return
	}

	job := s.nextQueuedLocked()
	if job == nil {
		s.mu.Unlock()
		return
	}

	exec, ok := s.executors[job.Type]
	if !ok {
		// Fatal condition: never retried.
		now := time.Now()
		job.Status = models.JobStatusFailed
		job.CompletedAt = &now
		job.Result = &models.JobResult{
			Success: false,
			Error:   fmt.Sprintf("no executor registered for job type %q", job.Type),
		}
		s.archiveLocked(job)
		s.logger.Log("[scheduler] job %s failed: no executor for type %q", job.ID, job.Type)
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.persist(snap)
		s.notifier.publish(models.Notification{
			JobID:     job.ID,
			JobName:   job.Name,
			Kind:      models.NotifyFailed,
			Message:   fmt.Sprintf("Failed: %s (no executor for type %q)", job.Name, job.Type),
			Timestamp: now,
			ShowToast: true,
		})
		return
	}

	now := time.Now()
	job.Status = models.JobStatusRunning
	job.StartedAt = &now
	ctx, cancelFn := context.WithCancel(context.Background())
	s.running[job.ID] = cancelFn
	s.logger.Log("[scheduler] dispatching job %s (%s), %d/%d slots in use",
		job.ID, job.Name, len(s.running), s.cfg.MaxConcurrentTasks)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snap)
	s.notifier.publish(models.Notification{
		JobID:     job.ID,
		JobName:   job.Name,
		Kind:      models.NotifyStarted,
		Message:   fmt.Sprintf("Started: %s", job.Name),
		Timestamp: now,
	})

	s.wg.Add(1)
	go s.execute(ctx, exec, job)
}

// nextQueuedLocked selects the highest-priority queued job, breaking ties by
// earliest creation time. Caller must hold s.mu.
func (s *Scheduler) nextQueuedLocked() *models.Job {
	var best *models.Job
	for _, job := range s.jobs {
		if job.Status != models.JobStatusQueued {
			continue
		}
		if best == nil || job.Priority > best.Priority ||
			(job.Priority == best.Priority && job.CreatedAt.Before(best.CreatedAt)) {
			best = job
		}
	}
	return best
}

// execute runs one job to completion in its own goroutine and applies the
// outcome.
func (s *Scheduler) execute(ctx context.Context, exec Executor, job *models.Job) {
	defer s.wg.Done()

	progress := func(current, total int, message string) {
		s.mu.Lock()
		if s.destroyed || job.Status != models.JobStatusRunning {
			s.mu.Unlock()
			return
		}
		pct := 0.0
		if total > 0 {
			pct = float64(current) / float64(total) * 100
		}
		job.Progress = models.JobProgress{Current: current, Total: total, Percentage: pct, Message: message}
		// Snapshot on progress so a restart can recover the last known
		// percentage, though not resume execution.
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.persist(snap)
		s.notifier.publish(models.Notification{
			JobID:     job.ID,
			JobName:   job.Name,
			Kind:      models.NotifyProgress,
			Message:   message,
			Timestamp: time.Now(),
		})
	}

	result, err := exec.Execute(ctx, job, progress)
	s.finish(job, result, err)
}

// finish applies an executor outcome. A returned error is the recoverable
// path (retried while budget remains); a structured failure result is
// terminal because the executor already decided the outcome.
func (s *Scheduler) finish(job *models.Job, result *models.JobResult, err error) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	if cancelFn, ok := s.running[job.ID]; ok {
		delete(s.running, job.ID)
		cancelFn()
	}
	if job.Status != models.JobStatusRunning {
		// Canceled or paused while in flight; the outcome was already decided.
		s.mu.Unlock()
		return
	}

	var note *models.Notification
	now := time.Now()

	switch {
	case err != nil && s.cfg.RetryFailedTasks && job.RetryCount < job.MaxRetries:
		// Silent retry: no toast, no notification.
		job.RetryCount++
		job.Status = models.JobStatusQueued
		job.StartedAt = nil
		job.CompletedAt = nil
		s.logger.Log("[scheduler] job %s errored (retry %d/%d), re-queued: %v",
			job.ID, job.RetryCount, job.MaxRetries, err)

	case err != nil:
		job.Status = models.JobStatusFailed
		job.CompletedAt = &now
		job.Result = &models.JobResult{Success: false, Error: err.Error()}
		s.archiveLocked(job)
		s.logger.Log("[scheduler] job %s failed after %d retries: %v", job.ID, job.RetryCount, err)
		note = &models.Notification{
			JobID:     job.ID,
			JobName:   job.Name,
			Kind:      models.NotifyFailed,
			Message:   fmt.Sprintf("Failed: %s (%v)", job.Name, err),
			Timestamp: now,
			ShowToast: true,
		}

	default:
		if result == nil {
			result = &models.JobResult{Success: true}
		}
		job.Result = result
		job.CompletedAt = &now
		if result.Success {
			job.Status = models.JobStatusCompleted
			note = &models.Notification{
				JobID:     job.ID,
				JobName:   job.Name,
				Kind:      models.NotifyCompleted,
				Message:   fmt.Sprintf("Completed: %s", job.Name),
				Timestamp: now,
				ShowToast: true,
			}
		} else {
			job.Status = models.JobStatusFailed
			note = &models.Notification{
				JobID:     job.ID,
				JobName:   job.Name,
				Kind:      models.NotifyFailed,
				Message:   fmt.Sprintf("Failed: %s (%s)", job.Name, result.Error),
				Timestamp: now,
				ShowToast: true,
			}
		}
		s.archiveLocked(job)
	}

	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snap)
	if note != nil {
		s.notifier.publish(*note)
	}
}

// archiveLocked moves a terminal job out of the live collection into the
// bounded most-recent-first history. Caller must hold s.mu.
func (s *Scheduler) archiveLocked(job *models.Job) {
	delete(s.jobs, job.ID)
	s.history = append([]*models.Job{job}, s.history...)
	if len(s.history) > s.cfg.HistoryLimit {
		s.history = s.history[:s.cfg.HistoryLimit]
	}
}

// sortJobsByCreation orders jobs oldest first, with ID as a stable tie-break.
func sortJobsByCreation(jobs []*models.Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
}
