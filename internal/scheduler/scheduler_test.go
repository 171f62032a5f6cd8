package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mwhitfield/loom/internal/state"
	"github.com/mwhitfield/loom/pkg/models"
)

// testConfig returns a config with persistence off and a fast poll interval.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.EnablePersistence = false
	cfg.PollInterval = 5 * time.Millisecond
	return cfg
}

// succeedExecutor completes immediately.
func succeedExecutor() Executor {
	return ExecutorFunc(func(ctx context.Context, job *models.Job, progress ProgressFunc) (*models.JobResult, error) {
		return &models.JobResult{Success: true}, nil
	})
}

// blockingExecutor runs until its release channel is closed.
func blockingExecutor(release <-chan struct{}) Executor {
	return ExecutorFunc(func(ctx context.Context, job *models.Job, progress ProgressFunc) (*models.JobResult, error) {
		select {
		case <-release:
			return &models.JobResult{Success: true}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for: %s", msg)
}

func TestAddTask_Defaults(t *testing.T) {
	s := New(testConfig())
	defer s.Destroy()

	id, err := s.AddTask("index", "Index workspace")
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	job, ok := s.GetTask(id)
	if !ok {
		t.Fatal("expected job to exist")
	}
	if job.Status != models.JobStatusQueued {
		t.Errorf("Status = %q, want queued", job.Status)
	}
	if job.Priority != models.PriorityNormal {
		t.Errorf("Priority = %v, want normal", job.Priority)
	}
	if job.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", job.RetryCount)
	}
	if !job.Cancelable {
		t.Error("jobs should be cancelable by default")
	}
	if job.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", job.MaxRetries)
	}
}

func TestAddTask_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 1
	s := New(cfg)
	defer s.Destroy()

	if _, err := s.AddTask("t", "first"); err != nil {
		t.Fatalf("first AddTask: %v", err)
	}

	_, err := s.AddTask("t", "second")
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}

	// The rejected call must not mutate state.
	if got := len(s.GetTasks(TaskFilter{})); got != 1 {
		t.Errorf("live jobs = %d, want 1", got)
	}
}

func TestDispatch_PriorityBeatsCreationOrder(t *testing.T) {
	s := New(testConfig())
	defer s.Destroy()
	s.RegisterExecutor("t", succeedExecutor())

	normalID, _ := s.AddTask("t", "normal job")
	highID, _ := s.AddTask("t", "high job", WithPriority(models.PriorityHigh))

	// The high-priority job was created later but must win the first slot.
	s.dispatchOnce()
	waitFor(t, func() bool {
		job, _ := s.GetTask(highID)
		return job != nil && job.Status.Terminal()
	}, "high-priority job to finish")

	job, _ := s.GetTask(normalID)
	if job.Status != models.JobStatusQueued {
		t.Errorf("normal job status = %q, want queued after first dispatch", job.Status)
	}
}

func TestDispatch_FIFOWithinPriorityBand(t *testing.T) {
	s := New(testConfig())
	defer s.Destroy()
	s.RegisterExecutor("t", succeedExecutor())

	firstID, _ := s.AddTask("t", "first")
	secondID, _ := s.AddTask("t", "second")

	s.dispatchOnce()
	waitFor(t, func() bool {
		job, _ := s.GetTask(firstID)
		return job != nil && job.Status == models.JobStatusCompleted
	}, "first job to complete")

	job, _ := s.GetTask(secondID)
	if job.Status != models.JobStatusQueued {
		t.Errorf("second job status = %q, want queued", job.Status)
	}
}

func TestDispatch_ConcurrencyCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentTasks = 1
	s := New(cfg)
	defer s.Destroy()

	release := make(chan struct{})
	s.RegisterExecutor("slow", blockingExecutor(release))

	firstID, _ := s.AddTask("slow", "first")
	secondID, _ := s.AddTask("slow", "second")

	s.dispatchOnce()
	waitFor(t, func() bool {
		job, _ := s.GetTask(firstID)
		return job != nil && job.Status == models.JobStatusRunning
	}, "first job to start")

	// The cap is reached; further ticks must not dispatch the second job.
	s.dispatchOnce()
	s.dispatchOnce()
	job, _ := s.GetTask(secondID)
	if job.Status != models.JobStatusQueued {
		t.Errorf("second job status = %q, want queued while first is running", job.Status)
	}

	close(release)
	waitFor(t, func() bool {
		job, _ := s.GetTask(firstID)
		return job != nil && job.Status == models.JobStatusCompleted
	}, "first job to complete")

	s.dispatchOnce()
	waitFor(t, func() bool {
		job, _ := s.GetTask(secondID)
		return job != nil && job.Status == models.JobStatusCompleted
	}, "second job to complete")
}

func TestDispatch_MissingExecutorIsFatal(t *testing.T) {
	s := New(testConfig())
	defer s.Destroy()

	id, _ := s.AddTask("unregistered", "orphan")
	s.dispatchOnce()

	job, ok := s.GetTask(id)
	if !ok {
		t.Fatal("expected job in history")
	}
	if job.Status != models.JobStatusFailed {
		t.Errorf("Status = %q, want failed", job.Status)
	}
	if job.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0 (missing executor is never retried)", job.RetryCount)
	}
	if job.Result == nil || job.Result.Error == "" {
		t.Error("expected a descriptive error in the result")
	}
	if len(s.GetHistory(0)) != 1 {
		t.Error("expected job to be archived")
	}
}

func TestExecutorError_RetriedThenSucceeds(t *testing.T) {
	s := New(testConfig())
	defer s.Destroy()

	var mu sync.Mutex
	attempts := 0
	s.RegisterExecutor("flaky", ExecutorFunc(func(ctx context.Context, job *models.Job, progress ProgressFunc) (*models.JobResult, error) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n <= 2 {
			return nil, fmt.Errorf("transient failure %d", n)
		}
		return &models.JobResult{Success: true}, nil
	}))

	id, _ := s.AddTask("flaky", "flaky job")

	for i := 0; i < 3; i++ {
		s.dispatchOnce()
		waitFor(t, func() bool {
			job, _ := s.GetTask(id)
			return job != nil && job.Status != models.JobStatusRunning
		}, "attempt to settle")
	}

	job, _ := s.GetTask(id)
	if job.Status != models.JobStatusCompleted {
		t.Errorf("Status = %q, want completed", job.Status)
	}
	if job.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", job.RetryCount)
	}
}

func TestExecutorError_RetryBudgetExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 1
	s := New(cfg)
	defer s.Destroy()

	s.RegisterExecutor("bad", ExecutorFunc(func(ctx context.Context, job *models.Job, progress ProgressFunc) (*models.JobResult, error) {
		return nil, errors.New("always fails")
	}))

	id, _ := s.AddTask("bad", "doomed")

	for i := 0; i < 2; i++ {
		s.dispatchOnce()
		waitFor(t, func() bool {
			job, _ := s.GetTask(id)
			return job != nil && job.Status != models.JobStatusRunning
		}, "attempt to settle")
	}

	job, _ := s.GetTask(id)
	if job.Status != models.JobStatusFailed {
		t.Errorf("Status = %q, want failed", job.Status)
	}
	if job.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", job.RetryCount)
	}
	if job.RetryCount > job.MaxRetries {
		t.Error("retry count must never exceed max retries")
	}
}

func TestStructuredFailure_NotRetried(t *testing.T) {
	s := New(testConfig())
	defer s.Destroy()

	s.RegisterExecutor("deliberate", ExecutorFunc(func(ctx context.Context, job *models.Job, progress ProgressFunc) (*models.JobResult, error) {
		return &models.JobResult{Success: false, Error: "validation failed"}, nil
	}))

	id, _ := s.AddTask("deliberate", "checked job")
	s.dispatchOnce()

	waitFor(t, func() bool {
		job, _ := s.GetTask(id)
		return job != nil && job.Status.Terminal()
	}, "job to terminalize")

	job, _ := s.GetTask(id)
	if job.Status != models.JobStatusFailed {
		t.Errorf("Status = %q, want failed", job.Status)
	}
	if job.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0 (structured failure is terminal)", job.RetryCount)
	}
	if job.Result.Error != "validation failed" {
		t.Errorf("Result.Error = %q", job.Result.Error)
	}
}

func TestCancelTask_Idempotent(t *testing.T) {
	s := New(testConfig())
	defer s.Destroy()

	if ok, err := s.CancelTask("no-such-job"); ok || err != nil {
		t.Errorf("cancel absent = (%v, %v), want (false, nil)", ok, err)
	}

	id, _ := s.AddTask("t", "to cancel")
	if ok, err := s.CancelTask(id); !ok || err != nil {
		t.Fatalf("cancel = (%v, %v), want (true, nil)", ok, err)
	}

	// Canceling again is a no-op, not an error.
	if ok, err := s.CancelTask(id); ok || err != nil {
		t.Errorf("second cancel = (%v, %v), want (false, nil)", ok, err)
	}

	job, _ := s.GetTask(id)
	if job.Status != models.JobStatusCanceled {
		t.Errorf("Status = %q, want canceled", job.Status)
	}
	if job.CompletedAt == nil {
		t.Error("expected completion time to be stamped")
	}
}

func TestCancelTask_NonCancelable(t *testing.T) {
	s := New(testConfig())
	defer s.Destroy()

	id, _ := s.AddTask("t", "pinned", WithCancelable(false))
	if _, err := s.CancelTask(id); !errors.Is(err, ErrNotCancelable) {
		t.Errorf("err = %v, want ErrNotCancelable", err)
	}
}

// hookExecutor records cancel/pause hook invocations.
type hookExecutor struct {
	release  chan struct{}
	mu       sync.Mutex
	canceled []string
	paused   []string
}

func (h *hookExecutor) Execute(ctx context.Context, job *models.Job, progress ProgressFunc) (*models.JobResult, error) {
	select {
	case <-h.release:
		return &models.JobResult{Success: true}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *hookExecutor) Cancel(job *models.Job) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.canceled = append(h.canceled, job.ID)
}

func (h *hookExecutor) Pause(job *models.Job) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = append(h.paused, job.ID)
}

func TestCancelTask_RunningInvokesHook(t *testing.T) {
	s := New(testConfig())
	defer s.Destroy()

	exec := &hookExecutor{release: make(chan struct{})}
	s.RegisterExecutor("hooked", exec)

	id, _ := s.AddTask("hooked", "long runner")
	s.dispatchOnce()
	waitFor(t, func() bool {
		job, _ := s.GetTask(id)
		return job != nil && job.Status == models.JobStatusRunning
	}, "job to start")

	if ok, err := s.CancelTask(id); !ok || err != nil {
		t.Fatalf("cancel = (%v, %v)", ok, err)
	}

	exec.mu.Lock()
	hookCalls := len(exec.canceled)
	exec.mu.Unlock()
	if hookCalls != 1 {
		t.Errorf("cancel hook calls = %d, want 1", hookCalls)
	}

	job, _ := s.GetTask(id)
	if job.Status != models.JobStatusCanceled {
		t.Errorf("Status = %q, want canceled", job.Status)
	}
}

func TestPauseResume(t *testing.T) {
	s := New(testConfig())
	defer s.Destroy()

	exec := &hookExecutor{release: make(chan struct{})}
	s.RegisterExecutor("hooked", exec)

	id, _ := s.AddTask("hooked", "pausable job", WithPausable(true))

	// Pause requires the job to be running.
	if err := s.PauseTask(id); !errors.Is(err, ErrNotRunning) {
		t.Errorf("pause queued job: err = %v, want ErrNotRunning", err)
	}

	s.dispatchOnce()
	waitFor(t, func() bool {
		job, _ := s.GetTask(id)
		return job != nil && job.Status == models.JobStatusRunning
	}, "job to start")

	if err := s.PauseTask(id); err != nil {
		t.Fatalf("pause: %v", err)
	}
	job, _ := s.GetTask(id)
	if job.Status != models.JobStatusPaused {
		t.Errorf("Status = %q, want paused", job.Status)
	}

	exec.mu.Lock()
	pausedCalls := len(exec.paused)
	exec.mu.Unlock()
	if pausedCalls != 1 {
		t.Errorf("pause hook calls = %d, want 1", pausedCalls)
	}

	if err := s.ResumeTask(id); err != nil {
		t.Fatalf("resume: %v", err)
	}
	job, _ = s.GetTask(id)
	if job.Status != models.JobStatusQueued {
		t.Errorf("Status = %q, want queued after resume", job.Status)
	}

	// Resume on a non-paused job is a precondition error.
	if err := s.ResumeTask(id); !errors.Is(err, ErrNotPaused) {
		t.Errorf("second resume: err = %v, want ErrNotPaused", err)
	}
}

func TestPauseTask_NotPausable(t *testing.T) {
	s := New(testConfig())
	defer s.Destroy()

	release := make(chan struct{})
	defer close(release)
	s.RegisterExecutor("slow", blockingExecutor(release))

	id, _ := s.AddTask("slow", "rigid job")
	s.dispatchOnce()
	waitFor(t, func() bool {
		job, _ := s.GetTask(id)
		return job != nil && job.Status == models.JobStatusRunning
	}, "job to start")

	if err := s.PauseTask(id); !errors.Is(err, ErrNotPausable) {
		t.Errorf("err = %v, want ErrNotPausable", err)
	}
}

func TestHistory_BoundedEviction(t *testing.T) {
	cfg := testConfig()
	cfg.HistoryLimit = 2
	s := New(cfg)
	defer s.Destroy()
	s.RegisterExecutor("t", succeedExecutor())

	var ids []string
	for i := 0; i < 3; i++ {
		id, _ := s.AddTask("t", fmt.Sprintf("job %d", i))
		ids = append(ids, id)
		s.dispatchOnce()
		waitFor(t, func() bool {
			job, _ := s.GetTask(id)
			return job != nil && job.Status.Terminal()
		}, "job to finish")
	}

	history := s.GetHistory(0)
	if len(history) != 2 {
		t.Fatalf("history size = %d, want 2", len(history))
	}
	// Most recent first; the oldest entry was evicted.
	if history[0].ID != ids[2] || history[1].ID != ids[1] {
		t.Error("history should be most-recent-first with the oldest evicted")
	}
	if _, ok := s.GetTask(ids[0]); ok {
		t.Error("evicted job should no longer be retrievable")
	}
}

func TestSubscribe_DeliveryOrderAndUnsubscribe(t *testing.T) {
	s := New(testConfig())
	defer s.Destroy()

	var mu sync.Mutex
	var order []string
	unsubA := s.Subscribe(func(n models.Notification) {
		mu.Lock()
		order = append(order, "a:"+string(n.Kind))
		mu.Unlock()
	})
	s.Subscribe(func(n models.Notification) {
		mu.Lock()
		order = append(order, "b:"+string(n.Kind))
		mu.Unlock()
	})

	s.AddTask("t", "observed")

	mu.Lock()
	if len(order) != 2 || order[0] != "a:started" || order[1] != "b:started" {
		t.Errorf("delivery order = %v", order)
	}
	order = nil
	mu.Unlock()

	unsubA()
	unsubA() // double unsubscribe is a no-op

	s.AddTask("t", "observed again")
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 1 || order[0] != "b:started" {
		t.Errorf("after unsubscribe, delivery = %v", order)
	}
}

func TestNotifications_ToastPolicy(t *testing.T) {
	s := New(testConfig())
	defer s.Destroy()
	s.RegisterExecutor("t", succeedExecutor())

	var mu sync.Mutex
	var notes []models.Notification
	s.Subscribe(func(n models.Notification) {
		mu.Lock()
		notes = append(notes, n)
		mu.Unlock()
	})

	id, _ := s.AddTask("t", "job")
	s.dispatchOnce()
	waitFor(t, func() bool {
		job, _ := s.GetTask(id)
		return job != nil && job.Status.Terminal()
	}, "job to finish")

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(notes) >= 3
	}, "notifications to arrive")

	mu.Lock()
	defer mu.Unlock()
	// Queued and started are silent; completion is toast-worthy.
	if notes[0].Kind != models.NotifyStarted || notes[0].ShowToast {
		t.Errorf("queued note = %+v, want silent started", notes[0])
	}
	last := notes[len(notes)-1]
	if last.Kind != models.NotifyCompleted || !last.ShowToast {
		t.Errorf("final note = %+v, want toast-worthy completed", last)
	}
}

func TestProgress_UpdatesAndNotifies(t *testing.T) {
	s := New(testConfig())
	defer s.Destroy()

	s.RegisterExecutor("steps", ExecutorFunc(func(ctx context.Context, job *models.Job, progress ProgressFunc) (*models.JobResult, error) {
		progress(1, 4, "quarter")
		progress(2, 4, "half")
		return &models.JobResult{Success: true}, nil
	}))

	var mu sync.Mutex
	var progressNotes int
	s.Subscribe(func(n models.Notification) {
		if n.Kind == models.NotifyProgress {
			mu.Lock()
			progressNotes++
			mu.Unlock()
		}
	})

	id, _ := s.AddTask("steps", "stepped job")
	s.dispatchOnce()
	waitFor(t, func() bool {
		job, _ := s.GetTask(id)
		return job != nil && job.Status.Terminal()
	}, "job to finish")

	mu.Lock()
	defer mu.Unlock()
	if progressNotes != 2 {
		t.Errorf("progress notifications = %d, want 2", progressNotes)
	}

	job, _ := s.GetTask(id)
	if job.Progress.Percentage != 50 {
		t.Errorf("final recorded percentage = %v, want 50", job.Progress.Percentage)
	}
}

func TestEndToEnd_PollingLoop(t *testing.T) {
	s := New(testConfig())
	s.RegisterExecutor("t", succeedExecutor())
	s.Start()
	defer s.Destroy()

	id, err := s.AddTask("t", "job1")
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	waitFor(t, func() bool {
		job, _ := s.GetTask(id)
		return job != nil && job.Status == models.JobStatusCompleted
	}, "job to complete via dispatch ticks")

	history := s.GetHistory(0)
	if len(history) != 1 || history[0].ID != id {
		t.Errorf("expected completed job in history, got %d entries", len(history))
	}
}

func TestPersistence_RunningRehydratesAsQueued(t *testing.T) {
	store := state.NewMemory()

	cfg := testConfig()
	cfg.EnablePersistence = true
	s := New(cfg, WithStore(store))

	release := make(chan struct{})
	s.RegisterExecutor("slow", blockingExecutor(release))

	id, _ := s.AddTask("slow", "interrupted job")
	s.dispatchOnce()
	waitFor(t, func() bool {
		job, _ := s.GetTask(id)
		return job != nil && job.Status == models.JobStatusRunning
	}, "job to start")

	// Simulate a process restart: a fresh scheduler over the same store.
	s2 := New(cfg, WithStore(store))
	defer s2.Destroy()

	job, ok := s2.GetTask(id)
	if !ok {
		t.Fatal("expected job to be rehydrated")
	}
	if job.Status != models.JobStatusQueued {
		t.Errorf("rehydrated status = %q, want queued (running is not trusted across restarts)", job.Status)
	}

	close(release)
	s.Destroy()
}

func TestClearCompletedAndClearAll(t *testing.T) {
	s := New(testConfig())
	defer s.Destroy()
	s.RegisterExecutor("t", succeedExecutor())

	doneID, _ := s.AddTask("t", "done job")
	s.dispatchOnce()
	waitFor(t, func() bool {
		job, _ := s.GetTask(doneID)
		return job != nil && job.Status.Terminal()
	}, "job to finish")

	canceledID, _ := s.AddTask("t", "canceled job")
	s.CancelTask(canceledID)

	s.ClearCompleted()
	history := s.GetHistory(0)
	if len(history) != 1 || history[0].ID != canceledID {
		t.Errorf("after ClearCompleted, history = %d entries", len(history))
	}

	s.AddTask("t", "still queued")
	s.ClearAll()
	if len(s.GetHistory(0)) != 0 {
		t.Error("ClearAll should empty history")
	}
	if len(s.GetTasks(TaskFilter{})) != 0 {
		t.Error("ClearAll should drop queued jobs")
	}
}

func TestGetStats(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentTasks = 1
	s := New(cfg)
	defer s.Destroy()

	release := make(chan struct{})
	defer close(release)
	s.RegisterExecutor("slow", blockingExecutor(release))

	runningID, _ := s.AddTask("slow", "running")
	s.AddTask("slow", "waiting")
	s.dispatchOnce()
	waitFor(t, func() bool {
		job, _ := s.GetTask(runningID)
		return job != nil && job.Status == models.JobStatusRunning
	}, "first job to start")

	stats := s.GetStats()
	if stats.Running != 1 || stats.Queued != 1 || stats.Live != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestDestroy_RejectsFurtherWork(t *testing.T) {
	s := New(testConfig())
	s.Destroy()

	if _, err := s.AddTask("t", "late"); !errors.Is(err, ErrDestroyed) {
		t.Errorf("err = %v, want ErrDestroyed", err)
	}
}

func TestStartStopStartAgain(t *testing.T) {
	s := New(testConfig())
	defer s.Destroy()
	s.RegisterExecutor("t", succeedExecutor())

	s.Start()
	s.Stop()

	// A stopped scheduler must come back up and dispatch again.
	s.Start()
	id, _ := s.AddTask("t", "after restart")
	waitFor(t, func() bool {
		job, _ := s.GetTask(id)
		return job != nil && job.Status == models.JobStatusCompleted
	}, "job to complete after restart")

	s.Stop()
	s.Stop() // repeat stops stay no-ops
}

func TestStopThenDestroy(t *testing.T) {
	s := New(testConfig())
	s.Start()
	s.Stop()
	s.Destroy()
}

func TestRestore_RecapsHistory(t *testing.T) {
	store := state.NewMemory()

	cfg := testConfig()
	cfg.EnablePersistence = true
	s := New(cfg, WithStore(store))
	defer s.Destroy()
	s.RegisterExecutor("t", succeedExecutor())

	var lastID string
	for i := 0; i < 5; i++ {
		id, _ := s.AddTask("t", fmt.Sprintf("job %d", i))
		s.dispatchOnce()
		waitFor(t, func() bool {
			job, _ := s.GetTask(id)
			return job != nil && job.Status.Terminal()
		}, "job to finish")
		lastID = id
	}

	// A fresh scheduler with a tighter bound must not start over it.
	cfg2 := cfg
	cfg2.HistoryLimit = 2
	s2 := New(cfg2, WithStore(store))
	defer s2.Destroy()

	history := s2.GetHistory(0)
	if len(history) != 2 {
		t.Fatalf("restored history length = %d, want 2", len(history))
	}
	if history[0].ID != lastID {
		t.Errorf("restored history should keep the most recent entries first")
	}
}

func TestGetTaskCopiesAreIsolated(t *testing.T) {
	s := New(testConfig())
	defer s.Destroy()

	id, _ := s.AddTask("t", "meta job", WithMetadata(map[string]any{"request": "original"}))

	job, _ := s.GetTask(id)
	job.Metadata["request"] = "tampered"

	again, _ := s.GetTask(id)
	if again.Metadata["request"] != "original" {
		t.Errorf("metadata = %v, caller mutation reached the live job", again.Metadata)
	}

	tasks := s.GetTasks(TaskFilter{})
	tasks[0].Metadata["extra"] = true
	again, _ = s.GetTask(id)
	if _, ok := again.Metadata["extra"]; ok {
		t.Error("GetTasks copy shares its metadata map with the live job")
	}
}
