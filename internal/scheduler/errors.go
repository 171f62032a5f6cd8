package scheduler

import "errors"

// Sentinel errors returned synchronously by mutating scheduler methods.
// Asynchronous execution failures are never raised to callers; they surface
// through the job's result and through notifications.
var (
	// ErrQueueFull is returned by AddTask when the live job collection is
	// already at the configured maximum.
	ErrQueueFull = errors.New("scheduler: queue is full")
	// ErrNotCancelable is returned by CancelTask for a job whose
	// cancelable flag is unset.
	ErrNotCancelable = errors.New("scheduler: job is not cancelable")
	// ErrNotPausable is returned by PauseTask for a job whose pausable
	// flag is unset.
	ErrNotPausable = errors.New("scheduler: job is not pausable")
	// ErrUnknownJob is returned by PauseTask and ResumeTask for job IDs
	// the scheduler has no live record of.
	ErrUnknownJob = errors.New("scheduler: unknown job")
	// ErrNotRunning is returned by PauseTask when the job is not running.
	ErrNotRunning = errors.New("scheduler: job is not running")
	// ErrNotPaused is returned by ResumeTask when the job is not paused.
	ErrNotPaused = errors.New("scheduler: job is not paused")
	// ErrDestroyed is returned by mutating methods after Destroy.
	ErrDestroyed = errors.New("scheduler: scheduler has been destroyed")
)
