package models

import "time"

// JobStatus represents the current state of a background job.
type JobStatus string

const (
	// JobStatusQueued indicates the job is waiting for a dispatch slot.
	JobStatusQueued JobStatus = "queued"
	// JobStatusRunning indicates the job is being executed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCanceled indicates the job was canceled before completion.
	JobStatusCanceled JobStatus = "canceled"
	// JobStatusPaused indicates the job is temporarily stopped.
	JobStatusPaused JobStatus = "paused"
)

// Valid returns true if the status is a known value.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusCompleted,
		JobStatusFailed, JobStatusCanceled, JobStatusPaused:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a final state. A terminal job is
// never re-queued by the scheduler and lives only in the history list.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCanceled:
		return true
	default:
		return false
	}
}

// JobPriority orders queued jobs for dispatch. Higher values win a free
// slot; jobs of equal priority dispatch in creation order.
type JobPriority int

const (
	// PriorityLow is for deferrable background work.
	PriorityLow JobPriority = iota
	// PriorityNormal is the default priority.
	PriorityNormal
	// PriorityHigh is for user-visible work that should jump the queue.
	PriorityHigh
	// PriorityCritical is for work that must run at the next free slot.
	PriorityCritical
)

// Valid returns true if the priority is a known value.
func (p JobPriority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

// String returns the human-readable name of the priority.
func (p JobPriority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// JobProgress tracks how far along a running job is.
type JobProgress struct {
	// Current is the number of completed units.
	Current int `json:"current"`
	// Total is the number of units overall.
	Total int `json:"total"`
	// Percentage is the completion percentage in [0,100].
	Percentage float64 `json:"percentage"`
	// Message describes the current phase of work.
	Message string `json:"message,omitempty"`
}

// JobResult is the outcome reported by an executor.
type JobResult struct {
	// Success indicates whether the executor considers the job done.
	// A false value here is a deliberate, terminal failure; it is not retried.
	Success bool `json:"success"`
	// Data is the executor's output payload, if any.
	Data any `json:"data,omitempty"`
	// Error contains the failure description when Success is false.
	Error string `json:"error,omitempty"`
	// Logs are optional log lines captured during execution.
	Logs []string `json:"logs,omitempty"`
}

// Job represents one unit of schedulable background work.
type Job struct {
	// ID is the unique identifier for this job.
	ID string `json:"id"`
	// Type maps the job to a registered executor.
	Type string `json:"type"`
	// Name is the short display name of the job.
	Name string `json:"name"`
	// Description provides detail about what the job does.
	Description string `json:"description,omitempty"`
	// Priority orders this job against other queued jobs.
	Priority JobPriority `json:"priority"`
	// Status is the current state of the job.
	Status JobStatus `json:"status"`
	// Progress is the last reported execution progress.
	Progress JobProgress `json:"progress"`
	// CreatedAt is when the job was enqueued.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when execution began, if it has.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the job reached a terminal state, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Cancelable indicates the job may be canceled.
	Cancelable bool `json:"cancelable"`
	// Pausable indicates the job may be paused while running.
	Pausable bool `json:"pausable"`
	// RetryCount is the number of times this job has been re-queued
	// after an executor error. Never exceeds MaxRetries.
	RetryCount int `json:"retry_count"`
	// MaxRetries bounds the retry policy for this job.
	MaxRetries int `json:"max_retries"`
	// Metadata carries opaque caller data through to the executor.
	Metadata map[string]any `json:"metadata,omitempty"`
	// Result is the executor's outcome, set on completion or failure.
	Result *JobResult `json:"result,omitempty"`
}

// NotificationKind is the kind of scheduler state transition an event records.
type NotificationKind string

const (
	// NotifyStarted covers enqueue and execution start.
	NotifyStarted NotificationKind = "started"
	// NotifyProgress covers progress updates from a running executor.
	NotifyProgress NotificationKind = "progress"
	// NotifyCompleted covers successful completion.
	NotifyCompleted NotificationKind = "completed"
	// NotifyFailed covers terminal failure.
	NotifyFailed NotificationKind = "failed"
	// NotifyCanceled covers explicit cancellation.
	NotifyCanceled NotificationKind = "canceled"
)

// Notification is an immutable record of one scheduler state transition.
// The scheduler produces one per transition; subscribers consume them.
type Notification struct {
	// JobID is the ID of the job the event concerns.
	JobID string `json:"job_id"`
	// JobName is the display name of the job.
	JobName string `json:"job_name"`
	// Kind is the transition this event records.
	Kind NotificationKind `json:"kind"`
	// Message is the human-readable description of the transition.
	Message string `json:"message"`
	// Timestamp is when the transition occurred.
	Timestamp time.Time `json:"timestamp"`
	// ShowToast hints that a UI should surface this event to the user.
	// Retries and pauses are silent; terminal transitions are not.
	ShowToast bool `json:"show_toast"`
}
