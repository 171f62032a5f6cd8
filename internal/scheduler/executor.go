package scheduler

import (
	"context"

	"github.com/mwhitfield/loom/pkg/models"
)

// ProgressFunc reports execution progress back to the scheduler. current and
// total are work units; message describes the current phase.
type ProgressFunc func(current, total int, message string)

// Executor runs jobs of one registered type. The scheduler passes a context
// that is canceled when the job is canceled or paused; a well-behaved
// executor observes it and exits early.
//
// A returned *JobResult with Success=false is a deliberate, terminal failure
// and is not retried. A returned error is treated as an execution fault and
// is retried up to the job's MaxRetries.
type Executor interface {
	Execute(ctx context.Context, job *models.Job, progress ProgressFunc) (*models.JobResult, error)
}

// Canceler is optionally implemented by executors that want a direct signal
// when one of their jobs is canceled, in addition to context cancellation.
type Canceler interface {
	Cancel(job *models.Job)
}

// Pauser is optionally implemented by executors that can checkpoint work
// when one of their jobs is paused.
type Pauser interface {
	Pause(job *models.Job)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, job *models.Job, progress ProgressFunc) (*models.JobResult, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, job *models.Job, progress ProgressFunc) (*models.JobResult, error) {
	return f(ctx, job, progress)
}
