package coordinator

import (
	"context"

	"github.com/mwhitfield/loom/internal/scheduler"
	"github.com/mwhitfield/loom/pkg/models"
)

// JobType is the scheduler job type handled by Executor.
const JobType = "coordinate"

// Executor adapts a Coordinator to the scheduler's executor contract so
// coordinated requests can be queued, prioritized, and retried like any
// other job. The request text rides in job metadata under "request", and
// optional ambient context under "context".
type Executor struct {
	coord *Coordinator
}

// NewExecutor wraps a Coordinator for scheduler registration.
func NewExecutor(c *Coordinator) *Executor {
	return &Executor{coord: c}
}

// Execute implements scheduler.Executor.
func (e *Executor) Execute(ctx context.Context, job *models.Job, progress scheduler.ProgressFunc) (*models.JobResult, error) {
	request, _ := job.Metadata["request"].(string)
	if request == "" {
		// A malformed job will not get better on retry.
		return &models.JobResult{
			Success: false,
			Error:   "job metadata has no request text",
		}, nil
	}
	reqCtx, _ := job.Metadata["context"].(map[string]any)

	progress(1, 2, "coordinating workers")
	resp, err := e.coord.ProcessRequest(ctx, request, reqCtx)
	if err != nil {
		return nil, err
	}
	progress(2, 2, "response synthesized")

	return &models.JobResult{
		Success: true,
		Data: map[string]any{
			"task_id":    resp.TaskID,
			"content":    resp.Content,
			"topology":   string(resp.Coordination.Topology),
			"workers":    resp.Coordination.Workers,
			"confidence": resp.Coordination.Confidence,
		},
	}, nil
}
