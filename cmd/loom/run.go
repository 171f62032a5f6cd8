package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwhitfield/loom/internal/coordinator"
	"github.com/mwhitfield/loom/internal/scheduler"
	"github.com/mwhitfield/loom/pkg/models"
)

var (
	runPriority string
	runTimeout  time.Duration
	runDirect   bool
)

var runCmd = &cobra.Command{
	Use:   "run <request...>",
	Short: "Process one request and print the synthesized response",
	Long: `Submit a request through the scheduler and wait for the coordinated
response.

The request is scored against the worker roster, executed under the
chosen topology, and the synthesized answer is printed to stdout.

With --direct the scheduler is bypassed and the coordinator is invoked
inline, which skips queueing, priorities, and retries.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runPriority, "priority", "normal", "Job priority: low, normal, high, critical")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 2*time.Minute, "How long to wait for the response")
	runCmd.Flags().BoolVar(&runDirect, "direct", false, "Invoke the coordinator inline, bypassing the scheduler")
}

func parsePriority(s string) (models.JobPriority, error) {
	switch strings.ToLower(s) {
	case "low":
		return models.PriorityLow, nil
	case "normal", "":
		return models.PriorityNormal, nil
	case "high":
		return models.PriorityHigh, nil
	case "critical":
		return models.PriorityCritical, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	request := strings.Join(args, " ")

	priority, err := parsePriority(runPriority)
	if err != nil {
		return err
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := cmdContext(cmd, runTimeout)
	defer cancel()

	if runDirect {
		resp, err := a.coord.ProcessRequest(ctx, request, nil)
		if err != nil {
			return err
		}
		printResponse(resp)
		return nil
	}

	a.sched.Start()
	defer a.sched.Stop()

	notes := make(chan models.Notification, 16)
	unsubscribe := a.sched.Subscribe(func(note models.Notification) {
		select {
		case notes <- note:
		default:
		}
	})
	defer unsubscribe()

	id, err := a.sched.AddTask(coordinator.JobType, request,
		scheduler.WithPriority(priority),
		scheduler.WithDescription(request),
		scheduler.WithMetadata(map[string]any{"request": request}),
	)
	if err != nil {
		return fmt.Errorf("enqueue request: %w", err)
	}
	a.logger.Log("enqueued %s: %s", id, request)

	job, err := awaitTerminal(ctx, a.sched, id, notes, 250*time.Millisecond)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		a.sched.CancelTask(id)
		return fmt.Errorf("timed out after %s waiting for response", runTimeout)
	}
	if err != nil {
		return err
	}
	return printJobOutcome(job)
}

// jobGetter is the slice of the scheduler awaitTerminal needs.
type jobGetter interface {
	GetTask(id string) (*models.Job, bool)
}

// awaitTerminal blocks until the job reaches a terminal status. The notes
// channel is best-effort (the subscription must not block the scheduler), so
// it also polls the job in case a terminal notification was dropped.
func awaitTerminal(ctx context.Context, jobs jobGetter, id string, notes <-chan models.Notification, pollEvery time.Duration) (*models.Job, error) {
	poll := time.NewTicker(pollEvery)
	defer poll.Stop()

	for {
		select {
		case note := <-notes:
			if note.JobID != id {
				continue
			}
			switch note.Kind {
			case models.NotifyCompleted, models.NotifyFailed, models.NotifyCanceled:
				job, ok := jobs.GetTask(id)
				if !ok {
					return nil, fmt.Errorf("job %s disappeared", id)
				}
				return job, nil
			}
		case <-poll.C:
			if job, ok := jobs.GetTask(id); ok && job.Status.Terminal() {
				return job, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func printJobOutcome(job *models.Job) error {
	switch job.Status {
	case models.JobStatusCompleted:
		if data, ok := job.Result.Data.(map[string]any); ok {
			if content, ok := data["content"].(string); ok {
				fmt.Println(content)
				if topology, ok := data["topology"].(string); ok {
					fmt.Printf("\n[%s topology", topology)
					if confidence, ok := data["confidence"].(float64); ok {
						fmt.Printf(", confidence %.2f", confidence)
					}
					fmt.Println("]")
				}
				return nil
			}
		}
		fmt.Println("completed")
		return nil
	case models.JobStatusFailed:
		msg := "request failed"
		if job.Result != nil && job.Result.Error != "" {
			msg = job.Result.Error
		}
		return fmt.Errorf("%s", msg)
	case models.JobStatusCanceled:
		return fmt.Errorf("request was canceled")
	default:
		return fmt.Errorf("request ended in unexpected state %s", job.Status)
	}
}

func printResponse(resp *coordinator.Response) {
	fmt.Println(resp.Content)
	fmt.Printf("\n[%s topology, %d workers, confidence %.2f, %s]\n",
		resp.Coordination.Topology,
		len(resp.Coordination.Workers),
		resp.Coordination.Confidence,
		resp.Duration.Round(time.Millisecond))
}
