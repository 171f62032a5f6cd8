package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mwhitfield/loom/internal/scheduler"
	"github.com/mwhitfield/loom/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queued, running, and recently finished jobs",
	Long: `Display the current scheduler state.

Shows:
  - Live jobs (queued, running, paused) with priority and progress
  - Recently finished jobs from the history
  - Aggregate counts by status

State comes from the persisted snapshot, so jobs that were running when
the last process exited show up as queued.`,
	RunE: runStatus,
}

var statusColors = map[models.JobStatus]*color.Color{
	models.JobStatusQueued:    color.New(color.FgWhite),
	models.JobStatusRunning:   color.New(color.FgCyan),
	models.JobStatusPaused:    color.New(color.FgYellow),
	models.JobStatusCompleted: color.New(color.FgGreen),
	models.JobStatusFailed:    color.New(color.FgRed),
	models.JobStatusCanceled:  color.New(color.Faint),
}

func colorStatus(status models.JobStatus) string {
	if c, ok := statusColors[status]; ok {
		return c.Sprint(string(status))
	}
	return string(status)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	stats := a.sched.GetStats()
	live := a.sched.GetTasks(scheduler.TaskFilter{})
	history := a.sched.GetHistory(5)

	fmt.Printf("Jobs: %d queued, %d running, %d paused (%d archived)\n",
		stats.Queued, stats.Running, stats.Paused, stats.HistorySize)

	if len(live) == 0 && len(history) == 0 {
		fmt.Println("\nNothing in flight. Run 'loom run <request>' to submit work.")
		return nil
	}

	if len(live) > 0 {
		fmt.Println("\nLive:")
		for _, job := range live {
			line := fmt.Sprintf("  %s  %-9s %-8s %s", shortID(job.ID), colorStatus(job.Status), job.Priority, job.Name)
			if job.Status == models.JobStatusRunning {
				if job.StartedAt != nil {
					line += fmt.Sprintf(" (%s)", formatDuration(time.Since(*job.StartedAt)))
				}
				if job.Progress.Total > 0 {
					line += fmt.Sprintf(" [%d/%d]", job.Progress.Current, job.Progress.Total)
				}
			}
			if job.RetryCount > 0 {
				line += fmt.Sprintf(" retry %d/%d", job.RetryCount, job.MaxRetries)
			}
			fmt.Println(line)
		}
	}

	if len(history) > 0 {
		fmt.Println("\nRecent:")
		for _, job := range history {
			when := ""
			if job.CompletedAt != nil {
				when = fmt.Sprintf(" (%s ago)", formatDuration(time.Since(*job.CompletedAt)))
			}
			fmt.Printf("  %s  %-9s %s%s\n", shortID(job.ID), colorStatus(job.Status), job.Name, when)
		}
	}

	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
