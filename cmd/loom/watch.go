package main

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwhitfield/loom/internal/coordinator"
	"github.com/mwhitfield/loom/internal/tui"
	"github.com/mwhitfield/loom/pkg/models"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open the live job watch view",
	Long: `Launch the interactive watch view.

Shows live jobs with status and progress, recent history, and toast
notifications. Type a request and press enter to submit it to the
scheduler.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// Suppress log output while the TUI owns the terminal.
	originalOutput := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(originalOutput)

	a.sched.Start()
	defer a.sched.Stop()

	program := tui.NewProgram(a.sched, coordinator.JobType)

	unsubscribe := a.sched.Subscribe(func(note models.Notification) {
		if note.ShowToast {
			program.Send(tui.NotificationMsg{Notification: note})
		}
	})
	defer unsubscribe()

	_, err = program.Run()
	return err
}

// cmdContext derives a context from the command, bounded by timeout when
// one is set.
func cmdContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}
