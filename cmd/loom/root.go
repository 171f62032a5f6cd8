package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Work orchestration for multi-worker request processing",
	Long: `Loom schedules prioritized background jobs and coordinates a roster of
specialist workers on each request.

Requests are scored against worker capabilities, fanned out under a
sequential, parallel, hierarchical, or collaborative topology, and the
worker answers are synthesized into one response.

With no arguments, launches the live watch view where you can submit
requests and follow job progress.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd, args)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(workersCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
