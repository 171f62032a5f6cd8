package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mwhitfield/loom/internal/registry"
)

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "List the worker roster and per-worker stats",
	Long: `Show every registered worker with its role, capabilities, and rolling
invocation stats.

The roster comes from workers.definitions in the config when set,
otherwise the built-in roster is used.`,
	RunE: runWorkers,
}

func runWorkers(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	nameColor := color.New(color.FgCyan, color.Bold)

	for _, w := range a.registry.All() {
		fmt.Printf("%s  %s\n", nameColor.Sprint(w.Name()), w.Role())
		if sp, ok := w.(registry.Specializer); ok && sp.Specialization() != "" {
			fmt.Printf("  specialty: %s\n", sp.Specialization())
		}
		fmt.Printf("  capabilities: %s\n", strings.Join(w.Capabilities(), ", "))

		if stats, ok := a.registry.Stats(w.Name()); ok && stats.Invocations > 0 {
			fmt.Printf("  stats: %d invocations, %d failures, avg latency %s, avg confidence %.2f\n",
				stats.Invocations, stats.Failures,
				stats.AvgLatency.Round(time.Millisecond), stats.AvgConfidence)
		}
		fmt.Println()
	}

	fmt.Printf("%d workers registered\n", a.registry.Count())
	return nil
}
