package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vellankikoti/cutover/internal/application"
	"github.com/vellankikoti/cutover/internal/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show traffic routing, both fleets, and recent operations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		orch, cleanup, err := buildOrchestrator(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		report, err := orch.Status(cmd.Context())
		if err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), report.Traffic, report.Blue, report.Green, report.RecentOperations)
		return nil
	},
}

// printPostStatus prints the current status after a mutation, so the
// operator sees the resulting routing state without a second call.
func printPostStatus(cmd *cobra.Command, orch *application.Orchestrator) error {
	report, err := orch.Status(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	printStatus(out, report.Traffic, report.Blue, report.Green, nil)
	return nil
}

func printStatus(w io.Writer, traffic domain.TrafficState, blue, green domain.FleetSnapshot, ops []domain.SwitchOperation) {
	if traffic.HasActive() {
		fmt.Fprintf(w, "active: %s", traffic.ActiveVersion)
		if !traffic.LastSwitchedAt.IsZero() {
			fmt.Fprintf(w, " (since %s)", traffic.LastSwitchedAt.Format(time.RFC3339))
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "active: none")
	}

	fmt.Fprintln(w)
	printSnapshot(w, blue)
	printSnapshot(w, green)

	if len(ops) == 0 {
		return
	}
	fmt.Fprintln(w, "\nrecent operations:")
	for _, op := range ops {
		printOperation(w, op)
	}
}

func printSnapshot(w io.Writer, snap domain.FleetSnapshot) {
	fmt.Fprintf(w, "%-6s %d/%d ready", snap.Version, snap.ReadyReplicas, snap.DesiredReplicas)
	for phase, n := range snap.PhaseCounts() {
		fmt.Fprintf(w, "  %s=%d", phase, n)
	}
	fmt.Fprintln(w)
}

func printOperation(w io.Writer, op domain.SwitchOperation) {
	from := string(op.From)
	if from == "" {
		from = "none"
	}
	to := string(op.To)
	if to == "" {
		to = "none"
	}
	fmt.Fprintf(w, "%s  %s -> %s  %s", op.RequestedAt.Format(time.RFC3339), from, to, op.Outcome)
	if op.Reason != "" {
		fmt.Fprintf(w, " (%s)", op.Reason)
	}
	fmt.Fprintln(w)
}
