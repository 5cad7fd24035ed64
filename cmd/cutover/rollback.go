package main

import (
	"github.com/spf13/cobra"

	"github.com/vellankikoti/cutover/internal/domain"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Cut traffic back to the previously active version",
	Long: `Rollback looks up the most recent successful switch and repoints
traffic at the version that was active before it. The same readiness
gate applies as for a forward switch.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		orch, cleanup, err := buildOrchestrator(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		op, err := orch.Rollback(cmd.Context())
		if err != nil {
			return err
		}
		printOperation(cmd.OutOrStdout(), op)
		if op.Outcome == domain.OutcomeRejected {
			exitCode = exitRejected
		}
		return printPostStatus(cmd, orch)
	},
}
