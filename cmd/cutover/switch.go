package main

import (
	"github.com/spf13/cobra"

	"github.com/vellankikoti/cutover/internal/domain"
)

var switchCmd = &cobra.Command{
	Use:   "switch <blue|green>",
	Short: "Atomically cut traffic over to the given version",
	Long: `Switch repoints the routing service at the target fleet in a single
atomic update, after verifying the target meets its readiness
threshold. A rejected switch leaves routing untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := domain.ParseVersion(args[0])
		if err != nil {
			return err
		}

		orch, cleanup, err := buildOrchestrator(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		op, err := orch.SwitchTo(cmd.Context(), target)
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
