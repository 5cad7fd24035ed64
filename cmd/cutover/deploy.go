package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vellankikoti/cutover/internal/domain"
)

var flagReplicas int32

var deployCmd = &cobra.Command{
	Use:   "deploy <blue|green> <image>",
	Short: "Create or update one fleet and wait for readiness",
	Long: `Deploy applies the given image and replica count to the blue or green
fleet, then waits until the fleet reports ready. Traffic routing is
never changed by a deploy; use "cutover switch" to cut traffic over.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := domain.ParseVersion(args[0])
		if err != nil {
			return err
		}

		orch, cleanup, err := buildOrchestrator(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := orch.Deploy(cmd.Context(), domain.DeployRequest{
			Version:  version,
			Image:    args[1],
			Replicas: flagReplicas,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printSnapshot(out, result.Snapshot)
		if result.TimedOut {
			fmt.Fprintf(out, "fleet %s did not become ready before the deadline\n", version)
			exitCode = exitRejected
		}
		return nil
	},
}

func init() {
	deployCmd.Flags().Int32VarP(&flagReplicas, "replicas", "r", 3, "desired replica count")
}
