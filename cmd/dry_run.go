package cmd

import (
	"github.com/compozy/release-dispatch/internal/orchestrator"
	"github.com/spf13/cobra"
)

func newDryRunCmd(build func() (*container, error)) *cobra.Command {
	var (
		releaseType  string
		ciOutput     bool
		skipCheckout bool
	)
	cmd := &cobra.Command{
		Use:   "dry-run",
		Short: "Print the commands a release would run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := build()
			if err != nil {
				return err
			}
			rt, err := resolveReleaseType(cmd, releaseType, c)
			if err != nil {
				return err
			}
			cfg := orchestrator.DryRunConfig{
				ReleaseType:  rt,
				CIOutput:     ciOutput,
				SkipCheckout: skipCheckout,
				RemoteURL:    c.remoteURL(),
			}
			return c.dryRunOrchestrator().Execute(cmd.Context(), cfg)
		},
	}
	addReleaseTypeFlag(cmd, &releaseType)
	cmd.Flags().BoolVar(&ciOutput, "ci-output", false, "Output in CI-friendly format")
	cmd.Flags().BoolVar(&skipCheckout, "skip-checkout", false, "Plan without a checkout step")
	return cmd
}
