package cmd

import (
	"fmt"

	"github.com/compozy/release-dispatch/internal/domain"
	"github.com/compozy/release-dispatch/internal/orchestrator"
	"github.com/spf13/cobra"
)

// newReleaseCmd creates the release command
func newReleaseCmd(build func() (*container, error)) *cobra.Command {
	var (
		releaseType     string
		dryRun          bool
		ciOutput        bool
		skipCheckout    bool
		enableRollback  bool
		rollback        bool
		rollbackSession string
	)
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Run the manual release",
		Long: `Run the manual release workflow:
- Checks out the repository with full history
- Configures the commit identity
- Runs "semantic-release version", adding --patch, --minor or --major unless the
  release type is auto
- Runs "semantic-release publish"

With --enable-rollback, progress is persisted and a failure undoes the completed
steps: the hosted release is deleted, the new tag is removed locally and on the
remote, and HEAD is reset to where it was before versioning.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := build()
			if err != nil {
				return err
			}
			rt, err := resolveReleaseType(cmd, releaseType, c)
			if err != nil {
				return err
			}
			if enableRollback || rollback {
				// Compensation deletes hosted releases and remote tags
				if err := c.cfg.ValidateForGitHubOperations(); err != nil {
					return fmt.Errorf("rollback needs GitHub API access: %w", err)
				}
			}
			cfg := orchestrator.ReleaseConfig{
				ReleaseType:    rt,
				DryRun:         dryRun,
				CIOutput:       ciOutput,
				SkipCheckout:   skipCheckout,
				EnableRollback: enableRollback,
				Rollback:       rollback,
				SessionID:      rollbackSession,
			}
			return c.releaseOrchestrator().Execute(cmd.Context(), cfg)
		},
	}
	addReleaseTypeFlag(cmd, &releaseType)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plan without running anything")
	cmd.Flags().BoolVar(&ciOutput, "ci-output", false, "Output in CI-friendly format")
	cmd.Flags().BoolVar(&skipCheckout, "skip-checkout", false, "Use the working copy as is")
	cmd.Flags().BoolVar(&enableRollback, "enable-rollback", false, "Enable automatic rollback on failure")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "Rollback a failed release session")
	cmd.Flags().
		StringVar(&rollbackSession, "session-id", "", "Session ID to rollback (uses latest if not specified)")
	return cmd
}

func addReleaseTypeFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "release-type", "t", "",
		"Release type: auto, patch, minor or major (defaults to the configured release_type)")
}

// resolveReleaseType prefers the flag, then the configured value (RELEASE_TYPE, INPUT_RELEASE_TYPE).
func resolveReleaseType(cmd *cobra.Command, flagValue string, c *container) (domain.ReleaseType, error) {
	if cmd.Flags().Changed("release-type") {
		rt, err := domain.ParseReleaseType(flagValue)
		if err != nil {
			return "", fmt.Errorf("invalid --release-type: %w", err)
		}
		return rt, nil
	}
	rt, err := c.cfg.ParsedReleaseType()
	if err != nil {
		return "", fmt.Errorf("invalid release_type: %w", err)
	}
	return rt, nil
}
