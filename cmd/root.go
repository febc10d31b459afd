package cmd

import (
	"context"
	"fmt"

	"github.com/compozy/release-dispatch/internal/logger"
	"github.com/compozy/release-dispatch/pkg/version"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "release-dispatch",
	Short: "Manually dispatched semantic-release trigger",
	Long: `release-dispatch runs a release on demand: it checks out the repository with
full history, configures a commit identity, runs the semantic-release versioning
command (optionally forcing a patch, minor or major bump) and publishes.`,
	Version:       version.Summary(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		log, err := logger.New(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cmd.SetContext(logger.WithContext(cmd.Context(), log))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		_ = logger.FromContext(cmd.Context()).Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}
