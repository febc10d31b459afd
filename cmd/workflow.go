package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/compozy/release-dispatch/internal/config"
	"github.com/compozy/release-dispatch/internal/workflow"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newWorkflowCmd(fs afero.Fs) *cobra.Command {
	var (
		output       string
		opts         workflow.Options
		singleScript bool
	)
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Render the GitHub Actions workflow for the manual release",
		RunE: func(cmd *cobra.Command, _ []string) error {
			defaults := config.DefaultConfig()
			if opts.GitUserName == "" {
				opts.GitUserName = defaults.GitUserName
			}
			if opts.GitUserEmail == "" {
				opts.GitUserEmail = defaults.GitUserEmail
			}
			opts.SingleScript = singleScript
			data, err := workflow.Render(opts)
			if err != nil {
				return err
			}
			if output == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := fs.MkdirAll(filepath.Dir(output), 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", filepath.Dir(output), err)
			}
			if err := afero.WriteFile(fs, output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write workflow: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Workflow written to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this path instead of stdout")
	cmd.Flags().StringVar(&opts.Name, "name", workflow.DefaultName, "Workflow name")
	cmd.Flags().StringVar(&opts.TokenSecret, "secret", workflow.DefaultTokenSecret, "Secret exported as GH_TOKEN")
	cmd.Flags().
		StringVar(&opts.ReleaseCommand, "release-command", workflow.DefaultReleaseCommand, "Release tool entrypoint")
	cmd.Flags().StringVar(&opts.InstallCommand, "install", "", "Command that installs the release tool")
	cmd.Flags().StringVar(&opts.GitUserName, "git-user-name", "", "Commit author name")
	cmd.Flags().StringVar(&opts.GitUserEmail, "git-user-email", "", "Commit author email")
	cmd.Flags().BoolVar(&singleScript, "single-script", false, "Render the version step as one shell conditional")
	return cmd
}
