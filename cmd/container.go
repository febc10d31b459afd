package cmd

import (
	"fmt"

	"github.com/compozy/release-dispatch/internal/config"
	"github.com/compozy/release-dispatch/internal/orchestrator"
	"github.com/compozy/release-dispatch/internal/repository"
	"github.com/compozy/release-dispatch/internal/service"
	"github.com/spf13/afero"
)

// container holds all the dependencies for the application.

type container struct {
	cfg *config.Config

	fsRepo     repository.FileSystemRepository
	gitRepo    repository.GitRepository
	ghRepo     repository.GithubRepository
	releaseSvc service.SemanticReleaseService
	runner     service.CommandRunner
}

// newContainer creates a new container with all the dependencies.
func newContainer() (*container, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	fsRepo := repository.FileSystemRepository(afero.NewOsFs())
	gitRepo, err := repository.NewGitRepository(cfg.WorkDir, cfg.RemoteName, cfg.GithubToken)
	if err != nil {
		return nil, err
	}
	// The GitHub API is only used for reporting and rollback, so a missing token is not fatal
	ghRepo := repository.NewGithubNoopRepository(cfg.GithubOwner, cfg.GithubRepo)
	if cfg.GithubToken != "" && cfg.GithubOwner != "" && cfg.GithubRepo != "" {
		ghRepo, err = repository.NewGithubRepository(cfg.GithubToken, cfg.GithubOwner, cfg.GithubRepo)
		if err != nil {
			return nil, err
		}
	}
	runner := service.NewCommandRunner()
	releaseSvc, err := service.NewSemanticReleaseService(runner, service.SemanticReleaseOptions{
		Command: cfg.ReleaseCommand,
		Dir:     cfg.WorkDir,
		Token:   cfg.GithubToken,
		Timeout: cfg.CommandTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize release service: %w", err)
	}
	return &container{
		cfg:        cfg,
		fsRepo:     fsRepo,
		gitRepo:    gitRepo,
		ghRepo:     ghRepo,
		releaseSvc: releaseSvc,
		runner:     runner,
	}, nil
}

// remoteURL is the clone source used when the working directory has no repository.
func (c *container) remoteURL() string {
	if c.cfg.RemoteURL != "" {
		return c.cfg.RemoteURL
	}
	if c.cfg.GithubOwner != "" && c.cfg.GithubRepo != "" {
		return fmt.Sprintf("https://github.com/%s/%s.git", c.cfg.GithubOwner, c.cfg.GithubRepo)
	}
	return ""
}

func (c *container) releaseOrchestrator() *orchestrator.ReleaseOrchestrator {
	settings := orchestrator.ReleaseSettings{
		RemoteURL:    c.remoteURL(),
		RemoteName:   c.cfg.RemoteName,
		WorkDir:      c.cfg.WorkDir,
		GitUserName:  c.cfg.GitUserName,
		GitUserEmail: c.cfg.GitUserEmail,
		Token:        c.cfg.GithubToken,
		StateDir:     c.cfg.StateDir,
	}
	return orchestrator.NewReleaseOrchestrator(c.gitRepo, c.ghRepo, c.fsRepo, c.releaseSvc, c.runner, settings)
}

func (c *container) dryRunOrchestrator() *orchestrator.DryRunOrchestrator {
	return orchestrator.NewDryRunOrchestrator(c.gitRepo, c.releaseSvc)
}

// InitCommands registers all commands on the root command
func InitCommands() error {
	rootCmd.AddCommand(
		newReleaseCmd(newContainer),
		newDryRunCmd(newContainer),
		newWorkflowCmd(afero.NewOsFs()),
		newVersionCmd(),
	)
	return nil
}
