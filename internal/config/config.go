package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/compozy/release-dispatch/internal/domain"
	"github.com/go-git/go-git/v5"
	"github.com/spf13/viper"
)

const (
	// DefaultReleaseCommand is the python-semantic-release entrypoint.
	DefaultReleaseCommand = "semantic-release"
	DefaultGitUserName    = "github-actions[bot]"
	DefaultGitUserEmail   = "github-actions[bot]@users.noreply.github.com"
	DefaultRemoteName     = "origin"
	DefaultStateDir       = ".release-state"
	DefaultCommandTimeout = 30 * time.Minute
)

type Config struct {
	GithubToken    string        `mapstructure:"github_token"`
	GithubOwner    string        `mapstructure:"github_owner"`
	GithubRepo     string        `mapstructure:"github_repo"`
	ReleaseType    string        `mapstructure:"release_type"`
	ReleaseCommand string        `mapstructure:"release_command"`
	GitUserName    string        `mapstructure:"git_user_name"`
	GitUserEmail   string        `mapstructure:"git_user_email"`
	RemoteName     string        `mapstructure:"remote_name"`
	RemoteURL      string        `mapstructure:"remote_url"`
	WorkDir        string        `mapstructure:"workdir"`
	StateDir       string        `mapstructure:"state_dir"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ReleaseType:    string(domain.DefaultReleaseType),
		ReleaseCommand: DefaultReleaseCommand,
		GitUserName:    DefaultGitUserName,
		GitUserEmail:   DefaultGitUserEmail,
		RemoteName:     DefaultRemoteName,
		WorkDir:        ".",
		StateDir:       DefaultStateDir,
		CommandTimeout: DefaultCommandTimeout,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// GitHub token is optional - only validate if provided
	if c.GithubToken != "" {
		if err := ValidateGitHubToken(c.GithubToken); err != nil {
			return fmt.Errorf("invalid github_token: %w", err)
		}
	}
	if c.GithubOwner != "" || c.GithubRepo != "" {
		if err := ValidateGitHubOwnerRepo(c.GithubOwner, c.GithubRepo); err != nil {
			return fmt.Errorf("invalid github configuration: %w", err)
		}
	}
	if _, err := domain.ParseReleaseType(c.ReleaseType); err != nil {
		return fmt.Errorf("invalid release_type: %w", err)
	}
	if strings.TrimSpace(c.ReleaseCommand) == "" {
		return fmt.Errorf("release_command cannot be empty")
	}
	if strings.TrimSpace(c.GitUserName) == "" || strings.TrimSpace(c.GitUserEmail) == "" {
		return fmt.Errorf("git_user_name and git_user_email are required")
	}
	if !strings.Contains(c.GitUserEmail, "@") {
		return fmt.Errorf("invalid git_user_email: %s", c.GitUserEmail)
	}
	if c.RemoteName == "" {
		return fmt.Errorf("remote_name cannot be empty")
	}
	if c.StateDir == "" {
		return fmt.Errorf("state_dir cannot be empty")
	}
	if strings.Contains(c.StateDir, "..") {
		return fmt.Errorf("state_dir contains invalid path traversal")
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command_timeout must be positive")
	}
	return nil
}

// ValidateForGitHubOperations validates that GitHub token is present for operations that require it
func (c *Config) ValidateForGitHubOperations() error {
	if c.GithubToken == "" {
		return fmt.Errorf("github_token is required for GitHub operations")
	}
	if err := ValidateGitHubOwnerRepo(c.GithubOwner, c.GithubRepo); err != nil {
		return fmt.Errorf("invalid github configuration: %w", err)
	}
	return c.Validate()
}

// ParsedReleaseType returns the configured release type.
func (c *Config) ParsedReleaseType() (domain.ReleaseType, error) {
	return domain.ParseReleaseType(c.ReleaseType)
}

var (
	legacyToken      = regexp.MustCompile(`^[a-fA-F0-9]{40}$`)
	prefixedToken    = regexp.MustCompile(`^gh[pousr]_[A-Za-z0-9]{36,}$`)
	fineGrainedToken = regexp.MustCompile(`^github_pat_[A-Za-z0-9_]{22,}$`)
)

// ValidateGitHubToken accepts legacy 40-hex tokens, prefixed tokens (ghp_, gho_,
// ghu_, ghs_, ghr_) and fine-grained personal access tokens.
func ValidateGitHubToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token is empty")
	}
	if legacyToken.MatchString(token) || prefixedToken.MatchString(token) || fineGrainedToken.MatchString(token) {
		return nil
	}
	return fmt.Errorf("invalid token format")
}

// ValidateGitHubOwnerRepo validates GitHub owner and repository names (exported for reuse)
func ValidateGitHubOwnerRepo(owner, repo string) error {
	if owner == "" {
		return fmt.Errorf("owner cannot be empty")
	}
	if repo == "" {
		return fmt.Errorf("repository cannot be empty")
	}
	validName := regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-_.]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`)
	if !validName.MatchString(owner) {
		return fmt.Errorf("invalid owner format: %s", owner)
	}
	if len(owner) > 39 {
		return fmt.Errorf("owner too long: maximum 39 characters")
	}
	if !validName.MatchString(repo) {
		return fmt.Errorf("invalid repository format: %s", repo)
	}
	if len(repo) > 100 {
		return fmt.Errorf("repository too long: maximum 100 characters")
	}
	return nil
}

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".release-dispatch")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("RELEASE_DISPATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// BindEnv checks the listed variables in order
	bindings := map[string][]string{
		"github_token":    {"GITHUB_TOKEN", "GH_TOKEN", "RELEASE_DISPATCH_GITHUB_TOKEN"},
		"github_owner":    {"GITHUB_OWNER", "RELEASE_DISPATCH_GITHUB_OWNER"},
		"github_repo":     {"GITHUB_REPO", "RELEASE_DISPATCH_GITHUB_REPO"},
		"release_type":    {"RELEASE_TYPE", "INPUT_RELEASE_TYPE", "RELEASE_DISPATCH_RELEASE_TYPE"},
		"release_command": {"RELEASE_COMMAND", "RELEASE_DISPATCH_RELEASE_COMMAND"},
		"git_user_name":   {"GIT_USER_NAME", "RELEASE_DISPATCH_GIT_USER_NAME"},
		"git_user_email":  {"GIT_USER_EMAIL", "RELEASE_DISPATCH_GIT_USER_EMAIL"},
		"remote_url":      {"REMOTE_URL", "RELEASE_DISPATCH_REMOTE_URL"},
		"command_timeout": {"COMMAND_TIMEOUT", "RELEASE_DISPATCH_COMMAND_TIMEOUT"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s env: %w", key, err)
		}
	}
	defaults := DefaultConfig()
	v.SetDefault("release_type", defaults.ReleaseType)
	v.SetDefault("release_command", defaults.ReleaseCommand)
	v.SetDefault("git_user_name", defaults.GitUserName)
	v.SetDefault("git_user_email", defaults.GitUserEmail)
	v.SetDefault("remote_name", defaults.RemoteName)
	v.SetDefault("workdir", defaults.WorkDir)
	v.SetDefault("state_dir", defaults.StateDir)
	v.SetDefault("command_timeout", defaults.CommandTimeout)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := populateRepositoryDefaults(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

// populateRepositoryDefaults fills owner and repo from the Actions environment,
// then from the origin remote of the working directory.
func populateRepositoryDefaults(cfg *Config) error {
	if cfg.GithubOwner == "" {
		cfg.GithubOwner = os.Getenv("GITHUB_REPOSITORY_OWNER")
	}
	if cfg.GithubRepo == "" {
		cfg.GithubRepo = os.Getenv("GITHUB_REPOSITORY_NAME")
	}
	if slug := os.Getenv("GITHUB_REPOSITORY"); slug != "" {
		if owner, repo, ok := strings.Cut(slug, "/"); ok {
			if cfg.GithubOwner == "" {
				cfg.GithubOwner = owner
			}
			if cfg.GithubRepo == "" {
				cfg.GithubRepo = repo
			}
		}
	}
	if cfg.GithubOwner != "" && cfg.GithubRepo != "" {
		return nil
	}
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = "."
	}
	repo, err := git.PlainOpenWithOptions(workDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		// No repository yet (checkout may clone it); owner/repo stay empty
		return nil
	}
	remoteName := cfg.RemoteName
	if remoteName == "" {
		remoteName = DefaultRemoteName
	}
	remote, err := repo.Remote(remoteName)
	if err != nil || len(remote.Config().URLs) == 0 {
		return nil
	}
	owner, name, err := parseGitRemoteURL(remote.Config().URLs[0])
	if err != nil {
		return fmt.Errorf("failed to parse %s remote: %w", remoteName, err)
	}
	if cfg.GithubOwner == "" {
		cfg.GithubOwner = owner
	}
	if cfg.GithubRepo == "" {
		cfg.GithubRepo = name
	}
	return nil
}

// parseGitRemoteURL extracts owner and repository from https, scp-style ssh or path remotes.
func parseGitRemoteURL(raw string) (string, string, error) {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSpace(raw), "/"), ".git")
	if trimmed == "" {
		return "", "", fmt.Errorf("empty remote url")
	}
	var path string
	switch {
	case strings.Contains(trimmed, "://"):
		u, err := url.Parse(trimmed)
		if err != nil {
			return "", "", fmt.Errorf("invalid remote url %q: %w", raw, err)
		}
		path = u.Path
	case strings.Contains(trimmed, "@") && strings.Contains(trimmed, ":"):
		path = trimmed[strings.Index(trimmed, ":")+1:]
	default:
		path = filepath.ToSlash(trimmed)
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", "", fmt.Errorf("cannot determine owner/repo from %q", raw)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}
