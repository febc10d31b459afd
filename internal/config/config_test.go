package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/compozy/release-dispatch/internal/domain"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopulateRepositoryDefaultsUsesEnvSlug(t *testing.T) {
	t.Setenv("GITHUB_REPOSITORY", "acme/widgets")
	t.Setenv("GITHUB_REPOSITORY_OWNER", "")
	t.Setenv("GITHUB_REPOSITORY_NAME", "")
	cfg := Config{}
	err := populateRepositoryDefaults(&cfg)
	require.NoError(t, err)
	require.Equal(t, "acme", cfg.GithubOwner)
	require.Equal(t, "widgets", cfg.GithubRepo)
}

func TestPopulateRepositoryDefaultsFallsBackToGitRemote(t *testing.T) {
	t.Setenv("GITHUB_REPOSITORY", "")
	t.Setenv("GITHUB_REPOSITORY_OWNER", "")
	t.Setenv("GITHUB_REPOSITORY_NAME", "")
	tmp := t.TempDir()
	repo, err := git.PlainInit(tmp, false)
	require.NoError(t, err)
	_, err = repo.CreateRemote(
		&gitconfig.RemoteConfig{Name: "origin", URLs: []string{"git@github.com:octo/widget.git"}},
	)
	require.NoError(t, err)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmp))
	t.Cleanup(func() { require.NoError(t, os.Chdir(wd)) })
	cfg := Config{WorkDir: tmp}
	err = populateRepositoryDefaults(&cfg)
	require.NoError(t, err)
	require.Equal(t, "octo", cfg.GithubOwner)
	require.Equal(t, "widget", cfg.GithubRepo)
}

func TestParseGitRemoteURL(t *testing.T) {
	cases := []struct {
		name      string
		url       string
		wantOwner string
		wantRepo  string
	}{
		{name: "https clone", url: "https://github.com/org/project.git", wantOwner: "org", wantRepo: "project"},
		{name: "ssh", url: "git@github.com:org/project.git", wantOwner: "org", wantRepo: "project"},
		{name: "ssh without suffix", url: "git@github.com:org/project", wantOwner: "org", wantRepo: "project"},
		{name: "file path", url: filepath.Join("tmp", "org", "project"), wantOwner: "org", wantRepo: "project"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			owner, repo, err := parseGitRemoteURL(tc.url)
			require.NoError(t, err)
			require.Equal(t, tc.wantOwner, owner)
			require.Equal(t, tc.wantRepo, repo)
		})
	}
}

func TestParseGitRemoteURLRejectsSingleSegment(t *testing.T) {
	_, _, err := parseGitRemoteURL("https://github.com/")
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	t.Run("Should accept defaults", func(t *testing.T) {
		require.NoError(t, DefaultConfig().Validate())
	})
	t.Run("Should reject unknown release type", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ReleaseType = "nightly"
		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidReleaseType)
	})
	t.Run("Should reject empty release command", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ReleaseCommand = "  "
		assert.ErrorContains(t, cfg.Validate(), "release_command")
	})
	t.Run("Should reject incomplete identity", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.GitUserEmail = ""
		assert.ErrorContains(t, cfg.Validate(), "git_user_email")
	})
	t.Run("Should reject state dir traversal", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.StateDir = "../outside"
		assert.ErrorContains(t, cfg.Validate(), "path traversal")
	})
	t.Run("Should reject non-positive timeout", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CommandTimeout = 0
		assert.ErrorContains(t, cfg.Validate(), "command_timeout")
	})
	t.Run("Should reject malformed token", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.GithubToken = "not-a-token"
		assert.ErrorContains(t, cfg.Validate(), "github_token")
	})
	t.Run("Should require token for GitHub operations", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.GithubOwner = "acme"
		cfg.GithubRepo = "widgets"
		assert.ErrorContains(t, cfg.ValidateForGitHubOperations(), "github_token is required")
	})
}

func TestValidateGitHubToken(t *testing.T) {
	suffix := strings.Repeat("a1B2", 9)
	cases := []struct {
		name  string
		token string
		valid bool
	}{
		{"classic personal token", "ghp_" + suffix, true},
		{"oauth token", "gho_" + suffix, true},
		{"user-to-server token", "ghu_" + suffix, true},
		{"installation token", "ghs_" + suffix, true},
		{"refresh token", "ghr_" + suffix, true},
		{"fine-grained token", "github_pat_11ABCDEFG0123456789_" + strings.Repeat("x", 59), true},
		{"legacy hex token", strings.Repeat("0a", 20), true},
		{"unknown prefix", "ghx_" + suffix, false},
		{"truncated classic token", "ghp_abc", false},
		{"whitespace inside", "ghp_" + suffix[:18] + " " + suffix[18:], false},
		{"empty", "   ", false},
	}
	for _, tc := range cases {
		t.Run("Should validate "+tc.name, func(t *testing.T) {
			err := ValidateGitHubToken(tc.token)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoadConfigAcceptsClassicTokenFromEnvironment(t *testing.T) {
	tmp := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmp))
	t.Cleanup(func() { require.NoError(t, os.Chdir(wd)) })
	token := "ghp_" + strings.Repeat("a", 36)
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", token)
	t.Setenv("RELEASE_TYPE", "")
	t.Setenv("INPUT_RELEASE_TYPE", "")
	t.Setenv("GITHUB_OWNER", "")
	t.Setenv("GITHUB_REPO", "")
	t.Setenv("GITHUB_REPOSITORY_OWNER", "")
	t.Setenv("GITHUB_REPOSITORY_NAME", "")
	t.Setenv("GITHUB_REPOSITORY", "acme/widgets")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, token, cfg.GithubToken)
	assert.NoError(t, cfg.ValidateForGitHubOperations())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	tmp := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmp))
	t.Cleanup(func() { require.NoError(t, os.Chdir(wd)) })
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", "")
	t.Setenv("GITHUB_OWNER", "")
	t.Setenv("GITHUB_REPO", "")
	t.Setenv("RELEASE_TYPE", "")
	t.Setenv("GITHUB_REPOSITORY_OWNER", "")
	t.Setenv("GITHUB_REPOSITORY_NAME", "")
	t.Setenv("GITHUB_REPOSITORY", "acme/widgets")
	t.Setenv("INPUT_RELEASE_TYPE", "major")
	t.Setenv("COMMAND_TIMEOUT", "5m")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "major", cfg.ReleaseType)
	assert.Equal(t, 5*time.Minute, cfg.CommandTimeout)
	assert.Equal(t, "acme", cfg.GithubOwner)
	assert.Equal(t, "widgets", cfg.GithubRepo)
	assert.Equal(t, DefaultReleaseCommand, cfg.ReleaseCommand)
	assert.Equal(t, DefaultGitUserName, cfg.GitUserName)
	rt, err := cfg.ParsedReleaseType()
	require.NoError(t, err)
	assert.Equal(t, domain.ReleaseTypeMajor, rt)
}
