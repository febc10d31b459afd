package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/compozy/release-dispatch/internal/config"
	"github.com/compozy/release-dispatch/internal/logger"
	"github.com/google/go-github/v74/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// githubRepository is the implementation of the GithubRepository interface.
type githubRepository struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGithubRepository creates a new GithubRepository with validation.
func NewGithubRepository(token, owner, repo string) (GithubRepository, error) {
	if err := config.ValidateGitHubToken(token); err != nil {
		return nil, fmt.Errorf("invalid GitHub token: %w", err)
	}
	if err := config.ValidateGitHubOwnerRepo(owner, repo); err != nil {
		return nil, fmt.Errorf("invalid repository configuration: %w", err)
	}
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: strings.TrimSpace(token)},
	)
	tc := oauth2.NewClient(context.Background(), ts)
	return newGithubRepositoryWithClient(github.NewClient(tc), owner, repo), nil
}

func newGithubRepositoryWithClient(client *github.Client, owner, repo string) *githubRepository {
	return &githubRepository{
		client: client,
		owner:  owner,
		repo:   repo,
	}
}

// GetReleaseByTag fetches the hosted release published for tag.
func (r *githubRepository) GetReleaseByTag(ctx context.Context, tag string) (*HostedRelease, error) {
	logger.FromContext(ctx).Debug("looking up release",
		zap.String("owner", r.owner), zap.String("repo", r.repo), zap.String("tag", tag))
	rel, _, err := r.client.Repositories.GetReleaseByTag(ctx, r.owner, r.repo, tag)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w for tag %s", ErrReleaseNotFound, tag)
		}
		return nil, fmt.Errorf("failed to get release for tag %s: %w", tag, err)
	}
	return &HostedRelease{
		ID:      rel.GetID(),
		TagName: rel.GetTagName(),
		Name:    rel.GetName(),
		HTMLURL: rel.GetHTMLURL(),
		Draft:   rel.GetDraft(),
	}, nil
}

// DeleteRelease removes a hosted release. The git tag is left alone.
func (r *githubRepository) DeleteRelease(ctx context.Context, id int64) error {
	_, err := r.client.Repositories.DeleteRelease(ctx, r.owner, r.repo, id)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: id %d", ErrReleaseNotFound, id)
		}
		return fmt.Errorf("failed to delete release %d: %w", id, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}
