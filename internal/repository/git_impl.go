package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/compozy/release-dispatch/internal/domain"
	"github.com/compozy/release-dispatch/internal/logger"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"
)

// gitRepository is the implementation of the GitRepository interface.

type gitRepository struct {
	path       string
	remoteName string
	token      string
	repo       *git.Repository
}

// NewGitRepository opens the repository at path. A missing repository is not an
// error: Checkout clones it later.
func NewGitRepository(path, remoteName, token string) (GitRepository, error) {
	if remoteName == "" {
		remoteName = "origin"
	}
	r := &gitRepository{path: path, remoteName: remoteName, token: token}
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil && !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}
	r.repo = repo
	return r, nil
}

func (r *gitRepository) open() (*git.Repository, error) {
	if r.repo == nil {
		return nil, fmt.Errorf("%w at %s", ErrRepositoryNotOpen, r.path)
	}
	return r.repo, nil
}

// Checkout clones with full history or refreshes every branch and tag from the remote.
func (r *gitRepository) Checkout(ctx context.Context, remoteURL string) error {
	log := logger.FromContext(ctx)
	if r.repo == nil {
		if remoteURL == "" {
			return fmt.Errorf("%w at %s and no remote url to clone from", ErrRepositoryNotOpen, r.path)
		}
		log.Info("cloning repository", zap.String("path", r.path))
		repo, err := git.PlainCloneContext(ctx, r.path, false, &git.CloneOptions{
			URL:        remoteURL,
			RemoteName: r.remoteName,
			Auth:       r.getAuth(),
			Tags:       git.AllTags,
		})
		if err != nil {
			return fmt.Errorf("failed to clone repository: %w", err)
		}
		r.repo = repo
		return nil
	}
	remote, err := r.repo.Remote(r.remoteName)
	switch {
	case errors.Is(err, git.ErrRemoteNotFound):
		log.Warn("remote not configured, using local history only", zap.String("remote", r.remoteName))
	case err != nil:
		return fmt.Errorf("failed to get remote %s: %w", r.remoteName, err)
	default:
		log.Info("fetching branches and tags", zap.String("remote", r.remoteName))
		err = remote.FetchContext(ctx, &git.FetchOptions{
			RemoteName: r.remoteName,
			RefSpecs: []config.RefSpec{
				config.RefSpec(fmt.Sprintf("+refs/heads/*:refs/remotes/%s/*", r.remoteName)),
				config.RefSpec("+refs/tags/*:refs/tags/*"),
			},
			Tags: git.AllTags,
			Auth: r.getAuth(),
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("failed to fetch from %s: %w", r.remoteName, err)
		}
	}
	shallow, err := r.IsShallow(ctx)
	if err != nil {
		return err
	}
	if shallow {
		return fmt.Errorf("%w: history must be fetched with the git binary (fetch-depth: 0)", ErrShallowRepository)
	}
	return nil
}

// Reload reopens the repository so objects and refs written by the git binary are visible.
func (r *gitRepository) Reload(_ context.Context) error {
	repo, err := git.PlainOpenWithOptions(r.path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return fmt.Errorf("failed to reopen git repository: %w", err)
	}
	r.repo = repo
	return nil
}

// IsShallow reports whether the object store has shallow boundaries.
func (r *gitRepository) IsShallow(_ context.Context) (bool, error) {
	repo, err := r.open()
	if err != nil {
		return false, err
	}
	hashes, err := repo.Storer.Shallow()
	if err != nil {
		return false, fmt.Errorf("failed to read shallow file: %w", err)
	}
	return len(hashes) > 0, nil
}

// ConfigureUser sets the git user configuration.
func (r *gitRepository) ConfigureUser(_ context.Context, name, email string) error {
	repo, err := r.open()
	if err != nil {
		return err
	}
	cfg, err := repo.Config()
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}
	cfg.User.Name = name
	cfg.User.Email = email
	return repo.Storer.SetConfig(cfg)
}

// UserIdentity returns the repository-local user name and email.
func (r *gitRepository) UserIdentity(_ context.Context) (string, string, error) {
	repo, err := r.open()
	if err != nil {
		return "", "", err
	}
	cfg, err := repo.Config()
	if err != nil {
		return "", "", fmt.Errorf("failed to get config: %w", err)
	}
	return cfg.User.Name, cfg.User.Email, nil
}

// GetCurrentBranch returns the name of the current branch.
func (r *gitRepository) GetCurrentBranch(_ context.Context) (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return head.Name().Short(), nil
}

// GetHeadCommit returns the SHA of the current HEAD commit.
func (r *gitRepository) GetHeadCommit(_ context.Context) (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// ResetHard performs a hard reset to the specified reference.
func (r *gitRepository) ResetHard(_ context.Context, ref string) error {
	repo, err := r.open()
	if err != nil {
		return err
	}
	w, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return fmt.Errorf("failed to resolve revision %s: %w", ref, err)
	}
	if err := w.Reset(&git.ResetOptions{Commit: *hash, Mode: git.HardReset}); err != nil {
		return fmt.Errorf("failed to reset to %s: %w", ref, err)
	}
	return nil
}

// LatestTag returns the tag on the most recent commit. Tags on the same commit
// are ordered by semantic version.
func (r *gitRepository) LatestTag(_ context.Context) (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	tagRefs, err := repo.Tags()
	if err != nil {
		return "", fmt.Errorf("failed to get tags: %w", err)
	}
	var latestTag string
	var latestCommitTime time.Time
	if err := tagRefs.ForEach(func(ref *plumbing.Reference) error {
		hash, err := r.resolveTagCommit(ref)
		if err != nil {
			return nil // Skip this tag if we can't resolve it
		}
		commit, err := repo.CommitObject(hash)
		if err != nil {
			return nil
		}
		name := ref.Name().Short()
		when := commit.Committer.When
		if latestTag == "" || when.After(latestCommitTime) ||
			(when.Equal(latestCommitTime) && newerVersion(name, latestTag)) {
			latestCommitTime = when
			latestTag = name
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("failed to iterate tags: %w", err)
	}
	return latestTag, nil
}

func newerVersion(candidate, current string) bool {
	cv, err := domain.NewVersion(candidate)
	if err != nil {
		return false
	}
	lv, err := domain.NewVersion(current)
	if err != nil {
		return true
	}
	return cv.Compare(lv) > 0
}

// resolveTagCommit resolves a tag reference to its commit hash.
func (r *gitRepository) resolveTagCommit(tagRef *plumbing.Reference) (plumbing.Hash, error) {
	// Try as lightweight tag first
	if commit, err := r.repo.CommitObject(tagRef.Hash()); err == nil {
		return commit.Hash, nil
	}
	// Try as annotated tag
	if tagObj, err := r.repo.TagObject(tagRef.Hash()); err == nil {
		if commit, err := r.repo.CommitObject(tagObj.Target); err == nil {
			return commit.Hash, nil
		}
	}
	return plumbing.Hash{}, fmt.Errorf("failed to resolve commit for tag")
}

// TagExists checks if a tag exists.
func (r *gitRepository) TagExists(_ context.Context, tag string) (bool, error) {
	repo, err := r.open()
	if err != nil {
		return false, err
	}
	_, err = repo.Tag(tag)
	if errors.Is(err, git.ErrTagNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check tag %s: %w", tag, err)
	}
	return true, nil
}

// DeleteTag removes a local tag.
func (r *gitRepository) DeleteTag(_ context.Context, tag string) error {
	repo, err := r.open()
	if err != nil {
		return err
	}
	if err := repo.DeleteTag(tag); err != nil {
		return fmt.Errorf("failed to delete tag %s: %w", tag, err)
	}
	return nil
}

// DeleteRemoteTag removes a tag from the remote.
func (r *gitRepository) DeleteRemoteTag(ctx context.Context, tag string) error {
	repo, err := r.open()
	if err != nil {
		return err
	}
	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: r.remoteName,
		RefSpecs:   []config.RefSpec{config.RefSpec(":refs/tags/" + tag)},
		Auth:       r.getAuth(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to delete remote tag %s: %w", tag, err)
	}
	return nil
}

// getAuth returns token authentication for GitHub remotes
func (r *gitRepository) getAuth() transport.AuthMethod {
	if r.token == "" {
		return nil
	}
	// Use x-access-token as username for GitHub token authentication
	return &http.BasicAuth{
		Username: "x-access-token",
		Password: r.token,
	}
}
