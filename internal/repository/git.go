package repository

import (
	"context"
	"errors"
)

var (
	// ErrShallowRepository means the checkout lacks the history the release tool needs.
	ErrShallowRepository = errors.New("repository is a shallow clone")
	// ErrRepositoryNotOpen is returned by operations that run before a clone exists.
	ErrRepositoryNotOpen = errors.New("git repository is not checked out")
)

// GitRepository defines the interface for Git operations.

type GitRepository interface {
	// Checkout guarantees a full-history working copy, cloning remoteURL when none exists.
	Checkout(ctx context.Context, remoteURL string) error
	IsShallow(ctx context.Context) (bool, error)
	// Reload reopens the repository after another git process changed it.
	Reload(ctx context.Context) error
	// Identity
	ConfigureUser(ctx context.Context, name, email string) error
	UserIdentity(ctx context.Context) (string, string, error)
	// Refs
	GetCurrentBranch(ctx context.Context) (string, error)
	GetHeadCommit(ctx context.Context) (string, error)
	ResetHard(ctx context.Context, ref string) error
	// Tags
	LatestTag(ctx context.Context) (string, error)
	TagExists(ctx context.Context, tag string) (bool, error)
	DeleteTag(ctx context.Context, tag string) error
	DeleteRemoteTag(ctx context.Context, tag string) error
}
