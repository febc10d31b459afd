package repository

import (
	"context"
	"errors"
)

// ErrReleaseNotFound is returned when no hosted release exists for a tag.
var ErrReleaseNotFound = errors.New("release not found")

// HostedRelease is the part of a GitHub release the dispatcher reports on.
type HostedRelease struct {
	ID      int64
	TagName string
	Name    string
	HTMLURL string
	Draft   bool
}

// GithubRepository defines the interface for GitHub API operations.

type GithubRepository interface {
	GetReleaseByTag(ctx context.Context, tag string) (*HostedRelease, error)
	DeleteRelease(ctx context.Context, id int64) error
}
