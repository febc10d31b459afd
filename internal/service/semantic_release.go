package service

import (
	"context"

	"github.com/compozy/release-dispatch/internal/domain"
)

// SemanticReleaseService defines the interface for interacting with semantic-release.

type SemanticReleaseService interface {
	// VersionCommand is the versioning invocation for rt. Auto carries no override flag.
	VersionCommand(rt domain.ReleaseType) Command
	PublishCommand() Command
	// Version bumps, commits, tags and pushes. It returns the tool's stdout.
	Version(ctx context.Context, rt domain.ReleaseType) (string, error)
	Publish(ctx context.Context) error
}
