package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/compozy/release-dispatch/internal/domain"
	"github.com/compozy/release-dispatch/internal/logger"
	"github.com/compozy/release-dispatch/internal/repository"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Rollback data keys recorded by the version and publish steps
const (
	rollbackKeyHeadBefore  = "head_before"
	rollbackKeyHeadAfter   = "head_after"
	rollbackKeyPreviousTag = "previous_tag"
	rollbackKeyTag         = "tag"
	rollbackKeyBumped      = "bumped"
	rollbackKeyReleaseID   = "release_id"
)

// CompensatingActions provides idempotent rollback operations for release workflow steps
type CompensatingActions struct {
	gitRepo    repository.GitRepository
	githubRepo repository.GithubRepository
	timeouts   Timeouts
}

// NewCompensatingActions creates a new compensating actions handler
func NewCompensatingActions(
	gitRepo repository.GitRepository,
	githubRepo repository.GithubRepository,
	timeouts Timeouts,
) *CompensatingActions {
	return &CompensatingActions{
		gitRepo:    gitRepo,
		githubRepo: githubRepo,
		timeouts:   timeouts,
	}
}

// UndoVersion removes what the versioning command pushed: the hosted release it
// created for the new tag, the tag itself, and the local commit. The remote
// branch is left alone.
func (ca *CompensatingActions) UndoVersion(ctx context.Context, rollbackData map[string]any) error {
	tag := stringValue(rollbackData, rollbackKeyTag)
	if boolValue(rollbackData, rollbackKeyBumped) && tag != "" {
		if err := ca.deleteReleaseForTag(ctx, tag); err != nil {
			return err
		}
		if err := ca.deleteTag(ctx, tag); err != nil {
			return err
		}
	}
	return ca.resetHead(ctx, rollbackData)
}

// deleteReleaseForTag removes a release left behind for tag. Without API access
// the release cannot be found, which is reported and skipped.
func (ca *CompensatingActions) deleteReleaseForTag(ctx context.Context, tag string) error {
	log := logger.FromContext(ctx)
	release, err := lookupRelease(ctx, ca.timeouts.networkBackoff(), ca.githubRepo, tag)
	switch {
	case errors.Is(err, repository.ErrReleaseNotFound):
		return nil
	case errors.Is(err, repository.ErrGithubTokenRequired):
		log.Warn("hosted release not checked without a GitHub token", zap.String("tag", tag))
		return nil
	case err != nil:
		return fmt.Errorf("failed to look up release %s: %w", tag, err)
	}
	if err := ca.githubRepo.DeleteRelease(ctx, release.ID); err != nil && !errors.Is(err, repository.ErrReleaseNotFound) {
		return fmt.Errorf("failed to delete release %s: %w", tag, err)
	}
	log.Info("deleted hosted release", zap.String("tag", tag))
	return nil
}

func (ca *CompensatingActions) deleteTag(ctx context.Context, tag string) error {
	err := retry.Do(ctx, ca.timeouts.networkBackoff(), func(ctx context.Context) error {
		if err := ca.gitRepo.DeleteRemoteTag(ctx, tag); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete remote tag %s: %w", tag, err)
	}
	exists, err := ca.gitRepo.TagExists(ctx, tag)
	if err != nil {
		return fmt.Errorf("failed to check tag %s: %w", tag, err)
	}
	if !exists {
		return nil
	}
	if err := ca.gitRepo.DeleteTag(ctx, tag); err != nil {
		return fmt.Errorf("failed to delete local tag %s: %w", tag, err)
	}
	return nil
}

func (ca *CompensatingActions) resetHead(ctx context.Context, rollbackData map[string]any) error {
	release := domain.Release{
		HeadBefore: stringValue(rollbackData, rollbackKeyHeadBefore),
		HeadAfter:  stringValue(rollbackData, rollbackKeyHeadAfter),
	}
	if release.HeadBefore == "" || !release.Committed() {
		return nil
	}
	headBefore, headAfter := release.HeadBefore, release.HeadAfter
	current, err := ca.gitRepo.GetHeadCommit(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current HEAD: %w", err)
	}
	if current != headAfter {
		logger.FromContext(ctx).Info("HEAD moved since versioning, skipping reset",
			zap.String("expected", headAfter), zap.String("current", current))
		return nil
	}
	if err := ca.gitRepo.ResetHard(ctx, headBefore); err != nil {
		return fmt.Errorf("failed to reset to %s: %w", headBefore, err)
	}
	return nil
}

// DeleteRelease removes the hosted release the publish command created
func (ca *CompensatingActions) DeleteRelease(ctx context.Context, rollbackData map[string]any) error {
	log := logger.FromContext(ctx)
	tag := stringValue(rollbackData, rollbackKeyTag)
	if tag == "" || !boolValue(rollbackData, rollbackKeyBumped) {
		return nil
	}
	id := int64Value(rollbackData, rollbackKeyReleaseID)
	if id == 0 {
		release, err := lookupRelease(ctx, ca.timeouts.networkBackoff(), ca.githubRepo, tag)
		switch {
		case errors.Is(err, repository.ErrReleaseNotFound):
			log.Info("no hosted release to delete", zap.String("tag", tag))
			return nil
		case err != nil:
			return fmt.Errorf("failed to look up release %s: %w", tag, err)
		}
		id = release.ID
	}
	if err := ca.githubRepo.DeleteRelease(ctx, id); err != nil {
		if errors.Is(err, repository.ErrReleaseNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete release %s: %w", tag, err)
	}
	log.Info("deleted hosted release", zap.String("tag", tag))
	return nil
}

// NoOp is a no-operation compensating action for operations that don't need rollback
func (ca *CompensatingActions) NoOp(_ context.Context, _ map[string]any) error {
	return nil
}

// lookupRelease fetches the hosted release for tag, retrying transient failures.
func lookupRelease(
	ctx context.Context,
	backoff retry.Backoff,
	githubRepo repository.GithubRepository,
	tag string,
) (*repository.HostedRelease, error) {
	var release *repository.HostedRelease
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := githubRepo.GetReleaseByTag(ctx, tag)
		if err != nil {
			if errors.Is(err, repository.ErrReleaseNotFound) || errors.Is(err, repository.ErrGithubTokenRequired) {
				return err
			}
			return retry.RetryableError(err)
		}
		release = r
		return nil
	})
	return release, err
}

// Rollback data survives a JSON round trip, so numbers come back as float64.

func stringValue(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func boolValue(data map[string]any, key string) bool {
	b, _ := data[key].(bool)
	return b
}

func int64Value(data map[string]any, key string) int64 {
	switch v := data[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
