package usecase

import (
	"context"
	"fmt"

	"github.com/compozy/release-dispatch/internal/domain"
	"github.com/compozy/release-dispatch/internal/logger"
	"github.com/compozy/release-dispatch/internal/repository"
	"github.com/compozy/release-dispatch/internal/service"
	"go.uber.org/zap"
)

// BumpVersionUseCase runs the versioning command and records what it changed.

type BumpVersionUseCase struct {
	GitRepo    repository.GitRepository
	ReleaseSvc service.SemanticReleaseService
}

// Execute runs the use case.
func (uc *BumpVersionUseCase) Execute(ctx context.Context, rt domain.ReleaseType) (*domain.Release, error) {
	log := logger.FromContext(ctx)
	release := &domain.Release{Type: rt}
	var err error
	if release.HeadBefore, err = uc.GitRepo.GetHeadCommit(ctx); err != nil {
		return nil, fmt.Errorf("failed to read HEAD before versioning: %w", err)
	}
	if release.PreviousTag, err = uc.GitRepo.LatestTag(ctx); err != nil {
		return nil, fmt.Errorf("failed to get latest tag: %w", err)
	}
	if _, err := uc.ReleaseSvc.Version(ctx, rt); err != nil {
		return release, err
	}
	if release.HeadAfter, err = uc.GitRepo.GetHeadCommit(ctx); err != nil {
		return release, fmt.Errorf("failed to read HEAD after versioning: %w", err)
	}
	if release.TagName, err = uc.GitRepo.LatestTag(ctx); err != nil {
		return release, fmt.Errorf("failed to get new tag: %w", err)
	}
	if !release.Bumped() {
		log.Info("versioning produced no new release", zap.String("latest_tag", release.PreviousTag))
		return release, nil
	}
	if release.Version, err = domain.NewVersion(release.TagName); err != nil {
		return release, fmt.Errorf("release tool created non-semver tag %s: %w", release.TagName, err)
	}
	uc.checkExpected(ctx, release)
	log.Info("version bumped",
		zap.String("previous_tag", release.PreviousTag),
		zap.String("tag", release.TagName),
		zap.String("release_type", rt.String()))
	return release, nil
}

// checkExpected warns when an explicit bump disagrees with the previous tag.
func (uc *BumpVersionUseCase) checkExpected(ctx context.Context, release *domain.Release) {
	if release.Type.IsAuto() || release.PreviousTag == "" {
		return
	}
	prev, err := domain.NewVersion(release.PreviousTag)
	if err != nil {
		return
	}
	if want := prev.Bump(release.Type); want.Compare(release.Version) != 0 {
		logger.FromContext(ctx).Warn("release tool chose a different version than the requested bump",
			zap.String("expected", want.String()), zap.String("actual", release.Version.String()))
	}
}
