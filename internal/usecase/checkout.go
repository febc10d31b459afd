package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/compozy/release-dispatch/internal/logger"
	"github.com/compozy/release-dispatch/internal/repository"
	"github.com/compozy/release-dispatch/internal/service"
	"go.uber.org/zap"
)

// CheckoutUseCase prepares a full-history working copy.
//
// go-git cannot deepen a shallow clone, so when Runner is set a shallow working
// copy is completed with `git fetch --unshallow` and reopened.
type CheckoutUseCase struct {
	GitRepo    repository.GitRepository
	Runner     service.CommandRunner
	RemoteName string
	Dir        string
}

// Execute runs the use case.
func (uc *CheckoutUseCase) Execute(ctx context.Context, remoteURL string) error {
	err := uc.GitRepo.Checkout(ctx, remoteURL)
	if errors.Is(err, repository.ErrShallowRepository) && uc.Runner != nil {
		err = uc.unshallow(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to check out repository: %w", err)
	}
	return nil
}

func (uc *CheckoutUseCase) unshallow(ctx context.Context) error {
	remote := uc.RemoteName
	if remote == "" {
		remote = "origin"
	}
	logger.FromContext(ctx).Info("fetching full history", zap.String("remote", remote))
	cmd := service.Command{
		Name: "git",
		Args: []string{"fetch", "--unshallow", "--tags", remote},
		Dir:  uc.Dir,
	}
	if _, err := uc.Runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrShallowRepository, err)
	}
	if err := uc.GitRepo.Reload(ctx); err != nil {
		return err
	}
	shallow, err := uc.GitRepo.IsShallow(ctx)
	if err != nil {
		return err
	}
	if shallow {
		return fmt.Errorf("%w: still shallow after fetching full history", repository.ErrShallowRepository)
	}
	return nil
}
