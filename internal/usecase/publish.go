package usecase

import (
	"context"

	"github.com/compozy/release-dispatch/internal/service"
)

// PublishUseCase runs the publish command.

type PublishUseCase struct {
	ReleaseSvc service.SemanticReleaseService
}

// Execute runs the use case.
func (uc *PublishUseCase) Execute(ctx context.Context) error {
	return uc.ReleaseSvc.Publish(ctx)
}
