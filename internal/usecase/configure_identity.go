package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/compozy/release-dispatch/internal/repository"
)

// ConfigureIdentityUseCase sets the identity the release tool commits and tags with.

type ConfigureIdentityUseCase struct {
	GitRepo repository.GitRepository
}

// Execute runs the use case.
func (uc *ConfigureIdentityUseCase) Execute(ctx context.Context, name, email string) error {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return fmt.Errorf("commit identity requires both name and email")
	}
	if err := uc.GitRepo.ConfigureUser(ctx, name, email); err != nil {
		return fmt.Errorf("failed to configure git user: %w", err)
	}
	gotName, gotEmail, err := uc.GitRepo.UserIdentity(ctx)
	if err != nil {
		return fmt.Errorf("failed to read back git user: %w", err)
	}
	if gotName != name || gotEmail != email {
		return fmt.Errorf("git user not applied: got %q <%s>", gotName, gotEmail)
	}
	return nil
}
