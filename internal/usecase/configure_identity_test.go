package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureIdentityUseCase_Execute(t *testing.T) {
	const (
		name  = "github-actions[bot]"
		email = "github-actions[bot]@users.noreply.github.com"
	)
	t.Run("Should configure and verify the identity", func(t *testing.T) {
		gitRepo := new(mockGitRepository)
		uc := &ConfigureIdentityUseCase{GitRepo: gitRepo}
		ctx := context.Background()
		gitRepo.On("ConfigureUser", ctx, name, email).Return(nil)
		gitRepo.On("UserIdentity", ctx).Return(name, email, nil)
		err := uc.Execute(ctx, "  "+name+" ", email)
		require.NoError(t, err)
		gitRepo.AssertExpectations(t)
	})
	t.Run("Should reject an empty email", func(t *testing.T) {
		gitRepo := new(mockGitRepository)
		uc := &ConfigureIdentityUseCase{GitRepo: gitRepo}
		err := uc.Execute(context.Background(), name, " ")
		require.Error(t, err)
		gitRepo.AssertNotCalled(t, "ConfigureUser")
	})
	t.Run("Should fail when the identity is not applied", func(t *testing.T) {
		gitRepo := new(mockGitRepository)
		uc := &ConfigureIdentityUseCase{GitRepo: gitRepo}
		ctx := context.Background()
		gitRepo.On("ConfigureUser", ctx, name, email).Return(nil)
		gitRepo.On("UserIdentity", ctx).Return("someone", "else@example.com", nil)
		err := uc.Execute(ctx, name, email)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not applied")
	})
	t.Run("Should wrap configure errors", func(t *testing.T) {
		gitRepo := new(mockGitRepository)
		uc := &ConfigureIdentityUseCase{GitRepo: gitRepo}
		ctx := context.Background()
		cause := errors.New("config locked")
		gitRepo.On("ConfigureUser", ctx, name, email).Return(cause)
		err := uc.Execute(ctx, name, email)
		assert.ErrorIs(t, err, cause)
	})
}
