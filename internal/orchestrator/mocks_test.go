package orchestrator

import (
	"context"

	"github.com/compozy/release-dispatch/internal/domain"
	"github.com/compozy/release-dispatch/internal/repository"
	"github.com/compozy/release-dispatch/internal/service"
	"github.com/stretchr/testify/mock"
)

// Mock for GitRepository
type mockGitRepository struct{ mock.Mock }

func (m *mockGitRepository) Checkout(ctx context.Context, remoteURL string) error {
	args := m.Called(ctx, remoteURL)
	return args.Error(0)
}
func (m *mockGitRepository) Reload(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *mockGitRepository) IsShallow(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}
func (m *mockGitRepository) ConfigureUser(ctx context.Context, name, email string) error {
	args := m.Called(ctx, name, email)
	return args.Error(0)
}
func (m *mockGitRepository) UserIdentity(ctx context.Context) (string, string, error) {
	args := m.Called(ctx)
	return args.String(0), args.String(1), args.Error(2)
}
func (m *mockGitRepository) GetCurrentBranch(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
func (m *mockGitRepository) GetHeadCommit(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
func (m *mockGitRepository) ResetHard(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}
func (m *mockGitRepository) LatestTag(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
func (m *mockGitRepository) TagExists(ctx context.Context, tag string) (bool, error) {
	args := m.Called(ctx, tag)
	return args.Bool(0), args.Error(1)
}
func (m *mockGitRepository) DeleteTag(ctx context.Context, tag string) error {
	args := m.Called(ctx, tag)
	return args.Error(0)
}
func (m *mockGitRepository) DeleteRemoteTag(ctx context.Context, tag string) error {
	args := m.Called(ctx, tag)
	return args.Error(0)
}

// Mock for GithubRepository
type mockGithubRepository struct{ mock.Mock }

func (m *mockGithubRepository) GetReleaseByTag(ctx context.Context, tag string) (*repository.HostedRelease, error) {
	args := m.Called(ctx, tag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.HostedRelease), args.Error(1)
}
func (m *mockGithubRepository) DeleteRelease(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Mock for SemanticReleaseService
type mockReleaseService struct{ mock.Mock }

func (m *mockReleaseService) VersionCommand(rt domain.ReleaseType) service.Command {
	args := m.Called(rt)
	return args.Get(0).(service.Command)
}
func (m *mockReleaseService) PublishCommand() service.Command {
	args := m.Called()
	return args.Get(0).(service.Command)
}
func (m *mockReleaseService) Version(ctx context.Context, rt domain.ReleaseType) (string, error) {
	args := m.Called(ctx, rt)
	return args.String(0), args.Error(1)
}
func (m *mockReleaseService) Publish(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Mock for CommandRunner
type mockCommandRunner struct{ mock.Mock }

func (m *mockCommandRunner) Run(ctx context.Context, cmd service.Command) ([]byte, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Mock for StateRepository
type mockStateRepository struct{ mock.Mock }

func (m *mockStateRepository) Save(ctx context.Context, state *domain.RollbackState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}
func (m *mockStateRepository) Load(ctx context.Context, sessionID string) (*domain.RollbackState, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RollbackState), args.Error(1)
}
func (m *mockStateRepository) LoadLatest(ctx context.Context) (*domain.RollbackState, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RollbackState), args.Error(1)
}
func (m *mockStateRepository) Delete(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}
func (m *mockStateRepository) Exists(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}
