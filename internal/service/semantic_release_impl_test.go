package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/compozy/release-dispatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCommandRunner struct {
	mock.Mock
}

func (m *mockCommandRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	args := m.Called(ctx, cmd)
	if out := args.Get(0); out != nil {
		return out.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func argvIs(want ...string) any {
	return mock.MatchedBy(func(cmd Command) bool {
		return assert.ObjectsAreEqual(want, cmd.Argv())
	})
}

func newTestService(t *testing.T, runner CommandRunner, opts SemanticReleaseOptions) SemanticReleaseService {
	t.Helper()
	if opts.Command == "" {
		opts.Command = "semantic-release"
	}
	svc, err := NewSemanticReleaseService(runner, opts)
	require.NoError(t, err)
	return svc
}

func TestSemanticReleaseService_VersionCommand(t *testing.T) {
	svc := newTestService(t, new(mockCommandRunner), SemanticReleaseOptions{})
	t.Run("Should pass no override flag for auto", func(t *testing.T) {
		assert.Equal(t, []string{"semantic-release", "version"}, svc.VersionCommand(domain.ReleaseTypeAuto).Argv())
	})
	t.Run("Should pass a flag matching the explicit type", func(t *testing.T) {
		for _, rt := range []domain.ReleaseType{domain.ReleaseTypePatch, domain.ReleaseTypeMinor, domain.ReleaseTypeMajor} {
			argv := svc.VersionCommand(rt).Argv()
			assert.Equal(t, []string{"semantic-release", "version", "--" + string(rt)}, argv)
		}
	})
	t.Run("Should keep leading arguments of the configured command", func(t *testing.T) {
		prefixed := newTestService(t, new(mockCommandRunner), SemanticReleaseOptions{Command: "python -m semantic_release"})
		assert.Equal(t,
			[]string{"python", "-m", "semantic_release", "version", "--major"},
			prefixed.VersionCommand(domain.ReleaseTypeMajor).Argv())
		assert.Equal(t, []string{"python", "-m", "semantic_release", "publish"}, prefixed.PublishCommand().Argv())
	})
}

func TestSemanticReleaseService_Env(t *testing.T) {
	t.Run("Should forward the token as GH_TOKEN", func(t *testing.T) {
		svc := newTestService(t, new(mockCommandRunner), SemanticReleaseOptions{Token: " secret "})
		assert.Equal(t, []string{"GH_TOKEN=secret"}, svc.PublishCommand().Env)
	})
	t.Run("Should not set env without token", func(t *testing.T) {
		svc := newTestService(t, new(mockCommandRunner), SemanticReleaseOptions{})
		assert.Empty(t, svc.PublishCommand().Env)
	})
	t.Run("Should carry dir and timeout", func(t *testing.T) {
		svc := newTestService(t, new(mockCommandRunner), SemanticReleaseOptions{Dir: "/work", Timeout: time.Minute})
		cmd := svc.VersionCommand(domain.ReleaseTypeAuto)
		assert.Equal(t, "/work", cmd.Dir)
		assert.Equal(t, time.Minute, cmd.Timeout)
	})
}

func TestSemanticReleaseService_Version(t *testing.T) {
	t.Run("Should run the versioning command and return its output", func(t *testing.T) {
		runner := new(mockCommandRunner)
		svc := newTestService(t, runner, SemanticReleaseOptions{})
		ctx := context.Background()
		runner.On("Run", ctx, argvIs("semantic-release", "version", "--minor")).Return([]byte("1.3.0\n"), nil).Once()
		out, err := svc.Version(ctx, domain.ReleaseTypeMinor)
		require.NoError(t, err)
		assert.Equal(t, "1.3.0", out)
		runner.AssertExpectations(t)
	})
	t.Run("Should not retry a failed versioning command", func(t *testing.T) {
		runner := new(mockCommandRunner)
		svc := newTestService(t, runner, SemanticReleaseOptions{})
		ctx := context.Background()
		runner.On("Run", ctx, argvIs("semantic-release", "version")).
			Return(nil, errors.New("exit status 1")).Once()
		_, err := svc.Version(ctx, domain.ReleaseTypeAuto)
		assert.ErrorContains(t, err, "semantic-release version")
		runner.AssertNumberOfCalls(t, "Run", 1)
	})
}

func TestSemanticReleaseService_Publish(t *testing.T) {
	runner := new(mockCommandRunner)
	svc := newTestService(t, runner, SemanticReleaseOptions{})
	ctx := context.Background()
	runner.On("Run", ctx, argvIs("semantic-release", "publish")).Return([]byte(""), nil).Once()
	require.NoError(t, svc.Publish(ctx))
	runner.AssertExpectations(t)
}

func TestNewSemanticReleaseService(t *testing.T) {
	t.Run("Should reject empty command", func(t *testing.T) {
		_, err := NewSemanticReleaseService(new(mockCommandRunner), SemanticReleaseOptions{Command: " "})
		assert.ErrorContains(t, err, "cannot be empty")
	})
	t.Run("Should reject shell metacharacters", func(t *testing.T) {
		_, err := NewSemanticReleaseService(new(mockCommandRunner), SemanticReleaseOptions{Command: "semantic-release; rm -rf /"})
		assert.ErrorContains(t, err, "invalid release command part")
	})
}
