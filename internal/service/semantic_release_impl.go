package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/compozy/release-dispatch/internal/domain"
	"github.com/compozy/release-dispatch/internal/logger"
	"go.uber.org/zap"
)

var validCommandPart = regexp.MustCompile(`^[a-zA-Z0-9._/@:=\-]+$`)

// SemanticReleaseOptions configures how the release tool is invoked.
type SemanticReleaseOptions struct {
	// Command is the tool entrypoint, optionally with leading arguments ("python -m semantic_release").
	Command string
	Dir     string
	Token   string
	Timeout time.Duration
}

// semanticReleaseService is the implementation of the SemanticReleaseService interface.
type semanticReleaseService struct {
	runner  CommandRunner
	name    string
	prefix  []string
	dir     string
	token   string
	timeout time.Duration
}

// NewSemanticReleaseService creates a new SemanticReleaseService.
func NewSemanticReleaseService(runner CommandRunner, opts SemanticReleaseOptions) (SemanticReleaseService, error) {
	parts, err := sanitizeCommand(opts.Command)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &semanticReleaseService{
		runner:  runner,
		name:    parts[0],
		prefix:  parts[1:],
		dir:     opts.Dir,
		token:   strings.TrimSpace(opts.Token),
		timeout: timeout,
	}, nil
}

// sanitizeCommand splits the configured command and rejects shell metacharacters.
func sanitizeCommand(command string) ([]string, error) {
	if len(command) > maxCommandLength {
		return nil, fmt.Errorf("release command too long: maximum %d characters", maxCommandLength)
	}
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("release command cannot be empty")
	}
	for _, p := range parts {
		if !validCommandPart.MatchString(p) {
			return nil, fmt.Errorf("invalid release command part: %q", p)
		}
	}
	return parts, nil
}

func (s *semanticReleaseService) command(args ...string) Command {
	full := make([]string, 0, len(s.prefix)+len(args))
	full = append(full, s.prefix...)
	full = append(full, args...)
	cmd := Command{
		Name:    s.name,
		Args:    full,
		Dir:     s.dir,
		Timeout: s.timeout,
	}
	if s.token != "" {
		// semantic-release reads GH_TOKEN for the remote and the release API
		cmd.Env = []string{"GH_TOKEN=" + s.token}
	}
	return cmd
}

// VersionCommand builds "version" with the release type's flag, if any.
func (s *semanticReleaseService) VersionCommand(rt domain.ReleaseType) Command {
	args := []string{"version"}
	if flag := rt.Flag(); flag != "" {
		args = append(args, flag)
	}
	return s.command(args...)
}

// PublishCommand builds "publish".
func (s *semanticReleaseService) PublishCommand() Command {
	return s.command("publish")
}

// Version runs the versioning command once. Failures are not retried.
func (s *semanticReleaseService) Version(ctx context.Context, rt domain.ReleaseType) (string, error) {
	cmd := s.VersionCommand(rt)
	logger.FromContext(ctx).Info("running versioning command",
		zap.String("release_type", rt.String()), zap.Strings("argv", cmd.Argv()))
	out, err := s.runner.Run(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("failed to execute %s version: %w", s.name, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Publish runs the publish command once.
func (s *semanticReleaseService) Publish(ctx context.Context) error {
	cmd := s.PublishCommand()
	logger.FromContext(ctx).Info("running publish command", zap.Strings("argv", cmd.Argv()))
	if _, err := s.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("failed to execute %s publish: %w", s.name, err)
	}
	return nil
}
