package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/compozy/release-dispatch/internal/logger"
	"go.uber.org/zap"
)

// ErrCommandFailed wraps every non-zero exit or start failure of an external command.
var ErrCommandFailed = errors.New("command failed")

// Command is one invocation of an external binary.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// Argv returns the binary followed by its arguments.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// CommandRunner executes external commands.

type CommandRunner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// execRunner is the os/exec implementation of CommandRunner.
type execRunner struct {
	stdout io.Writer
	stderr io.Writer
}

// NewCommandRunner creates a runner that streams output to the process stdio
// when running inside GitHub Actions.
func NewCommandRunner() CommandRunner {
	r := &execRunner{}
	if os.Getenv("GITHUB_ACTIONS") == githubActionsTrue {
		r.stdout = os.Stdout
		r.stderr = os.Stderr
	}
	return r
}

// Run executes cmd with its timeout, returning captured stdout.
func (r *execRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	parent := ctx
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	// Children that outlive the process must not hold the pipes open forever
	c.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	c.Stdout = teeTo(&stdout, r.stdout)
	c.Stderr = teeTo(&stderr, r.stderr)

	log := logger.FromContext(ctx)
	log.Debug("running command", zap.Strings("argv", cmd.Argv()), zap.String("dir", cmd.Dir))
	started := time.Now()
	err := c.Run()
	log.Debug("command finished", zap.String("command", cmd.Name), zap.Duration("elapsed", time.Since(started)))
	if err != nil {
		// The caller's deadline or cancellation is reported as such, not as the command timeout
		if perr := parent.Err(); perr != nil {
			return nil, fmt.Errorf("%w: %s stopped: %w", ErrCommandFailed, cmd.Name, perr)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s timed out after %v", ErrCommandFailed, cmd.Name, timeout)
		}
		if errMsg := strings.TrimSpace(stderr.String()); errMsg != "" {
			return nil, fmt.Errorf("%w: %s: %v (stderr: %s)", ErrCommandFailed, cmd.Name, err, errMsg)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrCommandFailed, cmd.Name, err)
	}
	return stdout.Bytes(), nil
}

func teeTo(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}
