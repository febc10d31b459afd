package orchestrator

import (
	"os"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
)

// Timeouts bounds a dispatch and the network reads made around it
type Timeouts struct {
	// Workflow bounds a whole dispatch, mirroring the job timeout
	Workflow time.Duration
	// Rollback bounds the compensation run after a failure
	Rollback time.Duration
	// RetryCount is the number of retries for network reads
	RetryCount uint64
	// RetryDelay is the initial delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultTimeouts returns the production values. Each can be overridden from the environment.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Workflow:   durationFromEnv("RELEASE_WORKFLOW_TIMEOUT", 60*time.Minute),
		Rollback:   durationFromEnv("ROLLBACK_TIMEOUT", 10*time.Minute),
		RetryCount: countFromEnv("RETRY_COUNT", 3),
		RetryDelay: durationFromEnv("RETRY_DELAY", time.Second),
	}
}

func (t Timeouts) networkBackoff() retry.Backoff {
	return retry.WithMaxRetries(t.RetryCount, retry.NewExponential(t.RetryDelay))
}

func durationFromEnv(envVar string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(envVar)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func countFromEnv(envVar string, fallback uint64) uint64 {
	if n, err := strconv.ParseUint(os.Getenv(envVar), 10, 64); err == nil {
		return n
	}
	return fallback
}

// File permission constants
const (
	// FilePermissionsReadWrite is the standard permission for created files
	FilePermissionsReadWrite = 0644
)

// Environment variables read from the CI runner
const (
	envGithubOutput = "GITHUB_OUTPUT"
	envGHToken      = "GH_TOKEN"
)
