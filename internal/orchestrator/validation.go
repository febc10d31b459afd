package orchestrator

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/compozy/release-dispatch/internal/domain"
)

// versionRegex matches semantic versions with optional 'v' prefix
var versionRegex = regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?(\+[a-zA-Z0-9.]+)?$`)

// ValidateVersion validates a semantic version string.
func ValidateVersion(version string) error {
	if version == "" {
		return fmt.Errorf("version cannot be empty")
	}
	if !versionRegex.MatchString(version) {
		return fmt.Errorf("invalid version format: %s (expected: v1.2.3 or 1.2.3)", version)
	}
	return nil
}

// ValidateReleaseType validates the dispatch input. An empty value selects auto.
func ValidateReleaseType(input string) (domain.ReleaseType, error) {
	rt, err := domain.ParseReleaseType(input)
	if err != nil {
		return "", fmt.Errorf("invalid release_type input: %w", err)
	}
	return rt, nil
}

// ValidateEnvironmentVariables checks for required environment variables.
func ValidateEnvironmentVariables(requiredVars []string) error {
	var missing []string
	for _, v := range requiredVars {
		if value := os.Getenv(v); value == "" {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}
