package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidReleaseType is returned when a release type is outside the allowed set.
var ErrInvalidReleaseType = errors.New("invalid release type")

// ReleaseType selects how the external versioning command bumps the version.
type ReleaseType string

const (
	ReleaseTypeAuto  ReleaseType = "auto"
	ReleaseTypePatch ReleaseType = "patch"
	ReleaseTypeMinor ReleaseType = "minor"
	ReleaseTypeMajor ReleaseType = "major"
)

// DefaultReleaseType lets the release tool infer the bump from commit history.
const DefaultReleaseType = ReleaseTypeAuto

// AllReleaseTypes returns every accepted release type, default first.
func AllReleaseTypes() []ReleaseType {
	return []ReleaseType{
		ReleaseTypeAuto,
		ReleaseTypePatch,
		ReleaseTypeMinor,
		ReleaseTypeMajor,
	}
}

// ParseReleaseType normalizes s into a ReleaseType. Empty input means auto.
func ParseReleaseType(s string) (ReleaseType, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "" {
		return DefaultReleaseType, nil
	}
	for _, rt := range AllReleaseTypes() {
		if string(rt) == normalized {
			return rt, nil
		}
	}
	return "", fmt.Errorf("%w: %q (expected one of %s)", ErrInvalidReleaseType, s, releaseTypeList())
}

// IsAuto reports whether the bump is left to the release tool.
func (rt ReleaseType) IsAuto() bool {
	return rt == ReleaseTypeAuto
}

// Flag returns the override flag passed to the versioning command, or "" for auto.
func (rt ReleaseType) Flag() string {
	if rt.IsAuto() {
		return ""
	}
	return "--" + string(rt)
}

func (rt ReleaseType) String() string {
	return string(rt)
}

func releaseTypeList() string {
	types := AllReleaseTypes()
	names := make([]string, len(types))
	for i, rt := range types {
		names[i] = string(rt)
	}
	return strings.Join(names, ", ")
}
