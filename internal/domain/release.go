package domain

// Release holds what a single dispatch did to the repository.

type Release struct {
	Type        ReleaseType
	Version     *Version
	PreviousTag string
	TagName     string
	HeadBefore  string
	HeadAfter   string
	Published   bool
}

// Bumped reports whether the versioning command produced a new tag.
func (r *Release) Bumped() bool {
	return r.TagName != "" && r.TagName != r.PreviousTag
}

// Committed reports whether the versioning command moved HEAD.
func (r *Release) Committed() bool {
	return r.HeadAfter != "" && r.HeadAfter != r.HeadBefore
}
