package models

import "time"

// VersionState is the lifecycle state of a NodeVersion.
//
// Transitions: draft → published → archived, plus archived → published via
// rollback. published → archived happens only as a side effect of another
// version's publish. Draft is the only deletable state.
type VersionState string

const (
	VersionStateDraft     VersionState = "draft"
	VersionStatePublished VersionState = "published"
	VersionStateArchived  VersionState = "archived"
)

// EligibleForRollback reports whether a version in this state may be the
// target of a rollback. Drafts have never been published and are excluded.
func (s VersionState) EligibleForRollback() bool {
	return s == VersionStatePublished || s == VersionStateArchived
}

// NodeVersion is one snapshot of a family's script and parameter bindings.
// Version numbers are monotonic per family, assigned as max+1 on creation.
// At most one version per family is published at any time.
type NodeVersion struct {
	ID        string       `json:"id"`
	FamilyID  string       `json:"family_id" validate:"required"`
	Version   int          `json:"version"`
	State     VersionState `json:"state"`
	ScriptRef string       `json:"script_ref,omitempty"`
	Changelog string       `json:"changelog,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	CreatedBy string       `json:"created_by,omitempty"`
}

// NodeParameter is the version-level override of a catalog parameter.
// Unique per (version, parameter); absent entries fall back to the
// parameter's default in the resolution cascade.
type NodeParameter struct {
	VersionID   string `json:"version_id"   validate:"required"`
	ParameterID string `json:"parameter_id" validate:"required"`
	Value       string `json:"value"`
}

// NodeVersionLink is a composition edge from a parent version to a published
// child version in a different, related family.
type NodeVersionLink struct {
	ParentVersionID string `json:"parent_version_id" validate:"required"`
	ChildVersionID  string `json:"child_version_id"  validate:"required"`
	Order           int    `json:"order"`
}
