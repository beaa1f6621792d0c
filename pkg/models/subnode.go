package models

import "time"

// SubNode is a named, independently versioned configuration instance attached
// to a family. Its lineage is identified by the version-1 row: OriginalID is
// nil on v1 and points back to v1 on every later version. At most one version
// per lineage is deployed, and deployed versions are immutable.
type SubNode struct {
	ID             string    `json:"id"`
	FamilyID       string    `json:"family_id" validate:"required"`
	Name           string    `json:"name"      validate:"required,min=1,max=255"`
	Version        int       `json:"version"`
	OriginalID     *string   `json:"original_id,omitempty"`
	IsDeployed     bool      `json:"is_deployed"`
	Description    string    `json:"description,omitempty"`
	VersionComment string    `json:"version_comment,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LineageID returns the identifier shared by every version of this subnode.
func (s *SubNode) LineageID() string {
	if s.OriginalID != nil {
		return *s.OriginalID
	}

	return s.ID
}

// IsEditable reports whether parameter values on this version may change.
// Deployed versions are read-only; callers must create a new version instead.
func (s *SubNode) IsEditable() bool {
	return !s.IsDeployed
}

// SubNodeParameterValue is the instance-level override of a catalog parameter
// for one exact subnode version. Unique per (subnode, parameter).
type SubNodeParameterValue struct {
	SubNodeID   string `json:"subnode_id"   validate:"required"`
	ParameterID string `json:"parameter_id" validate:"required"`
	Value       string `json:"value"`
}
