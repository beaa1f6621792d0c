package models

import "time"

// NodeFamily groups the versioned lineage of one logical node implementation.
// IsDeployed is derived state: true iff at least one child version is published.
type NodeFamily struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"        validate:"required,min=1,max=255"`
	Description string    `json:"description"`
	IsDeployed  bool      `json:"is_deployed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CreatedBy   string    `json:"created_by,omitempty"`
}

// FamilyRelationship declares that one family composes another as a sub-node.
// Version-level links (NodeVersionLink) are only legal along a declared
// relationship.
type FamilyRelationship struct {
	ParentID  string    `json:"parent_id" validate:"required"`
	ChildID   string    `json:"child_id"  validate:"required"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
}
