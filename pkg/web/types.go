// Package web provides the HTTP request and response types for the REST API.
package web

// CreateParameterRequest is the body for adding a catalog parameter.
type CreateParameterRequest struct {
	Key          string `json:"key"           validate:"required,min=1,max=100"`
	Datatype     string `json:"datatype"      validate:"required"`
	DefaultValue string `json:"default_value"`
	CreatedBy    string `json:"created_by"`
}

// UpdateParameterRequest changes a parameter's default value.
type UpdateParameterRequest struct {
	DefaultValue string `json:"default_value"`
}

// CreateFamilyRequest is the body for registering a node family.
type CreateFamilyRequest struct {
	Name        string `json:"name"        validate:"required,min=1,max=255"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
}

// UpdateFamilyRequest supports partial updates; renaming is rejected once
// the family has versions.
type UpdateFamilyRequest struct {
	Name        *string `json:"name,omitempty"        validate:"omitempty,min=1,max=255"`
	Description *string `json:"description,omitempty"`
}

// DeclareRelationshipRequest declares a child family of a parent.
type DeclareRelationshipRequest struct {
	ChildID string `json:"child_id" validate:"required"`
	Order   int    `json:"order"`
}

// CreateVersionRequest creates a draft from a source version. An empty
// source defaults to the family's published version.
type CreateVersionRequest struct {
	SourceVersionID string `json:"source_version_id"`
	CreatedBy       string `json:"created_by"`
}

// SeedVersionRequest creates a family's first version out of band.
type SeedVersionRequest struct {
	ScriptRef string `json:"script_ref"`
	CreatedBy string `json:"created_by"`
}

// RollbackRequest republishes an earlier version by number.
type RollbackRequest struct {
	TargetVersion int `json:"target_version" validate:"required,min=1"`
}

// LinkSubversionRequest attaches a published child version.
type LinkSubversionRequest struct {
	ChildVersionID string `json:"child_version_id" validate:"required"`
	Order          int    `json:"order"`
}

// SetValueRequest pins a parameter value on a version or subnode.
type SetValueRequest struct {
	Value string `json:"value"`
}

// UpdateScriptRequest changes a draft's script reference.
type UpdateScriptRequest struct {
	ScriptRef string `json:"script_ref" validate:"required"`
}

// CreateSubNodeRequest starts a new subnode lineage.
type CreateSubNodeRequest struct {
	Name        string `json:"name"        validate:"required,min=1,max=255"`
	Description string `json:"description"`
}

// CreateSubNodeVersionRequest appends a version to a lineage.
type CreateSubNodeVersionRequest struct {
	Comment string `json:"comment"`
}

// ExecuteRequest starts a run of a published version.
type ExecuteRequest struct {
	SubNodeID   string            `json:"subnode_id,omitempty"`
	Overrides   map[string]string `json:"overrides,omitempty"`
	TriggeredBy string            `json:"triggered_by,omitempty"`
}

// StopRequest marks a running execution stopped.
type StopRequest struct {
	StoppedBy string `json:"stopped_by,omitempty"`
}

// ScheduleRequest registers a cron entry against a family.
type ScheduleRequest struct {
	Schedule    string            `json:"schedule"     validate:"required"`
	SubNodeID   string            `json:"subnode_id,omitempty"`
	Overrides   map[string]string `json:"overrides,omitempty"`
	TriggeredBy string            `json:"triggered_by,omitempty"`
}
