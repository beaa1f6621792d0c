package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
)

// Versioning manages node families and the version lifecycle: creation from
// a source version, the publish transition, rollback, deletion, and the
// composition links between published versions of related families.
type Versioning struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewVersioning creates a new versioning service.
func NewVersioning(persistence persistence.Persistence, logger *slog.Logger) *Versioning {
	return &Versioning{
		persistence: persistence,
		logger:      logger.With("module", "versioning"),
	}
}

// CreateFamilyInput carries the fields for a new node family.
type CreateFamilyInput struct {
	Name        string `json:"name"        validate:"required,min=1,max=255"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
}

// CreateFamily registers a new node family. Names are unique.
func (v *Versioning) CreateFamily(ctx context.Context, input CreateFamilyInput) (*models.NodeFamily, error) {
	if input.Name == "" {
		return nil, NewServiceError("CreateFamily", "name is empty", ErrFamilyNameRequired)
	}

	now := time.Now().UTC()
	family := &models.NodeFamily{
		ID:          uuid.New().String(),
		Name:        input.Name,
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   input.CreatedBy,
	}

	if err := v.persistence.Families().Save(ctx, family); err != nil {
		return nil, fmt.Errorf("failed to save family: %w", err)
	}

	return family, nil
}

// RenameFamily changes a family's name. Renaming is blocked once the family
// has versions; downstream references use the name as a stable handle.
func (v *Versioning) RenameFamily(ctx context.Context, familyID, name string) (*models.NodeFamily, error) {
	if name == "" {
		return nil, NewServiceError("RenameFamily", "name is empty", ErrFamilyNameRequired)
	}

	family, err := v.persistence.Families().GetByID(ctx, familyID)
	if err != nil {
		return nil, err
	}

	count, err := v.persistence.Versions().CountByFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}

	if count > 0 {
		return nil, NewServiceError("RenameFamily", "family has versions", ErrFamilyHasVersions)
	}

	family.Name = name
	family.UpdatedAt = time.Now().UTC()

	if err := v.persistence.Families().Save(ctx, family); err != nil {
		return nil, fmt.Errorf("failed to save family: %w", err)
	}

	return family, nil
}

// UpdateFamilyDescription changes the description; allowed in any state.
func (v *Versioning) UpdateFamilyDescription(ctx context.Context, familyID, description string) (*models.NodeFamily, error) {
	family, err := v.persistence.Families().GetByID(ctx, familyID)
	if err != nil {
		return nil, err
	}

	family.Description = description
	family.UpdatedAt = time.Now().UTC()

	if err := v.persistence.Families().Save(ctx, family); err != nil {
		return nil, fmt.Errorf("failed to save family: %w", err)
	}

	return family, nil
}

// DeleteFamily removes a family with all of its versions, links, subnodes,
// and relationships.
func (v *Versioning) DeleteFamily(ctx context.Context, familyID string) error {
	return v.persistence.Families().Delete(ctx, familyID)
}

// GetFamily returns a family by ID.
func (v *Versioning) GetFamily(ctx context.Context, familyID string) (*models.NodeFamily, error) {
	return v.persistence.Families().GetByID(ctx, familyID)
}

// ListFamilies returns every family sorted by name.
func (v *Versioning) ListFamilies(ctx context.Context) ([]*models.NodeFamily, error) {
	return v.persistence.Families().List(ctx)
}

// DeclareRelationship records that versions of the parent family may link
// versions of the child family as subversions.
func (v *Versioning) DeclareRelationship(ctx context.Context, parentID, childID string, order int) error {
	if parentID == childID {
		return NewServiceError("DeclareRelationship", "parent and child are the same family", ErrSameFamilyLink)
	}

	if _, err := v.persistence.Families().GetByID(ctx, parentID); err != nil {
		return err
	}

	if _, err := v.persistence.Families().GetByID(ctx, childID); err != nil {
		return err
	}

	return v.persistence.Families().AddRelationship(ctx, &models.FamilyRelationship{
		ParentID:  parentID,
		ChildID:   childID,
		Order:     order,
		CreatedAt: time.Now().UTC(),
	})
}

// Relationships lists the child declarations of a family in order.
func (v *Versioning) Relationships(ctx context.Context, parentID string) ([]*models.FamilyRelationship, error) {
	return v.persistence.Families().Relationships(ctx, parentID)
}

// SeedVersion creates version 1 of a family that has none yet. Cold-start
// families get their first version through this administrative path; the
// regular CreateVersion always copies from an existing version.
func (v *Versioning) SeedVersion(ctx context.Context, familyID, scriptRef, createdBy string) (*models.NodeVersion, error) {
	if _, err := v.persistence.Families().GetByID(ctx, familyID); err != nil {
		return nil, err
	}

	maxVersion, err := v.persistence.Versions().MaxVersion(ctx, familyID)
	if err != nil {
		return nil, err
	}

	version := &models.NodeVersion{
		ID:        uuid.New().String(),
		FamilyID:  familyID,
		Version:   maxVersion + 1,
		State:     models.VersionStateDraft,
		ScriptRef: scriptRef,
		CreatedAt: time.Now().UTC(),
		CreatedBy: createdBy,
	}

	if err := v.persistence.Versions().Save(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to save version: %w", err)
	}

	return version, nil
}

// CreateVersion creates a new draft version by copying an existing one. An
// empty sourceVersionID defaults to the family's published version; when the
// family has neither, the call fails with a precondition error and the family
// must be seeded first.
func (v *Versioning) CreateVersion(ctx context.Context, familyID, sourceVersionID, createdBy string) (*models.NodeVersion, error) {
	if _, err := v.persistence.Families().GetByID(ctx, familyID); err != nil {
		return nil, err
	}

	source, err := v.resolveSource(ctx, familyID, sourceVersionID)
	if err != nil {
		return nil, err
	}

	maxVersion, err := v.persistence.Versions().MaxVersion(ctx, familyID)
	if err != nil {
		return nil, err
	}

	version := &models.NodeVersion{
		ID:        uuid.New().String(),
		FamilyID:  familyID,
		Version:   maxVersion + 1,
		State:     models.VersionStateDraft,
		ScriptRef: source.ScriptRef,
		CreatedAt: time.Now().UTC(),
		CreatedBy: createdBy,
	}

	if err := v.persistence.Versions().Save(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to save version: %w", err)
	}

	if err := v.copyVersionContents(ctx, source.ID, version.ID); err != nil {
		return nil, err
	}

	v.logger.InfoContext(ctx, "created version",
		"family_id", familyID,
		"version", version.Version,
		"source_version", source.Version)

	return version, nil
}

func (v *Versioning) resolveSource(ctx context.Context, familyID, sourceVersionID string) (*models.NodeVersion, error) {
	if sourceVersionID == "" {
		published, err := v.persistence.Versions().GetPublished(ctx, familyID)
		if err != nil {
			if errors.Is(err, persistence.ErrPublishedVersionNotFound) {
				return nil, NewServiceError("CreateVersion",
					"family has no published version and no source was given", ErrNoPublishedVersion)
			}

			return nil, err
		}

		return published, nil
	}

	source, err := v.persistence.Versions().GetByID(ctx, sourceVersionID)
	if err != nil {
		return nil, err
	}

	if source.FamilyID != familyID {
		return nil, NewServiceError("CreateVersion", "source version belongs to another family", ErrInvalidRequest)
	}

	return source, nil
}

// copyVersionContents bulk-copies parameter attachments and outgoing links
// from the source onto the new draft.
func (v *Versioning) copyVersionContents(ctx context.Context, sourceID, targetID string) error {
	parameters, err := v.persistence.Versions().Parameters(ctx, sourceID)
	if err != nil {
		return err
	}

	for _, parameter := range parameters {
		err := v.persistence.Versions().SetParameter(ctx, &models.NodeParameter{
			VersionID:   targetID,
			ParameterID: parameter.ParameterID,
			Value:       parameter.Value,
		})
		if err != nil {
			return err
		}
	}

	links, err := v.persistence.Versions().Links(ctx, sourceID)
	if err != nil {
		return err
	}

	for _, link := range links {
		err := v.persistence.Versions().AddLink(ctx, &models.NodeVersionLink{
			ParentVersionID: targetID,
			ChildVersionID:  link.ChildVersionID,
			Order:           link.Order,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// PublishResult reports the outcome of a publish call.
type PublishResult struct {
	Version *models.NodeVersion `json:"version"`

	// AlreadyPublished is true when the version was published before the
	// call; the call was a no-op.
	AlreadyPublished bool `json:"already_published"`
}

// Publish makes a version the family's single published version. Publishing
// an already-published version is a no-op. Every other published version of
// the family is archived in the same transaction, so at most one published
// version per family can exist at any time.
func (v *Versioning) Publish(ctx context.Context, versionID string) (*PublishResult, error) {
	version, err := v.persistence.Versions().GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}

	if version.State == models.VersionStatePublished {
		return &PublishResult{Version: version, AlreadyPublished: true}, nil
	}

	if version.ScriptRef == "" {
		return nil, NewServiceError("Publish", "script reference is empty", ErrScriptRequired)
	}

	if err := v.persistence.Versions().Publish(ctx, version.FamilyID, version.ID); err != nil {
		return nil, fmt.Errorf("failed to publish version: %w", err)
	}

	published, err := v.persistence.Versions().GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}

	v.logger.InfoContext(ctx, "published version",
		"family_id", published.FamilyID,
		"version", published.Version)

	return &PublishResult{Version: published}, nil
}

// Rollback republishes an earlier version of the family. Only versions that
// have been published before are eligible; the transition is the same
// archive-then-publish as Publish, with a provenance note on the target's
// changelog.
func (v *Versioning) Rollback(ctx context.Context, familyID string, targetVersion int) (*models.NodeVersion, error) {
	target, err := v.persistence.Versions().GetByFamilyVersion(ctx, familyID, targetVersion)
	if err != nil {
		return nil, err
	}

	if !target.State.EligibleForRollback() {
		return nil, NewServiceError("Rollback",
			fmt.Sprintf("version %d is %s", targetVersion, target.State), ErrRollbackIneligible)
	}

	if err := v.persistence.Versions().Publish(ctx, familyID, target.ID); err != nil {
		return nil, fmt.Errorf("failed to publish rollback target: %w", err)
	}

	// The note lands only after the transition went through; a failed
	// rollback leaves the changelog untouched.
	published, err := v.persistence.Versions().GetByID(ctx, target.ID)
	if err != nil {
		return nil, err
	}

	note := fmt.Sprintf("rolled back to on %s", time.Now().UTC().Format(time.RFC3339))
	if published.Changelog != "" {
		published.Changelog += "\n"
	}

	published.Changelog += note

	if err := v.persistence.Versions().Save(ctx, published); err != nil {
		return nil, fmt.Errorf("failed to save changelog: %w", err)
	}

	v.logger.InfoContext(ctx, "rolled back family",
		"family_id", familyID,
		"target_version", targetVersion)

	return published, nil
}

// DeleteVersion removes a draft version. Published versions, the family's
// only version, and versions with execution records are protected.
func (v *Versioning) DeleteVersion(ctx context.Context, versionID string) error {
	version, err := v.persistence.Versions().GetByID(ctx, versionID)
	if err != nil {
		return err
	}

	if version.State == models.VersionStatePublished {
		return NewServiceError("DeleteVersion", "version is published", ErrCannotDeletePublished)
	}

	count, err := v.persistence.Versions().CountByFamily(ctx, version.FamilyID)
	if err != nil {
		return err
	}

	if count <= 1 {
		return NewServiceError("DeleteVersion", "version is the family's only version", ErrCannotDeleteOnly)
	}

	if version.State != models.VersionStateDraft {
		return NewServiceError("DeleteVersion", "only drafts can be deleted", ErrVersionNotDraft)
	}

	executions, err := v.persistence.Executions().ListByVersion(ctx, versionID)
	if err != nil {
		return err
	}

	if len(executions) > 0 {
		return NewServiceError("DeleteVersion", "version has executions", ErrVersionHasExecutions)
	}

	return v.persistence.Versions().Delete(ctx, versionID)
}

// LinkSubversion attaches a published child version to a parent version.
// The families must differ, the parent family must declare the child family,
// and the child must be published.
func (v *Versioning) LinkSubversion(ctx context.Context, parentVersionID, childVersionID string, order int) error {
	parent, err := v.persistence.Versions().GetByID(ctx, parentVersionID)
	if err != nil {
		return err
	}

	child, err := v.persistence.Versions().GetByID(ctx, childVersionID)
	if err != nil {
		return err
	}

	if parent.FamilyID == child.FamilyID {
		return NewServiceError("LinkSubversion", "parent and child share a family", ErrSameFamilyLink)
	}

	declared, err := v.persistence.Families().HasRelationship(ctx, parent.FamilyID, child.FamilyID)
	if err != nil {
		return err
	}

	if !declared {
		return NewServiceError("LinkSubversion", "families are not related", ErrNoFamilyRelationship)
	}

	if child.State != models.VersionStatePublished {
		return NewServiceError("LinkSubversion",
			fmt.Sprintf("child version is %s", child.State), ErrChildNotPublished)
	}

	return v.persistence.Versions().AddLink(ctx, &models.NodeVersionLink{
		ParentVersionID: parentVersionID,
		ChildVersionID:  childVersionID,
		Order:           order,
	})
}

// SetParameter attaches a catalog parameter to a draft version, or updates
// the pinned value. The value must parse under the parameter's datatype.
func (v *Versioning) SetParameter(ctx context.Context, versionID, parameterID, value string) error {
	version, err := v.persistence.Versions().GetByID(ctx, versionID)
	if err != nil {
		return err
	}

	if version.State != models.VersionStateDraft {
		return NewServiceError("SetParameter", "version is not a draft", ErrVersionNotDraft)
	}

	parameter, err := v.persistence.Parameters().GetByID(ctx, parameterID)
	if err != nil {
		return err
	}

	if !parameter.IsActive {
		return NewServiceError("SetParameter", "parameter is deactivated", ErrParameterDeactivated)
	}

	if err := parameter.Datatype.Check(value); err != nil {
		return NewServiceError("SetParameter", "", err)
	}

	return v.persistence.Versions().SetParameter(ctx, &models.NodeParameter{
		VersionID:   versionID,
		ParameterID: parameterID,
		Value:       value,
	})
}

// RemoveParameter detaches a catalog parameter from a draft version.
func (v *Versioning) RemoveParameter(ctx context.Context, versionID, parameterID string) error {
	version, err := v.persistence.Versions().GetByID(ctx, versionID)
	if err != nil {
		return err
	}

	if version.State != models.VersionStateDraft {
		return NewServiceError("RemoveParameter", "version is not a draft", ErrVersionNotDraft)
	}

	return v.persistence.Versions().RemoveParameter(ctx, versionID, parameterID)
}

// UpdateScript changes a draft's script reference.
func (v *Versioning) UpdateScript(ctx context.Context, versionID, scriptRef string) (*models.NodeVersion, error) {
	version, err := v.persistence.Versions().GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}

	if version.State != models.VersionStateDraft {
		return nil, NewServiceError("UpdateScript", "version is not a draft", ErrVersionNotDraft)
	}

	version.ScriptRef = scriptRef

	if err := v.persistence.Versions().Save(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to save version: %w", err)
	}

	return version, nil
}

// GetVersion returns a version by ID.
func (v *Versioning) GetVersion(ctx context.Context, versionID string) (*models.NodeVersion, error) {
	return v.persistence.Versions().GetByID(ctx, versionID)
}

// GetPublished returns the family's published version.
func (v *Versioning) GetPublished(ctx context.Context, familyID string) (*models.NodeVersion, error) {
	return v.persistence.Versions().GetPublished(ctx, familyID)
}

// ListVersions returns a family's versions, newest first.
func (v *Versioning) ListVersions(ctx context.Context, familyID string) ([]*models.NodeVersion, error) {
	return v.persistence.Versions().ListByFamily(ctx, familyID)
}

// Links returns the outgoing subversion links of a version in order.
func (v *Versioning) Links(ctx context.Context, versionID string) ([]*models.NodeVersionLink, error) {
	return v.persistence.Versions().Links(ctx, versionID)
}
