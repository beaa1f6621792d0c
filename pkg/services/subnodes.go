package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
)

// SubNodes manages subnode instances: named parameter configurations of a
// family that version independently of the family's script versions.
type SubNodes struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewSubNodes creates a new subnode service.
func NewSubNodes(persistence persistence.Persistence, logger *slog.Logger) *SubNodes {
	return &SubNodes{
		persistence: persistence,
		logger:      logger.With("module", "subnodes"),
	}
}

// CreateSubNodeInput carries the fields for a new subnode lineage.
type CreateSubNodeInput struct {
	FamilyID    string `json:"family_id"   validate:"required"`
	Name        string `json:"name"        validate:"required,min=1,max=255"`
	Description string `json:"description"`
}

// Create starts a new lineage at version 1. The (family, name, version)
// triple is unique.
func (s *SubNodes) Create(ctx context.Context, input CreateSubNodeInput) (*models.SubNode, error) {
	if input.Name == "" {
		return nil, NewServiceError("Create", "name is empty", ErrSubNodeNameRequired)
	}

	if _, err := s.persistence.Families().GetByID(ctx, input.FamilyID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	subnode := &models.SubNode{
		ID:          uuid.New().String(),
		FamilyID:    input.FamilyID,
		Name:        input.Name,
		Version:     1,
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.persistence.SubNodes().Save(ctx, subnode); err != nil {
		return nil, fmt.Errorf("failed to save subnode: %w", err)
	}

	return subnode, nil
}

// CreateNewVersion appends a version to an existing lineage, copying the
// source's parameter values. The new version keeps the lineage's name and
// points back at the version-1 row through OriginalID.
func (s *SubNodes) CreateNewVersion(ctx context.Context, sourceID, comment string) (*models.SubNode, error) {
	source, err := s.persistence.SubNodes().GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	lineageID := source.LineageID()

	maxVersion, err := s.persistence.SubNodes().MaxLineageVersion(ctx, lineageID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	next := &models.SubNode{
		ID:             uuid.New().String(),
		FamilyID:       source.FamilyID,
		Name:           source.Name,
		Version:        maxVersion + 1,
		OriginalID:     &lineageID,
		Description:    source.Description,
		VersionComment: comment,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.persistence.SubNodes().Save(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save subnode version: %w", err)
	}

	values, err := s.persistence.SubNodes().Values(ctx, source.ID)
	if err != nil {
		return nil, err
	}

	for _, value := range values {
		err := s.persistence.SubNodes().SetValue(ctx, &models.SubNodeParameterValue{
			SubNodeID:   next.ID,
			ParameterID: value.ParameterID,
			Value:       value.Value,
		})
		if err != nil {
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "created subnode version",
		"lineage_id", lineageID,
		"version", next.Version)

	return next, nil
}

// Deploy makes a subnode version the lineage's single deployed version and
// freezes it. Any previously deployed version of the lineage is undeployed in
// the same transition.
func (s *SubNodes) Deploy(ctx context.Context, subnodeID string) (*models.SubNode, error) {
	subnode, err := s.persistence.SubNodes().GetByID(ctx, subnodeID)
	if err != nil {
		return nil, err
	}

	if subnode.IsDeployed {
		return subnode, nil
	}

	if err := s.persistence.SubNodes().Deploy(ctx, subnode.LineageID(), subnode.ID); err != nil {
		return nil, fmt.Errorf("failed to deploy subnode: %w", err)
	}

	s.logger.InfoContext(ctx, "deployed subnode",
		"lineage_id", subnode.LineageID(),
		"version", subnode.Version)

	return s.persistence.SubNodes().GetByID(ctx, subnodeID)
}

// Undeploy lifts the deployed flag, making the version editable again.
func (s *SubNodes) Undeploy(ctx context.Context, subnodeID string) (*models.SubNode, error) {
	subnode, err := s.persistence.SubNodes().GetByID(ctx, subnodeID)
	if err != nil {
		return nil, err
	}

	if !subnode.IsDeployed {
		return subnode, nil
	}

	subnode.IsDeployed = false
	subnode.UpdatedAt = time.Now().UTC()

	if err := s.persistence.SubNodes().Save(ctx, subnode); err != nil {
		return nil, fmt.Errorf("failed to save subnode: %w", err)
	}

	return subnode, nil
}

// SetValue sets an instance-level parameter value. Deployed versions are
// immutable; the parameter must be active and the value must parse under
// its datatype.
// A value for a parameter the version never attached is accepted: the
// override surfaces the parameter in resolution on its own.
func (s *SubNodes) SetValue(ctx context.Context, subnodeID, parameterID, value string) error {
	subnode, err := s.persistence.SubNodes().GetByID(ctx, subnodeID)
	if err != nil {
		return err
	}

	if !subnode.IsEditable() {
		return NewServiceError("SetValue", "subnode is deployed", ErrSubNodeDeployed)
	}

	parameter, err := s.persistence.Parameters().GetByID(ctx, parameterID)
	if err != nil {
		return err
	}

	if !parameter.IsActive {
		return NewServiceError("SetValue", "parameter is deactivated", ErrParameterDeactivated)
	}

	if err := parameter.Datatype.Check(value); err != nil {
		return NewServiceError("SetValue", "", err)
	}

	return s.persistence.SubNodes().SetValue(ctx, &models.SubNodeParameterValue{
		SubNodeID:   subnodeID,
		ParameterID: parameterID,
		Value:       value,
	})
}

// RemoveValue drops an instance-level value, restoring the lower cascade
// levels for that parameter.
func (s *SubNodes) RemoveValue(ctx context.Context, subnodeID, parameterID string) error {
	subnode, err := s.persistence.SubNodes().GetByID(ctx, subnodeID)
	if err != nil {
		return err
	}

	if !subnode.IsEditable() {
		return NewServiceError("RemoveValue", "subnode is deployed", ErrSubNodeDeployed)
	}

	return s.persistence.SubNodes().RemoveValue(ctx, subnodeID, parameterID)
}

// Get returns a subnode version by ID.
func (s *SubNodes) Get(ctx context.Context, subnodeID string) (*models.SubNode, error) {
	return s.persistence.SubNodes().GetByID(ctx, subnodeID)
}

// ListByFamily returns every subnode version of a family.
func (s *SubNodes) ListByFamily(ctx context.Context, familyID string) ([]*models.SubNode, error) {
	return s.persistence.SubNodes().ListByFamily(ctx, familyID)
}

// ListLineage returns every version of a lineage in ascending order.
func (s *SubNodes) ListLineage(ctx context.Context, lineageID string) ([]*models.SubNode, error) {
	return s.persistence.SubNodes().ListLineage(ctx, lineageID)
}

// Values returns the instance-level values of a subnode version.
func (s *SubNodes) Values(ctx context.Context, subnodeID string) ([]*models.SubNodeParameterValue, error) {
	return s.persistence.SubNodes().Values(ctx, subnodeID)
}

// Delete removes a subnode version. Deployed versions are protected.
func (s *SubNodes) Delete(ctx context.Context, subnodeID string) error {
	subnode, err := s.persistence.SubNodes().GetByID(ctx, subnodeID)
	if err != nil {
		return err
	}

	if subnode.IsDeployed {
		return NewServiceError("Delete", "subnode is deployed", ErrSubNodeDeployed)
	}

	return s.persistence.SubNodes().Delete(ctx, subnodeID)
}
