package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
)

// Catalog manages the global parameter catalog. Catalog entries are shared
// by every node family; versions and subnodes reference them by ID.
type Catalog struct {
	persistence persistence.Persistence
}

// NewCatalog creates a new parameter catalog service.
func NewCatalog(persistence persistence.Persistence) *Catalog {
	return &Catalog{persistence: persistence}
}

// CreateParameterInput carries the fields for a new catalog entry.
type CreateParameterInput struct {
	Key          string `json:"key"           validate:"required,min=1,max=100"`
	Datatype     string `json:"datatype"      validate:"required"`
	DefaultValue string `json:"default_value"`
	CreatedBy    string `json:"created_by"`
}

// CreateParameter adds a catalog entry. The key must be unique across the
// catalog and the default value must parse under the declared datatype.
func (c *Catalog) CreateParameter(ctx context.Context, input CreateParameterInput) (*models.Parameter, error) {
	if input.Key == "" {
		return nil, NewServiceError("CreateParameter", "key is empty", ErrParameterKeyRequired)
	}

	parameter := &models.Parameter{
		ID:           uuid.New().String(),
		Key:          input.Key,
		Datatype:     models.ParameterType(input.Datatype),
		DefaultValue: input.DefaultValue,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
		CreatedBy:    input.CreatedBy,
	}

	if err := parameter.Validate(); err != nil {
		return nil, NewServiceError("CreateParameter", "", err)
	}

	if err := c.persistence.Parameters().Save(ctx, parameter); err != nil {
		return nil, fmt.Errorf("failed to save parameter: %w", err)
	}

	return parameter, nil
}

// UpdateDefault changes a parameter's default value after re-checking it
// against the datatype. The key and datatype are frozen after creation.
func (c *Catalog) UpdateDefault(ctx context.Context, id, defaultValue string) (*models.Parameter, error) {
	parameter, err := c.persistence.Parameters().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := parameter.Datatype.Check(defaultValue); err != nil {
		return nil, NewServiceError("UpdateDefault", "", err)
	}

	parameter.DefaultValue = defaultValue

	if err := c.persistence.Parameters().Save(ctx, parameter); err != nil {
		return nil, fmt.Errorf("failed to save parameter: %w", err)
	}

	return parameter, nil
}

// Deactivate soft-disables a catalog entry. Existing attachments keep
// resolving; new attachments are rejected.
func (c *Catalog) Deactivate(ctx context.Context, id string) (*models.Parameter, error) {
	return c.setActive(ctx, id, false)
}

// Activate re-enables a catalog entry.
func (c *Catalog) Activate(ctx context.Context, id string) (*models.Parameter, error) {
	return c.setActive(ctx, id, true)
}

func (c *Catalog) setActive(ctx context.Context, id string, active bool) (*models.Parameter, error) {
	parameter, err := c.persistence.Parameters().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	parameter.IsActive = active

	if err := c.persistence.Parameters().Save(ctx, parameter); err != nil {
		return nil, fmt.Errorf("failed to save parameter: %w", err)
	}

	return parameter, nil
}

// GetParameter returns a catalog entry by ID.
func (c *Catalog) GetParameter(ctx context.Context, id string) (*models.Parameter, error) {
	return c.persistence.Parameters().GetByID(ctx, id)
}

// GetParameterByKey returns a catalog entry by its unique key.
func (c *Catalog) GetParameterByKey(ctx context.Context, key string) (*models.Parameter, error) {
	return c.persistence.Parameters().GetByKey(ctx, key)
}

// ListParameters returns the catalog sorted by key.
func (c *Catalog) ListParameters(ctx context.Context) ([]*models.Parameter, error) {
	return c.persistence.Parameters().List(ctx)
}

// DeleteParameter removes a catalog entry. An entry still referenced by a
// version attachment or a subnode value is protected; deactivate it instead.
func (c *Catalog) DeleteParameter(ctx context.Context, id string) error {
	versionRefs, err := c.persistence.Versions().CountParameterRefs(ctx, id)
	if err != nil {
		return err
	}

	if versionRefs > 0 {
		return NewServiceError("DeleteParameter",
			fmt.Sprintf("parameter is attached to %d version(s)", versionRefs), ErrParameterInUse)
	}

	valueRefs, err := c.persistence.SubNodes().CountValueRefs(ctx, id)
	if err != nil {
		return err
	}

	if valueRefs > 0 {
		return NewServiceError("DeleteParameter",
			fmt.Sprintf("parameter has values on %d subnode(s)", valueRefs), ErrParameterInUse)
	}

	return c.persistence.Parameters().Delete(ctx, id)
}
