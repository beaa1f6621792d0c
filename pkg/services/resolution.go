package services

import (
	"context"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
	"github.com/nodeflow/nodeflow/pkg/resolver"
)

// Resolver loads the rows a resolution needs and delegates the cascade to
// the pure resolver package.
type Resolver struct {
	persistence persistence.Persistence
}

// NewResolver creates a new resolution service.
func NewResolver(persistence persistence.Persistence) *Resolver {
	return &Resolver{persistence: persistence}
}

// ResolveVersion returns the effective parameter map for a version, optionally
// layered with a subnode's values. An empty subnodeID resolves the bare
// version.
func (r *Resolver) ResolveVersion(ctx context.Context, versionID, subnodeID string) (map[string]string, error) {
	input, err := r.load(ctx, versionID, subnodeID)
	if err != nil {
		return nil, err
	}

	return resolver.Resolve(*input), nil
}

// AnnotatedVersion resolves like ResolveVersion and reports which cascade
// level supplied each value.
func (r *Resolver) AnnotatedVersion(ctx context.Context, versionID, subnodeID string) ([]resolver.Value, error) {
	input, err := r.load(ctx, versionID, subnodeID)
	if err != nil {
		return nil, err
	}

	return resolver.Annotated(*input), nil
}

// CoercedVersion resolves and converts every value to its datatype's native
// representation; the runner feeds these to scripts.
func (r *Resolver) CoercedVersion(ctx context.Context, versionID, subnodeID string) (map[string]any, error) {
	input, err := r.load(ctx, versionID, subnodeID)
	if err != nil {
		return nil, err
	}

	return resolver.Coerced(*input)
}

func (r *Resolver) load(ctx context.Context, versionID, subnodeID string) (*resolver.Input, error) {
	version, err := r.persistence.Versions().GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}

	catalog, err := r.persistence.Parameters().List(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Parameter, len(catalog))
	for _, parameter := range catalog {
		byID[parameter.ID] = parameter
	}

	versionParams, err := r.persistence.Versions().Parameters(ctx, versionID)
	if err != nil {
		return nil, err
	}

	input := &resolver.Input{
		Parameters:    byID,
		VersionParams: versionParams,
	}

	if subnodeID != "" {
		subnode, err := r.persistence.SubNodes().GetByID(ctx, subnodeID)
		if err != nil {
			return nil, err
		}

		if subnode.FamilyID != version.FamilyID {
			return nil, NewServiceError("Resolve", "subnode belongs to another family", ErrInvalidRequest)
		}

		values, err := r.persistence.SubNodes().Values(ctx, subnodeID)
		if err != nil {
			return nil, err
		}

		input.SubNodeValues = values
	}

	return input, nil
}
