package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
)

// FamilyRepository handles node family database operations.
type FamilyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *FamilyRepository) Save(ctx context.Context, family *models.NodeFamily) error {
	query := `
		INSERT INTO node_families (id, name, description, is_deployed, created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			is_deployed = EXCLUDED.is_deployed,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		family.ID,
		family.Name,
		family.Description,
		family.IsDeployed,
		family.CreatedAt,
		family.UpdatedAt,
		family.CreatedBy,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "family", family.ID,
			uniqueViolation(err, persistence.ErrDuplicateFamilyName))
	}

	return nil
}

func (r *FamilyRepository) GetByID(ctx context.Context, id string) (*models.NodeFamily, error) {
	return r.getOne(ctx, "WHERE id = $1", id)
}

func (r *FamilyRepository) GetByName(ctx context.Context, name string) (*models.NodeFamily, error) {
	return r.getOne(ctx, "WHERE name = $1", name)
}

func (r *FamilyRepository) List(ctx context.Context) ([]*models.NodeFamily, error) {
	rows, err := r.db.QueryContext(ctx, selectFamilies+" ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query families: %w", err)
	}
	defer r.closeRows(ctx, rows)

	families := make([]*models.NodeFamily, 0)

	for rows.Next() {
		family, err := scanFamily(rows)
		if err != nil {
			return nil, err
		}

		families = append(families, family)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating families: %w", err)
	}

	return families, nil
}

// Delete removes the family; versions, links, subnodes, and relationships go
// with it via the schema's cascades.
func (r *FamilyRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM node_families WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete family: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrFamilyNotFound
	}

	return nil
}

func (r *FamilyRepository) AddRelationship(ctx context.Context, rel *models.FamilyRelationship) error {
	query := `
		INSERT INTO family_relationships (parent_id, child_id, "order", created_at)
		VALUES ($1, $2, $3, NOW())
	`

	_, err := r.db.ExecContext(ctx, query, rel.ParentID, rel.ChildID, rel.Order)
	if err != nil {
		return persistence.NewStoreError("AddRelationship", "family", rel.ParentID,
			uniqueViolation(err, persistence.ErrDuplicateRelationship))
	}

	return nil
}

func (r *FamilyRepository) Relationships(ctx context.Context, parentID string) ([]*models.FamilyRelationship, error) {
	query := `
		SELECT parent_id, child_id, "order", created_at
		FROM family_relationships
		WHERE parent_id = $1
		ORDER BY "order"
	`

	rows, err := r.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer r.closeRows(ctx, rows)

	rels := make([]*models.FamilyRelationship, 0)

	for rows.Next() {
		var rel models.FamilyRelationship

		err := rows.Scan(&rel.ParentID, &rel.ChildID, &rel.Order, &rel.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}

		rels = append(rels, &rel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relationships: %w", err)
	}

	return rels, nil
}

func (r *FamilyRepository) HasRelationship(ctx context.Context, parentID, childID string) (bool, error) {
	var exists bool

	query := "SELECT EXISTS (SELECT 1 FROM family_relationships WHERE parent_id = $1 AND child_id = $2)"

	err := r.db.QueryRowContext(ctx, query, parentID, childID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query relationship existence: %w", err)
	}

	return exists, nil
}

const selectFamilies = `
	SELECT
		id
	  , name
	  , description
	  , is_deployed
	  , created_at
	  , updated_at
	  , COALESCE(created_by, '')
	FROM node_families
`

func (r *FamilyRepository) getOne(ctx context.Context, where string, arg any) (*models.NodeFamily, error) {
	row := r.db.QueryRowContext(ctx, selectFamilies+where, arg)

	family, err := scanFamily(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrFamilyNotFound
		}

		return nil, err
	}

	return family, nil
}

func scanFamily(row rowScanner) (*models.NodeFamily, error) {
	var family models.NodeFamily

	err := row.Scan(
		&family.ID,
		&family.Name,
		&family.Description,
		&family.IsDeployed,
		&family.CreatedAt,
		&family.UpdatedAt,
		&family.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan family: %w", err)
	}

	return &family, nil
}

func (r *FamilyRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
