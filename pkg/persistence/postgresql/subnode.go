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

// SubNodeRepository handles subnode database operations, including the
// transactional deploy transition.
type SubNodeRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *SubNodeRepository) Save(ctx context.Context, subnode *models.SubNode) error {
	query := `
		INSERT INTO subnodes (id, family_id, name, version, original_id, is_deployed, description, version_comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			is_deployed = EXCLUDED.is_deployed,
			description = EXCLUDED.description,
			version_comment = EXCLUDED.version_comment,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		subnode.ID,
		subnode.FamilyID,
		subnode.Name,
		subnode.Version,
		subnode.OriginalID,
		subnode.IsDeployed,
		subnode.Description,
		subnode.VersionComment,
		subnode.CreatedAt,
		subnode.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "subnode", subnode.ID,
			uniqueViolation(err, persistence.ErrDuplicateSubNodeName))
	}

	return nil
}

func (r *SubNodeRepository) GetByID(ctx context.Context, id string) (*models.SubNode, error) {
	row := r.db.QueryRowContext(ctx, selectSubNodes+"WHERE id = $1", id)

	subnode, err := scanSubNode(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrSubNodeNotFound
		}

		return nil, err
	}

	return subnode, nil
}

func (r *SubNodeRepository) ListByFamily(ctx context.Context, familyID string) ([]*models.SubNode, error) {
	return r.listWhere(ctx, "WHERE family_id = $1 ORDER BY name, version", familyID)
}

func (r *SubNodeRepository) ListLineage(ctx context.Context, lineageID string) ([]*models.SubNode, error) {
	return r.listWhere(ctx, "WHERE original_id = $1 OR id = $1 ORDER BY version", lineageID)
}

func (r *SubNodeRepository) MaxLineageVersion(ctx context.Context, lineageID string) (int, error) {
	var maxVersion int

	query := "SELECT COALESCE(MAX(version), 0) FROM subnodes WHERE original_id = $1 OR id = $1"

	err := r.db.QueryRowContext(ctx, query, lineageID).Scan(&maxVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to query max lineage version: %w", err)
	}

	return maxVersion, nil
}

func (r *SubNodeRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM subnodes WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete subnode: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrSubNodeNotFound
	}

	return nil
}

// Deploy flips the deployed flag onto the target inside one transaction so
// the at-most-one-deployed-per-lineage invariant holds under concurrency.
func (r *SubNodeRepository) Deploy(ctx context.Context, lineageID, subnodeID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin deploy transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		"UPDATE subnodes SET is_deployed = false, updated_at = NOW() WHERE (original_id = $1 OR id = $1) AND is_deployed",
		lineageID)
	if err != nil {
		return fmt.Errorf("failed to undeploy lineage: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE subnodes SET is_deployed = true, updated_at = NOW() WHERE id = $1",
		subnodeID)
	if err != nil {
		return fmt.Errorf("failed to deploy subnode: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		err = persistence.ErrSubNodeNotFound

		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit deploy transaction: %w", err)
	}

	return nil
}

func (r *SubNodeRepository) Values(ctx context.Context, subnodeID string) ([]*models.SubNodeParameterValue, error) {
	query := "SELECT subnode_id, parameter_id, value FROM subnode_parameter_values WHERE subnode_id = $1"

	rows, err := r.db.QueryContext(ctx, query, subnodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subnode values: %w", err)
	}
	defer r.closeRows(ctx, rows)

	values := make([]*models.SubNodeParameterValue, 0)

	for rows.Next() {
		var value models.SubNodeParameterValue

		err := rows.Scan(&value.SubNodeID, &value.ParameterID, &value.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subnode value: %w", err)
		}

		values = append(values, &value)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subnode values: %w", err)
	}

	return values, nil
}

// CountValueRefs reports how many subnode versions carry a value for the
// catalog parameter.
func (r *SubNodeRepository) CountValueRefs(ctx context.Context, parameterID string) (int, error) {
	var count int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM subnode_parameter_values WHERE parameter_id = $1", parameterID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count value references: %w", err)
	}

	return count, nil
}

func (r *SubNodeRepository) SetValue(ctx context.Context, value *models.SubNodeParameterValue) error {
	query := `
		INSERT INTO subnode_parameter_values (subnode_id, parameter_id, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (subnode_id, parameter_id) DO UPDATE SET value = EXCLUDED.value
	`

	_, err := r.db.ExecContext(ctx, query, value.SubNodeID, value.ParameterID, value.Value)
	if err != nil {
		return persistence.NewStoreError("SetValue", "subnode", value.SubNodeID, err)
	}

	return nil
}

func (r *SubNodeRepository) RemoveValue(ctx context.Context, subnodeID, parameterID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM subnode_parameter_values WHERE subnode_id = $1 AND parameter_id = $2",
		subnodeID, parameterID)
	if err != nil {
		return fmt.Errorf("failed to remove subnode value: %w", err)
	}

	return nil
}

const selectSubNodes = `
	SELECT
		id
	  , family_id
	  , name
	  , version
	  , original_id
	  , is_deployed
	  , description
	  , version_comment
	  , created_at
	  , updated_at
	FROM subnodes
`

func (r *SubNodeRepository) listWhere(ctx context.Context, where string, arg any) ([]*models.SubNode, error) {
	rows, err := r.db.QueryContext(ctx, selectSubNodes+where, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query subnodes: %w", err)
	}
	defer r.closeRows(ctx, rows)

	subnodes := make([]*models.SubNode, 0)

	for rows.Next() {
		subnode, err := scanSubNode(rows)
		if err != nil {
			return nil, err
		}

		subnodes = append(subnodes, subnode)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subnodes: %w", err)
	}

	return subnodes, nil
}

func scanSubNode(row rowScanner) (*models.SubNode, error) {
	var (
		subnode    models.SubNode
		originalID sql.NullString
	)

	err := row.Scan(
		&subnode.ID,
		&subnode.FamilyID,
		&subnode.Name,
		&subnode.Version,
		&originalID,
		&subnode.IsDeployed,
		&subnode.Description,
		&subnode.VersionComment,
		&subnode.CreatedAt,
		&subnode.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan subnode: %w", err)
	}

	if originalID.Valid {
		subnode.OriginalID = &originalID.String
	}

	return &subnode, nil
}

func (r *SubNodeRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
