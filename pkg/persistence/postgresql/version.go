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

// VersionRepository handles node version database operations, including the
// transactional publish transition.
type VersionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *VersionRepository) Save(ctx context.Context, version *models.NodeVersion) error {
	query := `
		INSERT INTO node_versions (id, family_id, version, state, script_ref, changelog, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			script_ref = EXCLUDED.script_ref,
			changelog = EXCLUDED.changelog
	`

	_, err := r.db.ExecContext(ctx, query,
		version.ID,
		version.FamilyID,
		version.Version,
		string(version.State),
		version.ScriptRef,
		version.Changelog,
		version.CreatedAt,
		version.CreatedBy,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "version", version.ID, err)
	}

	return nil
}

func (r *VersionRepository) GetByID(ctx context.Context, id string) (*models.NodeVersion, error) {
	return r.getOne(ctx, "WHERE id = $1", id)
}

func (r *VersionRepository) GetByFamilyVersion(ctx context.Context, familyID string, number int) (*models.NodeVersion, error) {
	row := r.db.QueryRowContext(ctx, selectVersions+"WHERE family_id = $1 AND version = $2", familyID, number)

	return r.scanOne(row)
}

func (r *VersionRepository) ListByFamily(ctx context.Context, familyID string) ([]*models.NodeVersion, error) {
	rows, err := r.db.QueryContext(ctx, selectVersions+"WHERE family_id = $1 ORDER BY version DESC", familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	defer r.closeRows(ctx, rows)

	versions := make([]*models.NodeVersion, 0)

	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}

		versions = append(versions, version)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}

	return versions, nil
}

func (r *VersionRepository) GetPublished(ctx context.Context, familyID string) (*models.NodeVersion, error) {
	row := r.db.QueryRowContext(ctx, selectVersions+"WHERE family_id = $1 AND state = 'published'", familyID)

	version, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrPublishedVersionNotFound
		}

		return nil, err
	}

	return version, nil
}

func (r *VersionRepository) MaxVersion(ctx context.Context, familyID string) (int, error) {
	var maxVersion int

	query := "SELECT COALESCE(MAX(version), 0) FROM node_versions WHERE family_id = $1"

	err := r.db.QueryRowContext(ctx, query, familyID).Scan(&maxVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to query max version: %w", err)
	}

	return maxVersion, nil
}

func (r *VersionRepository) CountByFamily(ctx context.Context, familyID string) (int, error) {
	var count int

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM node_versions WHERE family_id = $1", familyID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count versions: %w", err)
	}

	return count, nil
}

func (r *VersionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM node_versions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete version: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrVersionNotFound
	}

	return nil
}

// Publish performs the archive-then-publish transition in one transaction.
// The family row is locked first so concurrent publishes on the same family
// serialize; at most one version per family can end up published.
func (r *VersionRepository) Publish(ctx context.Context, familyID, versionID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin publish transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var lockedID string

	err = tx.QueryRowContext(ctx, "SELECT id FROM node_families WHERE id = $1 FOR UPDATE", familyID).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = persistence.ErrFamilyNotFound
		}

		return err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE node_versions SET state = 'archived' WHERE family_id = $1 AND state = 'published' AND id <> $2",
		familyID, versionID)
	if err != nil {
		return fmt.Errorf("failed to archive published versions: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE node_versions SET state = 'published' WHERE id = $1 AND family_id = $2",
		versionID, familyID)
	if err != nil {
		return fmt.Errorf("failed to publish version: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		err = persistence.ErrVersionNotFound

		return err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE node_families SET is_deployed = true, updated_at = NOW() WHERE id = $1",
		familyID)
	if err != nil {
		return fmt.Errorf("failed to update family deployment flag: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit publish transaction: %w", err)
	}

	return nil
}

func (r *VersionRepository) Parameters(ctx context.Context, versionID string) ([]*models.NodeParameter, error) {
	query := "SELECT version_id, parameter_id, value FROM node_parameters WHERE version_id = $1"

	rows, err := r.db.QueryContext(ctx, query, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query version parameters: %w", err)
	}
	defer r.closeRows(ctx, rows)

	params := make([]*models.NodeParameter, 0)

	for rows.Next() {
		var param models.NodeParameter

		err := rows.Scan(&param.VersionID, &param.ParameterID, &param.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version parameter: %w", err)
		}

		params = append(params, &param)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating version parameters: %w", err)
	}

	return params, nil
}

// CountParameterRefs reports how many versions attach the catalog parameter.
func (r *VersionRepository) CountParameterRefs(ctx context.Context, parameterID string) (int, error) {
	var count int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM node_parameters WHERE parameter_id = $1", parameterID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count parameter references: %w", err)
	}

	return count, nil
}

func (r *VersionRepository) SetParameter(ctx context.Context, param *models.NodeParameter) error {
	query := `
		INSERT INTO node_parameters (version_id, parameter_id, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (version_id, parameter_id) DO UPDATE SET value = EXCLUDED.value
	`

	_, err := r.db.ExecContext(ctx, query, param.VersionID, param.ParameterID, param.Value)
	if err != nil {
		return persistence.NewStoreError("SetParameter", "version", param.VersionID, err)
	}

	return nil
}

func (r *VersionRepository) RemoveParameter(ctx context.Context, versionID, parameterID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM node_parameters WHERE version_id = $1 AND parameter_id = $2",
		versionID, parameterID)
	if err != nil {
		return fmt.Errorf("failed to remove version parameter: %w", err)
	}

	return nil
}

func (r *VersionRepository) Links(ctx context.Context, versionID string) ([]*models.NodeVersionLink, error) {
	query := `
		SELECT parent_version_id, child_version_id, "order"
		FROM node_version_links
		WHERE parent_version_id = $1
		ORDER BY "order"
	`

	rows, err := r.db.QueryContext(ctx, query, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query version links: %w", err)
	}
	defer r.closeRows(ctx, rows)

	links := make([]*models.NodeVersionLink, 0)

	for rows.Next() {
		var link models.NodeVersionLink

		err := rows.Scan(&link.ParentVersionID, &link.ChildVersionID, &link.Order)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version link: %w", err)
		}

		links = append(links, &link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating version links: %w", err)
	}

	return links, nil
}

func (r *VersionRepository) AddLink(ctx context.Context, link *models.NodeVersionLink) error {
	query := `
		INSERT INTO node_version_links (parent_version_id, child_version_id, "order")
		VALUES ($1, $2, $3)
	`

	_, err := r.db.ExecContext(ctx, query, link.ParentVersionID, link.ChildVersionID, link.Order)
	if err != nil {
		return persistence.NewStoreError("AddLink", "version", link.ParentVersionID,
			uniqueViolation(err, persistence.ErrDuplicateLink))
	}

	return nil
}

const selectVersions = `
	SELECT
		id
	  , family_id
	  , version
	  , state
	  , script_ref
	  , changelog
	  , created_at
	  , COALESCE(created_by, '')
	FROM node_versions
`

func (r *VersionRepository) getOne(ctx context.Context, where string, arg any) (*models.NodeVersion, error) {
	row := r.db.QueryRowContext(ctx, selectVersions+where, arg)

	return r.scanOne(row)
}

func (r *VersionRepository) scanOne(row rowScanner) (*models.NodeVersion, error) {
	version, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrVersionNotFound
		}

		return nil, err
	}

	return version, nil
}

func scanVersion(row rowScanner) (*models.NodeVersion, error) {
	var (
		version models.NodeVersion
		state   string
	)

	err := row.Scan(
		&version.ID,
		&version.FamilyID,
		&version.Version,
		&state,
		&version.ScriptRef,
		&version.Changelog,
		&version.CreatedAt,
		&version.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan version: %w", err)
	}

	version.State = models.VersionState(state)

	return &version, nil
}

func (r *VersionRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
