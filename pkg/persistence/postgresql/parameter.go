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

// ParameterRepository handles catalog parameter database operations.
type ParameterRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *ParameterRepository) Save(ctx context.Context, parameter *models.Parameter) error {
	query := `
		INSERT INTO parameters (id, key, datatype, default_value, is_active, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			key = EXCLUDED.key,
			datatype = EXCLUDED.datatype,
			default_value = EXCLUDED.default_value,
			is_active = EXCLUDED.is_active
	`

	_, err := r.db.ExecContext(ctx, query,
		parameter.ID,
		parameter.Key,
		string(parameter.Datatype),
		parameter.DefaultValue,
		parameter.IsActive,
		parameter.CreatedAt,
		parameter.CreatedBy,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "parameter", parameter.ID,
			uniqueViolation(err, persistence.ErrDuplicateParameterKey))
	}

	return nil
}

func (r *ParameterRepository) GetByID(ctx context.Context, id string) (*models.Parameter, error) {
	return r.getOne(ctx, "WHERE id = $1", id)
}

func (r *ParameterRepository) GetByKey(ctx context.Context, key string) (*models.Parameter, error) {
	return r.getOne(ctx, "WHERE key = $1", key)
}

func (r *ParameterRepository) List(ctx context.Context) ([]*models.Parameter, error) {
	rows, err := r.db.QueryContext(ctx, selectParameters+" ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to query parameters: %w", err)
	}
	defer r.closeRows(ctx, rows)

	parameters := make([]*models.Parameter, 0)

	for rows.Next() {
		parameter, err := scanParameter(rows)
		if err != nil {
			return nil, err
		}

		parameters = append(parameters, parameter)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parameters: %w", err)
	}

	return parameters, nil
}

func (r *ParameterRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM parameters WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete parameter: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrParameterNotFound
	}

	return nil
}

const selectParameters = `
	SELECT
		id
	  , key
	  , datatype
	  , default_value
	  , is_active
	  , created_at
	  , COALESCE(created_by, '')
	FROM parameters
`

func (r *ParameterRepository) getOne(ctx context.Context, where string, arg any) (*models.Parameter, error) {
	row := r.db.QueryRowContext(ctx, selectParameters+where, arg)

	parameter, err := scanParameter(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrParameterNotFound
		}

		return nil, err
	}

	return parameter, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParameter(row rowScanner) (*models.Parameter, error) {
	var (
		parameter models.Parameter
		datatype  string
	)

	err := row.Scan(
		&parameter.ID,
		&parameter.Key,
		&datatype,
		&parameter.DefaultValue,
		&parameter.IsActive,
		&parameter.CreatedAt,
		&parameter.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan parameter: %w", err)
	}

	parameter.Datatype = models.ParameterType(datatype)

	return &parameter, nil
}

func (r *ParameterRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
