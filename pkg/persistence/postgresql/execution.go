package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
)

// ExecutionRepository handles execution record database operations. Update
// never touches the log column; AppendLog owns it.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *ExecutionRepository) Create(ctx context.Context, execution *models.NodeExecution) error {
	artifacts, err := marshalArtifacts(execution.Artifacts)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO node_executions (id, version_id, status, started_at, completed_at, log, triggered_by, artifacts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.VersionID,
		string(execution.Status),
		execution.StartedAt,
		execution.CompletedAt,
		execution.Log,
		execution.TriggeredBy,
		artifacts,
	)
	if err != nil {
		return persistence.NewStoreError("Create", "execution", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.NodeExecution, error) {
	row := r.db.QueryRowContext(ctx, selectExecutions+"WHERE id = $1", id)

	execution, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, err
	}

	return execution, nil
}

func (r *ExecutionRepository) ListByVersion(ctx context.Context, versionID string) ([]*models.NodeExecution, error) {
	rows, err := r.db.QueryContext(ctx, selectExecutions+"WHERE version_id = $1 ORDER BY started_at DESC", versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer r.closeRows(ctx, rows)

	executions := make([]*models.NodeExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

// Update transitions a non-terminal record. The status guard in the WHERE
// clause makes the terminal transition a compare-and-set: a record a
// concurrent stop already settled stays stopped, and the caller gets
// ErrExecutionFinished.
func (r *ExecutionRepository) Update(ctx context.Context, execution *models.NodeExecution) error {
	artifacts, err := marshalArtifacts(execution.Artifacts)
	if err != nil {
		return err
	}

	query := `
		UPDATE node_executions
		SET status = $2, completed_at = $3, artifacts = $4
		WHERE id = $1 AND status IN ('queued', 'running')
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID,
		string(execution.Status),
		execution.CompletedAt,
		artifacts,
	)
	if err != nil {
		return persistence.NewStoreError("Update", "execution", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		var status string

		err := r.db.QueryRowContext(ctx, "SELECT status FROM node_executions WHERE id = $1", execution.ID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ErrExecutionNotFound
		}

		if err != nil {
			return persistence.NewStoreError("Update", "execution", execution.ID, err)
		}

		return persistence.ErrExecutionFinished
	}

	return nil
}

func (r *ExecutionRepository) AppendLog(ctx context.Context, id, line string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE node_executions SET log = log || $2 WHERE id = $1", id, line)
	if err != nil {
		return persistence.NewStoreError("AppendLog", "execution", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrExecutionNotFound
	}

	return nil
}

const selectExecutions = `
	SELECT
		id
	  , version_id
	  , status
	  , started_at
	  , completed_at
	  , log
	  , COALESCE(triggered_by, '')
	  , artifacts
	FROM node_executions
`

func scanExecution(row rowScanner) (*models.NodeExecution, error) {
	var (
		execution   models.NodeExecution
		status      string
		completedAt sql.NullTime
		artifacts   []byte
	)

	err := row.Scan(
		&execution.ID,
		&execution.VersionID,
		&status,
		&execution.StartedAt,
		&completedAt,
		&execution.Log,
		&execution.TriggeredBy,
		&artifacts,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	execution.Status = models.ExecutionStatus(status)

	if completedAt.Valid {
		t := completedAt.Time
		execution.CompletedAt = &t
	}

	if len(artifacts) > 0 {
		if err := json.Unmarshal(artifacts, &execution.Artifacts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal artifacts: %w", err)
		}
	}

	return &execution, nil
}

func marshalArtifacts(artifacts map[string]any) ([]byte, error) {
	if artifacts == nil {
		return nil, nil
	}

	data, err := json.Marshal(artifacts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal artifacts: %w", err)
	}

	return data, nil
}

func (r *ExecutionRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
