package file

import (
	"context"
	"sort"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
)

const kindExecution = "executions"

// ExecutionRepository stores execution records. The store lock makes log
// appends sequential per execution; the write hits disk before returning, so
// durability precedes any broadcast.
type ExecutionRepository struct {
	store *store
}

func (r *ExecutionRepository) Create(ctx context.Context, execution *models.NodeExecution) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(kindExecution, execution.ID, execution)
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.NodeExecution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var execution models.NodeExecution
	if err := r.store.read(kindExecution, id, &execution, persistence.ErrExecutionNotFound); err != nil {
		return nil, err
	}

	return &execution, nil
}

func (r *ExecutionRepository) ListByVersion(ctx context.Context, versionID string) ([]*models.NodeExecution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids, err := r.store.ids(kindExecution)
	if err != nil {
		return nil, err
	}

	executions := make([]*models.NodeExecution, 0)

	for _, id := range ids {
		var execution models.NodeExecution
		if err := r.store.read(kindExecution, id, &execution, persistence.ErrExecutionNotFound); err != nil {
			return nil, err
		}

		if execution.VersionID == versionID {
			executions = append(executions, &execution)
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	return executions, nil
}

// Update persists the status, completion time, and artifacts. The log column
// is owned by AppendLog so a stale in-memory copy cannot clobber it. A record
// already in a terminal state is never transitioned again; the caller gets
// ErrExecutionFinished instead. The check happens under the store lock, so a
// concurrent stop and a late completion cannot both land.
func (r *ExecutionRepository) Update(ctx context.Context, execution *models.NodeExecution) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var current models.NodeExecution
	if err := r.store.read(kindExecution, execution.ID, &current, persistence.ErrExecutionNotFound); err != nil {
		return err
	}

	if current.Status.IsTerminal() {
		return persistence.ErrExecutionFinished
	}

	current.Status = execution.Status
	current.CompletedAt = execution.CompletedAt
	current.Artifacts = execution.Artifacts

	return r.store.write(kindExecution, execution.ID, &current)
}

func (r *ExecutionRepository) AppendLog(ctx context.Context, executionID, line string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var execution models.NodeExecution
	if err := r.store.read(kindExecution, executionID, &execution, persistence.ErrExecutionNotFound); err != nil {
		return err
	}

	execution.Log += line

	return r.store.write(kindExecution, executionID, &execution)
}
