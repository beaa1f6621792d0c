package file_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
	"github.com/nodeflow/nodeflow/pkg/persistence/file"
)

func TestParameterRepository(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	ctx := context.Background()

	parameter := &models.Parameter{
		ID:           "p1",
		Key:          "timeout",
		Datatype:     models.ParameterTypeInteger,
		DefaultValue: "30",
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.Parameters().Save(ctx, parameter))

	loaded, err := store.Parameters().GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "timeout", loaded.Key)

	byKey, err := store.Parameters().GetByKey(ctx, "timeout")
	require.NoError(t, err)
	assert.Equal(t, "p1", byKey.ID)

	// Another row with the same key collides.
	err = store.Parameters().Save(ctx, &models.Parameter{ID: "p2", Key: "timeout", Datatype: models.ParameterTypeString})
	require.Error(t, err)
	assert.True(t, persistence.IsDuplicate(err))

	_, err = store.Parameters().GetByID(ctx, "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsNotFound(err))

	require.NoError(t, store.Parameters().Delete(ctx, "p1"))

	_, err = store.Parameters().GetByID(ctx, "p1")
	assert.True(t, persistence.IsNotFound(err))
}

func TestVersionRepositoryPublish(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Families().Save(ctx, &models.NodeFamily{ID: "f1", Name: "fam"}))

	v1 := &models.NodeVersion{ID: "v1", FamilyID: "f1", Version: 1, State: models.VersionStateDraft, ScriptRef: "s"}
	v2 := &models.NodeVersion{ID: "v2", FamilyID: "f1", Version: 2, State: models.VersionStateDraft, ScriptRef: "s"}
	require.NoError(t, store.Versions().Save(ctx, v1))
	require.NoError(t, store.Versions().Save(ctx, v2))

	_, err := store.Versions().GetPublished(ctx, "f1")
	assert.True(t, persistence.IsNotFound(err))

	require.NoError(t, store.Versions().Publish(ctx, "f1", "v1"))

	published, err := store.Versions().GetPublished(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "v1", published.ID)

	// Publishing v2 archives v1 in the same transition.
	require.NoError(t, store.Versions().Publish(ctx, "f1", "v2"))

	published, err = store.Versions().GetPublished(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "v2", published.ID)

	archived, err := store.Versions().GetByID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, models.VersionStateArchived, archived.State)

	max, err := store.Versions().MaxVersion(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, 2, max)
}

func TestSubNodeRepositoryDeploy(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	ctx := context.Background()

	lineage := "s1"
	v1 := &models.SubNode{ID: "s1", FamilyID: "f1", Name: "shard", Version: 1, IsDeployed: true}
	v2 := &models.SubNode{ID: "s2", FamilyID: "f1", Name: "shard", Version: 2, OriginalID: &lineage}
	require.NoError(t, store.SubNodes().Save(ctx, v1))
	require.NoError(t, store.SubNodes().Save(ctx, v2))

	// Deploying v2 undeploys the rest of the lineage.
	require.NoError(t, store.SubNodes().Deploy(ctx, "s1", "s2"))

	first, err := store.SubNodes().GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, first.IsDeployed)

	second, err := store.SubNodes().GetByID(ctx, "s2")
	require.NoError(t, err)
	assert.True(t, second.IsDeployed)

	max, err := store.SubNodes().MaxLineageVersion(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, max)

	require.NoError(t, store.SubNodes().SetValue(ctx, &models.SubNodeParameterValue{
		SubNodeID:   "s2",
		ParameterID: "p1",
		Value:       "64",
	}))

	values, err := store.SubNodes().Values(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "64", values[0].Value)

	require.NoError(t, store.SubNodes().RemoveValue(ctx, "s2", "p1"))

	values, err = store.SubNodes().Values(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestExecutionRepositoryAppendLog(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	ctx := context.Background()

	execution := &models.NodeExecution{
		ID:        "e1",
		VersionID: "v1",
		Status:    models.ExecutionStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Executions().Create(ctx, execution))

	require.NoError(t, store.Executions().AppendLog(ctx, "e1", "first\n"))
	require.NoError(t, store.Executions().AppendLog(ctx, "e1", "second\n"))

	// Update must not clobber appended log lines.
	execution.MarkCompleted()
	require.NoError(t, store.Executions().Update(ctx, execution))

	loaded, err := store.Executions().GetByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", loaded.Log)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)

	executions, err := store.Executions().ListByVersion(ctx, "v1")
	require.NoError(t, err)
	assert.Len(t, executions, 1)
}

func TestExecutionRepositoryTerminalGuard(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	ctx := context.Background()

	execution := &models.NodeExecution{
		ID:        "e1",
		VersionID: "v1",
		Status:    models.ExecutionStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Executions().Create(ctx, execution))

	stopped := *execution
	stopped.MarkStopped()
	require.NoError(t, store.Executions().Update(ctx, &stopped))

	// A goroutine finishing after the stop must not flip the record back.
	late := *execution
	late.MarkCompleted()
	err := store.Executions().Update(ctx, &late)
	require.ErrorIs(t, err, persistence.ErrExecutionFinished)

	loaded, err := store.Executions().GetByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusStopped, loaded.Status)

	err = store.Executions().Update(ctx, &models.NodeExecution{ID: "missing", Status: models.ExecutionStatusCompleted})
	require.ErrorIs(t, err, persistence.ErrExecutionNotFound)
}
