package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence/file"
	"github.com/nodeflow/nodeflow/pkg/runner"
	"github.com/nodeflow/nodeflow/pkg/scripts"
	"github.com/nodeflow/nodeflow/pkg/services"
)

func TestFire(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	versioning := services.NewVersioning(store, logger)
	registry := scripts.NewRegistry()
	ctx := context.Background()

	registry.Register("scripts/nightly", func() *scripts.Unit {
		return &scripts.Unit{
			Entry: func(context.Context, map[string]any, scripts.LogFunc) error { return nil },
		}
	})

	r := runner.NewRunner(runner.Config{
		Persistence: store,
		Resolver:    services.NewResolver(store),
		Provider:    registry,
		Logger:      logger,
	})

	scheduler := NewScheduler(store, r, logger)

	family, err := versioning.CreateFamily(ctx, services.CreateFamilyInput{Name: "nightly"})
	require.NoError(t, err)

	// No published version yet: firing skips without creating a record.
	scheduler.fire(Entry{Schedule: "@daily", FamilyID: family.ID})

	version, err := versioning.SeedVersion(ctx, family.ID, "scripts/nightly", "")
	require.NoError(t, err)
	_, err = versioning.Publish(ctx, version.ID)
	require.NoError(t, err)

	scheduler.fire(Entry{Schedule: "@daily", FamilyID: family.ID})

	require.Eventually(t, func() bool {
		executions, err := store.Executions().ListByVersion(ctx, version.ID)

		return err == nil && len(executions) == 1 && executions[0].Status.IsTerminal()
	}, 2*time.Second, 10*time.Millisecond)

	executions, err := store.Executions().ListByVersion(ctx, version.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, executions[0].Status)
	assert.Equal(t, "scheduler", executions[0].TriggeredBy)
}

func TestAddRejectsBadExpression(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := runner.NewRunner(runner.Config{
		Persistence: store,
		Resolver:    services.NewResolver(store),
		Provider:    scripts.NewRegistry(),
		Logger:      logger,
	})

	scheduler := NewScheduler(store, r, logger)

	_, err := scheduler.Add(Entry{Schedule: "not-a-cron", FamilyID: "f1"})
	require.Error(t, err)

	assert.Empty(t, scheduler.List(), "a rejected expression registers nothing")
}

func TestListAndRemove(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := runner.NewRunner(runner.Config{
		Persistence: store,
		Resolver:    services.NewResolver(store),
		Provider:    scripts.NewRegistry(),
		Logger:      logger,
	})

	scheduler := NewScheduler(store, r, logger)

	first, err := scheduler.Add(Entry{Schedule: "@daily", FamilyID: "f1"})
	require.NoError(t, err)

	second, err := scheduler.Add(Entry{Schedule: "@hourly", FamilyID: "f2"})
	require.NoError(t, err)

	entries := scheduler.List()
	require.Len(t, entries, 2)
	assert.Equal(t, first, entries[0].ID)
	assert.Equal(t, "f1", entries[0].FamilyID)
	assert.Equal(t, second, entries[1].ID)

	assert.True(t, scheduler.Remove(first))
	assert.False(t, scheduler.Remove(first), "removing twice reports the entry gone")

	entries = scheduler.List()
	require.Len(t, entries, 1)
	assert.Equal(t, second, entries[0].ID)
}
