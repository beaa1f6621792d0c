package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/otelhelper"
	"github.com/nodeflow/nodeflow/pkg/persistence"
	"github.com/nodeflow/nodeflow/pkg/persistence/file"
	"github.com/nodeflow/nodeflow/pkg/scripts"
	"github.com/nodeflow/nodeflow/pkg/services"
)

type fixture struct {
	store      persistence.Persistence
	versioning *services.Versioning
	catalog    *services.Catalog
	subnodes   *services.SubNodes
	registry   *scripts.Registry
	runner     *Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := scripts.NewRegistry()

	f := &fixture{
		store:      store,
		versioning: services.NewVersioning(store, logger),
		catalog:    services.NewCatalog(store),
		subnodes:   services.NewSubNodes(store, logger),
		registry:   registry,
	}

	f.runner = NewRunner(Config{
		Persistence: store,
		Resolver:    services.NewResolver(store),
		Provider:    registry,
		Logger:      logger,
	})

	return f
}

// publishedVersion seeds a family with one published version bound to ref.
func (f *fixture) publishedVersion(t *testing.T, familyName, ref string) *models.NodeVersion {
	t.Helper()
	ctx := context.Background()

	family, err := f.versioning.CreateFamily(ctx, services.CreateFamilyInput{Name: familyName})
	require.NoError(t, err)

	version, err := f.versioning.SeedVersion(ctx, family.ID, ref, "")
	require.NoError(t, err)

	_, err = f.versioning.Publish(ctx, version.ID)
	require.NoError(t, err)

	return version
}

func (f *fixture) waitTerminal(t *testing.T, executionID string) *models.NodeExecution {
	t.Helper()

	var execution *models.NodeExecution

	require.Eventually(t, func() bool {
		var err error

		execution, err = f.store.Executions().GetByID(context.Background(), executionID)

		return err == nil && execution.Status.IsTerminal()
	}, 2*time.Second, 10*time.Millisecond)

	return execution
}

func TestExecute_RequiresPublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	family, err := f.versioning.CreateFamily(ctx, services.CreateFamilyInput{Name: "draft-only"})
	require.NoError(t, err)

	draft, err := f.versioning.SeedVersion(ctx, family.ID, "scripts/x", "")
	require.NoError(t, err)

	_, err = f.runner.Execute(ctx, draft.ID, ExecuteOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrVersionNotPublished)
	assert.True(t, services.IsInvalidStateError(err))
}

func TestExecute_EntryFunction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var (
		mu       sync.Mutex
		received map[string]any
	)

	f.registry.Register("scripts/entry", func() *scripts.Unit {
		return &scripts.Unit{
			Entry: func(_ context.Context, params map[string]any, logf scripts.LogFunc) error {
				mu.Lock()
				received = params
				mu.Unlock()

				logf("hello from entry")

				return nil
			},
		}
	})

	version := f.publishedVersion(t, "entry-family", "scripts/entry")

	execution, err := f.runner.Execute(ctx, version.ID, ExecuteOptions{TriggeredBy: "tester"})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, execution.Status)

	final := f.waitTerminal(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusCompleted, final.Status)
	require.NotNil(t, final.CompletedAt)
	assert.False(t, final.CompletedAt.Before(final.StartedAt))
	assert.Contains(t, final.Log, "hello from entry")
	assert.Equal(t, "tester", final.TriggeredBy)

	mu.Lock()
	defer mu.Unlock()
	assert.NotNil(t, received)
}

// pathJob records the bound Path value at Run time, proving the binding
// happened before the entry point was invoked.
type pathJob struct {
	Path string

	mu       sync.Mutex
	observed string
}

func (j *pathJob) Run() {
	j.mu.Lock()
	j.observed = j.Path
	j.mu.Unlock()
}

func (j *pathJob) snapshot() string {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.observed
}

func TestExecute_ObjectFieldBinding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	instance := &pathJob{}

	f.registry.Register("scripts/object", func() *scripts.Unit {
		return &scripts.Unit{NewObject: func() any { return instance }}
	})

	version := f.publishedVersion(t, "object-family", "scripts/object")

	_, err := f.catalog.CreateParameter(ctx, services.CreateParameterInput{Key: "path", Datatype: "string", DefaultValue: ""})
	require.NoError(t, err)

	execution, err := f.runner.Execute(ctx, version.ID, ExecuteOptions{
		Overrides: map[string]string{"path": "/data"},
	})
	require.NoError(t, err)

	final := f.waitTerminal(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusCompleted, final.Status)
	assert.Equal(t, "/data", instance.snapshot(), "field must be bound before Run")
}

func TestExecute_ScriptError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.registry.Register("scripts/broken", func() *scripts.Unit {
		return &scripts.Unit{
			Entry: func(context.Context, map[string]any, scripts.LogFunc) error {
				return errors.New("disk exploded")
			},
		}
	})

	version := f.publishedVersion(t, "broken-family", "scripts/broken")

	execution, err := f.runner.Execute(ctx, version.ID, ExecuteOptions{})
	require.NoError(t, err, "script errors never propagate to the caller")

	final := f.waitTerminal(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusFailed, final.Status)
	assert.Contains(t, final.Log, "disk exploded")
	require.NotNil(t, final.CompletedAt)
}

func TestExecute_ScriptPanic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.registry.Register("scripts/panicky", func() *scripts.Unit {
		return &scripts.Unit{
			Entry: func(context.Context, map[string]any, scripts.LogFunc) error {
				panic("boom")
			},
		}
	})

	version := f.publishedVersion(t, "panicky-family", "scripts/panicky")

	execution, err := f.runner.Execute(ctx, version.ID, ExecuteOptions{})
	require.NoError(t, err)

	final := f.waitTerminal(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusFailed, final.Status)
	assert.Contains(t, final.Log, "boom")
}

func TestExecute_NoEntryPoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.registry.Register("scripts/empty", func() *scripts.Unit {
		return &scripts.Unit{}
	})

	version := f.publishedVersion(t, "empty-family", "scripts/empty")

	execution, err := f.runner.Execute(ctx, version.ID, ExecuteOptions{})
	require.NoError(t, err)

	final := f.waitTerminal(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusCompleted, final.Status, "missing entry point completes with a warning")
	assert.Contains(t, final.Log, "no entry point found")
}

func TestExecute_MissingScript(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	version := f.publishedVersion(t, "unbound-family", "scripts/never-registered")

	execution, err := f.runner.Execute(ctx, version.ID, ExecuteOptions{})
	require.NoError(t, err)

	final := f.waitTerminal(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusFailed, final.Status)
	assert.Contains(t, final.Log, "failed to load script")
}

func TestExecute_OverrideTypeChecked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.registry.Register("scripts/typed", func() *scripts.Unit {
		return &scripts.Unit{
			Entry: func(context.Context, map[string]any, scripts.LogFunc) error { return nil },
		}
	})

	version := f.publishedVersion(t, "typed-family", "scripts/typed")

	_, err := f.catalog.CreateParameter(ctx, services.CreateParameterInput{Key: "retries", Datatype: "integer", DefaultValue: "3"})
	require.NoError(t, err)

	_, err = f.runner.Execute(ctx, version.ID, ExecuteOptions{
		Overrides: map[string]string{"retries": "several"},
	})
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	release := make(chan struct{})

	f.registry.Register("scripts/slow", func() *scripts.Unit {
		return &scripts.Unit{
			Entry: func(context.Context, map[string]any, scripts.LogFunc) error {
				<-release

				return nil
			},
		}
	})

	version := f.publishedVersion(t, "slow-family", "scripts/slow")

	execution, err := f.runner.Execute(ctx, version.ID, ExecuteOptions{})
	require.NoError(t, err)

	stopped, err := f.runner.Stop(ctx, execution.ID, "operator")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusStopped, stopped.Status)
	require.NotNil(t, stopped.CompletedAt)
	assert.Contains(t, stopped.Log, "manually stopped")

	_, err = f.runner.Stop(ctx, execution.ID, "operator")
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrExecutionNotRunning)

	close(release)
	f.runner.Wait()

	// The goroutine finishing late must not overwrite the stop.
	final, err := f.store.Executions().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusStopped, final.Status)
}

// stopRaceStore interleaves work between the runner's completion write and
// the repository, so the test can land a stop in that window.
type stopRaceStore struct {
	persistence.Persistence
	executions *stopRaceExecutions
}

func (s *stopRaceStore) Executions() persistence.ExecutionRepository {
	return s.executions
}

type stopRaceExecutions struct {
	persistence.ExecutionRepository
	beforeUpdate func(execution *models.NodeExecution)
}

func (r *stopRaceExecutions) Update(ctx context.Context, execution *models.NodeExecution) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate(execution)
	}

	return r.ExecutionRepository.Update(ctx, execution)
}

func TestStop_LateFinishDoesNotOverwrite(t *testing.T) {
	base := file.NewPersistence(t.TempDir())
	executions := &stopRaceExecutions{ExecutionRepository: base.Executions()}
	store := &stopRaceStore{Persistence: base, executions: executions}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := scripts.NewRegistry()
	versioning := services.NewVersioning(store, logger)

	r := NewRunner(Config{
		Persistence: store,
		Resolver:    services.NewResolver(store),
		Provider:    registry,
		Logger:      logger,
	})

	registry.Register("scripts/quick", func() *scripts.Unit {
		return &scripts.Unit{
			Entry: func(context.Context, map[string]any, scripts.LogFunc) error { return nil },
		}
	})

	ctx := context.Background()

	family, err := versioning.CreateFamily(ctx, services.CreateFamilyInput{Name: "race-family"})
	require.NoError(t, err)

	version, err := versioning.SeedVersion(ctx, family.ID, "scripts/quick", "")
	require.NoError(t, err)

	_, err = versioning.Publish(ctx, version.ID)
	require.NoError(t, err)

	var (
		once    sync.Once
		stopErr error
	)

	// The stop lands after the goroutine decided to complete but before
	// its write hits the store; the stop must win.
	executions.beforeUpdate = func(execution *models.NodeExecution) {
		if execution.Status != models.ExecutionStatusCompleted {
			return
		}

		once.Do(func() {
			_, stopErr = r.Stop(ctx, execution.ID, "operator")
		})
	}

	execution, err := r.Execute(ctx, version.ID, ExecuteOptions{})
	require.NoError(t, err)

	r.Wait()

	require.NoError(t, stopErr, "the stop saw a running record and must succeed")

	final, err := base.Executions().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusStopped, final.Status)
	assert.Contains(t, final.Log, "manually stopped")
}

func TestExecute_RecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := scripts.NewRegistry()
	versioning := services.NewVersioning(store, logger)

	r := NewRunner(Config{
		Persistence: store,
		Resolver:    services.NewResolver(store),
		Provider:    registry,
		Tracer:      provider.Tracer("test"),
		Logger:      logger,
	})

	registry.Register("scripts/traced", func() *scripts.Unit {
		return &scripts.Unit{
			Entry: func(context.Context, map[string]any, scripts.LogFunc) error { return nil },
		}
	})

	ctx := context.Background()

	family, err := versioning.CreateFamily(ctx, services.CreateFamilyInput{Name: "traced-family"})
	require.NoError(t, err)

	version, err := versioning.SeedVersion(ctx, family.ID, "scripts/traced", "")
	require.NoError(t, err)

	_, err = versioning.Publish(ctx, version.ID)
	require.NoError(t, err)

	execution, err := r.Execute(ctx, version.ID, ExecuteOptions{})
	require.NoError(t, err)

	r.Wait()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "execution.run", spans[0].Name())

	attrs := spans[0].Attributes()
	values := make(map[string]string, len(attrs))

	for _, attr := range attrs {
		values[string(attr.Key)] = attr.Value.AsString()
	}

	assert.Equal(t, execution.ID, values[otelhelper.ExecutionIDKey])
	assert.Equal(t, version.ID, values[otelhelper.VersionIDKey])
	assert.Equal(t, family.ID, values[otelhelper.FamilyIDKey])
	assert.Equal(t, "scripts/traced", values[otelhelper.ScriptRefKey])
}
