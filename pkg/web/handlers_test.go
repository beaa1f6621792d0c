package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence/file"
	"github.com/nodeflow/nodeflow/pkg/runner"
	"github.com/nodeflow/nodeflow/pkg/scheduler"
	"github.com/nodeflow/nodeflow/pkg/scripts"
	"github.com/nodeflow/nodeflow/pkg/services"
	"github.com/nodeflow/nodeflow/pkg/web"
)

type testEnv struct {
	app        *fiber.App
	versioning *services.Versioning
	catalog    *services.Catalog
	subnodes   *services.SubNodes
	registry   *scripts.Registry
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	catalog := services.NewCatalog(store)
	versioning := services.NewVersioning(store, logger)
	subnodes := services.NewSubNodes(store, logger)
	resolver := services.NewResolver(store)

	transfer, err := services.NewTransfer(store, versioning, subnodes, logger)
	require.NoError(t, err)

	registry := scripts.NewRegistry()
	r := runner.NewRunner(runner.Config{
		Persistence: store,
		Resolver:    resolver,
		Provider:    registry,
		Logger:      logger,
	})

	sched := scheduler.NewScheduler(store, r, logger)

	handlers := web.NewAPIHandlers(web.Config{
		Persistence: store,
		Catalog:     catalog,
		Versioning:  versioning,
		SubNodes:    subnodes,
		Resolver:    resolver,
		Transfer:    transfer,
		Runner:      r,
		Scheduler:   sched,
		Validator:   validator.New(validator.WithRequiredStructEnabled()),
	})

	app := fiber.New()

	p := app.Group("/parameters")
	p.Post("/", handlers.CreateParameter)
	p.Get("/", handlers.ListParameters)
	p.Get("/:id", handlers.GetParameter)
	p.Patch("/:id", handlers.UpdateParameter)
	p.Post("/:id/deactivate", handlers.DeactivateParameter)
	p.Post("/:id/activate", handlers.ActivateParameter)
	p.Delete("/:id", handlers.DeleteParameter)

	f := app.Group("/families")
	f.Post("/", handlers.CreateFamily)
	f.Get("/", handlers.ListFamilies)
	f.Get("/:id", handlers.GetFamily)
	f.Patch("/:id", handlers.UpdateFamily)
	f.Delete("/:id", handlers.DeleteFamily)
	f.Post("/:id/relationships", handlers.DeclareRelationship)
	f.Get("/:id/relationships", handlers.ListRelationships)
	f.Get("/:id/export", handlers.ExportFamily)
	f.Post("/:id/versions", handlers.CreateVersion)
	f.Post("/:id/versions/seed", handlers.SeedVersion)
	f.Get("/:id/versions", handlers.ListVersions)
	f.Get("/:id/published", handlers.GetPublishedVersion)
	f.Post("/:id/rollback", handlers.RollbackFamily)
	f.Post("/:id/subnodes", handlers.CreateSubNode)
	f.Get("/:id/subnodes", handlers.ListSubNodes)
	f.Post("/:id/schedules", handlers.CreateSchedule)
	f.Get("/:id/schedules", handlers.ListFamilySchedules)
	app.Post("/families/import", handlers.ImportFamily)
	app.Delete("/schedules/:id", handlers.DeleteSchedule)

	v := app.Group("/versions")
	v.Get("/:id", handlers.GetVersion)
	v.Post("/:id/publish", handlers.PublishVersion)
	v.Delete("/:id", handlers.DeleteVersion)
	v.Post("/:id/links", handlers.LinkSubversion)
	v.Get("/:id/links", handlers.ListVersionLinks)
	v.Put("/:id/parameters/:parameter_id", handlers.SetVersionParameter)
	v.Delete("/:id/parameters/:parameter_id", handlers.RemoveVersionParameter)
	v.Patch("/:id/script", handlers.UpdateVersionScript)
	v.Get("/:id/resolved", handlers.ResolveVersionParameters)
	v.Post("/:id/execute", handlers.ExecuteVersion)
	v.Get("/:id/executions", handlers.ListExecutions)

	s := app.Group("/subnodes")
	s.Get("/:id", handlers.GetSubNode)
	s.Post("/:id/versions", handlers.CreateSubNodeVersion)
	s.Post("/:id/deploy", handlers.DeploySubNode)
	s.Post("/:id/undeploy", handlers.UndeploySubNode)
	s.Get("/:id/lineage", handlers.ListSubNodeLineage)
	s.Get("/:id/values", handlers.ListSubNodeValues)
	s.Put("/:id/values/:parameter_id", handlers.SetSubNodeValue)
	s.Delete("/:id/values/:parameter_id", handlers.RemoveSubNodeValue)
	s.Delete("/:id", handlers.DeleteSubNode)

	e := app.Group("/executions")
	e.Get("/:id", handlers.GetExecution)
	e.Post("/:id/stop", handlers.StopExecution)
	e.Get("/:id/log", handlers.GetExecutionLog)

	app.Get("/health", handlers.HealthCheck)

	return &testEnv{
		app:        app,
		versioning: versioning,
		catalog:    catalog,
		subnodes:   subnodes,
		registry:   registry,
	}
}

func doJSON(t *testing.T, app *fiber.App, method, url string, payload any) *http.Response {
	t.Helper()

	var body io.Reader

	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, url, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out))

	return out
}

func seedPublished(t *testing.T, env *testEnv, familyName, scriptRef string) (*models.NodeFamily, *models.NodeVersion) {
	t.Helper()
	ctx := context.Background()

	family, err := env.versioning.CreateFamily(ctx, services.CreateFamilyInput{Name: familyName})
	require.NoError(t, err)

	version, err := env.versioning.SeedVersion(ctx, family.ID, scriptRef, "test")
	require.NoError(t, err)

	_, err = env.versioning.Publish(ctx, version.ID)
	require.NoError(t, err)

	return family, version
}

func TestCreateFamily(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name:           "successful creation",
			requestBody:    web.CreateFamilyRequest{Name: "resize-worker", Description: "resizes things"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing name",
			requestBody:    web.CreateFamilyRequest{Description: "nameless"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid json",
			requestBody:    "{not json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := setupTestApp(t)

			var resp *http.Response
			if raw, ok := tt.requestBody.(string); ok {
				req := httptest.NewRequest(http.MethodPost, "/families/", bytes.NewBufferString(raw))
				req.Header.Set("Content-Type", "application/json")

				var err error
				resp, err = env.app.Test(req)
				require.NoError(t, err)
			} else {
				resp = doJSON(t, env.app, http.MethodPost, "/families/", tt.requestBody)
			}

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusCreated {
				family := decode[models.NodeFamily](t, resp)
				assert.NotEmpty(t, family.ID)
				assert.Equal(t, "resize-worker", family.Name)
			}
		})
	}
}

func TestCreateVersionWithoutPublished(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	ctx := context.Background()

	family, err := env.versioning.CreateFamily(ctx, services.CreateFamilyInput{Name: "cold"})
	require.NoError(t, err)

	resp := doJSON(t, env.app, http.MethodPost, "/families/"+family.ID+"/versions", web.CreateVersionRequest{})
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
}

func TestPublishLifecycle(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	ctx := context.Background()

	family, err := env.versioning.CreateFamily(ctx, services.CreateFamilyInput{Name: "pipeline"})
	require.NoError(t, err)

	version, err := env.versioning.SeedVersion(ctx, family.ID, "scripts/run", "test")
	require.NoError(t, err)

	resp := doJSON(t, env.app, http.MethodPost, "/versions/"+version.ID+"/publish", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decode[services.PublishResult](t, resp)
	assert.False(t, result.AlreadyPublished)
	assert.Equal(t, models.VersionStatePublished, result.Version.State)

	// Publishing again is a no-op, not an error.
	resp = doJSON(t, env.app, http.MethodPost, "/versions/"+version.ID+"/publish", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result = decode[services.PublishResult](t, resp)
	assert.True(t, result.AlreadyPublished)

	resp = doJSON(t, env.app, http.MethodGet, "/families/"+family.ID+"/published", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	published := decode[models.NodeVersion](t, resp)
	assert.Equal(t, version.ID, published.ID)
}

func TestPublishDraftWithoutScript(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	ctx := context.Background()

	family, err := env.versioning.CreateFamily(ctx, services.CreateFamilyInput{Name: "scriptless"})
	require.NoError(t, err)

	version, err := env.versioning.SeedVersion(ctx, family.ID, "", "test")
	require.NoError(t, err)

	resp := doJSON(t, env.app, http.MethodPost, "/versions/"+version.ID+"/publish", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRollback(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	ctx := context.Background()

	family, v1 := seedPublished(t, env, "rollable", "scripts/v1")

	v2, err := env.versioning.CreateVersion(ctx, family.ID, "", "test")
	require.NoError(t, err)
	_, err = env.versioning.Publish(ctx, v2.ID)
	require.NoError(t, err)

	resp := doJSON(t, env.app, http.MethodPost, "/families/"+family.ID+"/rollback", web.RollbackRequest{TargetVersion: v1.Version})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	restored := decode[models.NodeVersion](t, resp)
	assert.Equal(t, models.VersionStatePublished, restored.State)
	assert.Equal(t, v1.Version, restored.Version)

	// Rolling back to a version that never existed is a 404.
	resp = doJSON(t, env.app, http.MethodPost, "/families/"+family.ID+"/rollback", web.RollbackRequest{TargetVersion: 99})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeletePublishedVersionConflicts(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	_, version := seedPublished(t, env, "protected", "scripts/run")

	resp := doJSON(t, env.app, http.MethodDelete, "/versions/"+version.ID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestParameterCatalogRoundTrip(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	resp := doJSON(t, env.app, http.MethodPost, "/parameters/", web.CreateParameterRequest{
		Key:          "timeout_seconds",
		Datatype:     "integer",
		DefaultValue: "30",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	parameter := decode[models.Parameter](t, resp)
	assert.True(t, parameter.IsActive)

	// A default that does not parse under the datatype is rejected.
	resp = doJSON(t, env.app, http.MethodPatch, "/parameters/"+parameter.ID, web.UpdateParameterRequest{DefaultValue: "soon"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, env.app, http.MethodPost, "/parameters/"+parameter.ID+"/deactivate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	deactivated := decode[models.Parameter](t, resp)
	assert.False(t, deactivated.IsActive)

	resp = doJSON(t, env.app, http.MethodGet, "/parameters/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	parameters := decode[[]models.Parameter](t, resp)
	assert.Len(t, parameters, 1)
}

func TestSetVersionParameterOnDraft(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	ctx := context.Background()

	family, err := env.versioning.CreateFamily(ctx, services.CreateFamilyInput{Name: "tunable"})
	require.NoError(t, err)

	version, err := env.versioning.SeedVersion(ctx, family.ID, "scripts/run", "test")
	require.NoError(t, err)

	parameter, err := env.catalog.CreateParameter(ctx, services.CreateParameterInput{
		Key:      "threshold",
		Datatype: "float",
	})
	require.NoError(t, err)

	resp := doJSON(t, env.app, http.MethodPut, "/versions/"+version.ID+"/parameters/"+parameter.ID, web.SetValueRequest{Value: "0.75"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Type mismatch is a validation error.
	resp = doJSON(t, env.app, http.MethodPut, "/versions/"+version.ID+"/parameters/"+parameter.ID, web.SetValueRequest{Value: "high"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Published versions are frozen.
	_, err = env.versioning.Publish(ctx, version.ID)
	require.NoError(t, err)

	resp = doJSON(t, env.app, http.MethodPut, "/versions/"+version.ID+"/parameters/"+parameter.ID, web.SetValueRequest{Value: "0.5"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestResolvedParameters(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	ctx := context.Background()

	family, err := env.versioning.CreateFamily(ctx, services.CreateFamilyInput{Name: "resolved"})
	require.NoError(t, err)

	version, err := env.versioning.SeedVersion(ctx, family.ID, "scripts/run", "test")
	require.NoError(t, err)

	parameter, err := env.catalog.CreateParameter(ctx, services.CreateParameterInput{
		Key:          "region",
		Datatype:     "string",
		DefaultValue: "us-east-1",
	})
	require.NoError(t, err)

	require.NoError(t, env.versioning.SetParameter(ctx, version.ID, parameter.ID, "eu-west-1"))

	resp := doJSON(t, env.app, http.MethodGet, "/versions/"+version.ID+"/resolved", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resolved := decode[map[string]string](t, resp)
	assert.Equal(t, "eu-west-1", resolved["region"])

	resp = doJSON(t, env.app, http.MethodGet, "/versions/"+version.ID+"/resolved?annotated=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	annotated := decode[[]map[string]any](t, resp)
	require.Len(t, annotated, 1)
	assert.Equal(t, "version", annotated[0]["source"])
}

func TestSubNodeDeployAndFreeze(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	ctx := context.Background()

	family, err := env.versioning.CreateFamily(ctx, services.CreateFamilyInput{Name: "subnoded"})
	require.NoError(t, err)

	parameter, err := env.catalog.CreateParameter(ctx, services.CreateParameterInput{
		Key:      "batch_size",
		Datatype: "integer",
	})
	require.NoError(t, err)

	resp := doJSON(t, env.app, http.MethodPost, "/families/"+family.ID+"/subnodes", web.CreateSubNodeRequest{Name: "shard-a"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	subnode := decode[models.SubNode](t, resp)

	resp = doJSON(t, env.app, http.MethodPut, "/subnodes/"+subnode.ID+"/values/"+parameter.ID, web.SetValueRequest{Value: "64"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, env.app, http.MethodPost, "/subnodes/"+subnode.ID+"/deploy", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	deployed := decode[models.SubNode](t, resp)
	assert.True(t, deployed.IsDeployed)

	// Deployed subnodes reject edits and deletion.
	resp = doJSON(t, env.app, http.MethodPut, "/subnodes/"+subnode.ID+"/values/"+parameter.ID, web.SetValueRequest{Value: "128"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = doJSON(t, env.app, http.MethodDelete, "/subnodes/"+subnode.ID, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// A new lineage version starts undeployed and editable.
	resp = doJSON(t, env.app, http.MethodPost, "/subnodes/"+subnode.ID+"/versions", web.CreateSubNodeVersionRequest{Comment: "bump"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	next := decode[models.SubNode](t, resp)
	assert.Equal(t, 2, next.Version)
	assert.False(t, next.IsDeployed)

	resp = doJSON(t, env.app, http.MethodGet, "/subnodes/"+subnode.ID+"/lineage", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lineage := decode[[]models.SubNode](t, resp)
	assert.Len(t, lineage, 2)
}

func TestExecuteAndStop(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	release := make(chan struct{})
	env.registry.Register("scripts/slow", func() *scripts.Unit {
		return &scripts.Unit{
			Entry: func(ctx context.Context, _ map[string]any, _ scripts.LogFunc) error {
				<-release

				return nil
			},
		}
	})

	_, version := seedPublished(t, env, "runnable", "scripts/slow")

	resp := doJSON(t, env.app, http.MethodPost, "/versions/"+version.ID+"/execute", web.ExecuteRequest{TriggeredBy: "api"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	execution := decode[models.NodeExecution](t, resp)
	assert.Equal(t, models.ExecutionStatusRunning, execution.Status)

	resp = doJSON(t, env.app, http.MethodPost, "/executions/"+execution.ID+"/stop", web.StopRequest{StoppedBy: "operator"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stopped := decode[models.NodeExecution](t, resp)
	assert.Equal(t, models.ExecutionStatusStopped, stopped.Status)

	// Stopping a terminal execution is a lifecycle violation.
	resp = doJSON(t, env.app, http.MethodPost, "/executions/"+execution.ID+"/stop", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	close(release)

	resp = doJSON(t, env.app, http.MethodGet, "/executions/"+execution.ID+"/log", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "manually stopped")
}

func TestExecuteDraftRejected(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	ctx := context.Background()

	family, err := env.versioning.CreateFamily(ctx, services.CreateFamilyInput{Name: "draft-only"})
	require.NoError(t, err)

	version, err := env.versioning.SeedVersion(ctx, family.ID, "scripts/run", "test")
	require.NoError(t, err)

	resp := doJSON(t, env.app, http.MethodPost, "/versions/"+version.ID+"/execute", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestExportImport(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	ctx := context.Background()

	family, version := seedPublished(t, env, "exported", "scripts/run")

	parameter, err := env.catalog.CreateParameter(ctx, services.CreateParameterInput{
		Key:      "mode",
		Datatype: "string",
	})
	require.NoError(t, err)

	draft, err := env.versioning.CreateVersion(ctx, family.ID, version.ID, "test")
	require.NoError(t, err)
	require.NoError(t, env.versioning.SetParameter(ctx, draft.ID, parameter.ID, "fast"))

	resp := doJSON(t, env.app, http.MethodGet, "/families/"+family.ID+"/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	// Imports land under a fresh name; patch the document.
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	doc["name"] = "imported"
	patched, err := json.Marshal(doc)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/families/import", bytes.NewBuffer(patched))
	req.Header.Set("Content-Type", "application/json")
	importResp, err := env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, importResp.StatusCode)

	imported := decode[models.NodeFamily](t, importResp)
	assert.Equal(t, "imported", imported.Name)

	versions, err := env.versioning.ListVersions(ctx, imported.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)

	// Garbage payloads are rejected by schema validation.
	req = httptest.NewRequest(http.MethodPost, "/families/import", bytes.NewBufferString(`{"versions": "nope"}`))
	req.Header.Set("Content-Type", "application/json")
	badResp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, badResp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	resp := doJSON(t, env.app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSchedules(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	family, _ := seedPublished(t, env, "scheduled", "scripts/nightly")

	resp := doJSON(t, env.app, http.MethodPost, "/families/"+family.ID+"/schedules",
		web.ScheduleRequest{Schedule: "@daily", TriggeredBy: "nightly-batch"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode[scheduler.ScheduledEntry](t, resp)
	assert.Equal(t, family.ID, created.FamilyID)
	assert.Equal(t, "@daily", created.Schedule)

	resp = doJSON(t, env.app, http.MethodPost, "/families/"+family.ID+"/schedules",
		web.ScheduleRequest{Schedule: "not-a-cron"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, env.app, http.MethodPost, "/families/missing/schedules",
		web.ScheduleRequest{Schedule: "@daily"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, env.app, http.MethodGet, "/families/"+family.ID+"/schedules", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	entries := decode[[]scheduler.ScheduledEntry](t, resp)
	require.Len(t, entries, 1)
	assert.Equal(t, created.ID, entries[0].ID)

	resp = doJSON(t, env.app, http.MethodDelete, "/schedules/"+strconv.Itoa(int(created.ID)), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, env.app, http.MethodDelete, "/schedules/"+strconv.Itoa(int(created.ID)), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, env.app, http.MethodGet, "/families/"+family.ID+"/schedules", nil)
	entries = decode[[]scheduler.ScheduledEntry](t, resp)
	assert.Empty(t, entries)
}
