// Package main provides the NodeFlow API server.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/nodeflow/nodeflow/pkg/broadcaster"
	"github.com/nodeflow/nodeflow/pkg/eventbus"
	"github.com/nodeflow/nodeflow/pkg/persistence"
	"github.com/nodeflow/nodeflow/pkg/runner"
	"github.com/nodeflow/nodeflow/pkg/scheduler"
	"github.com/nodeflow/nodeflow/pkg/scripts"
	"github.com/nodeflow/nodeflow/pkg/services"
	"github.com/nodeflow/nodeflow/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	provider    scripts.Provider
	hub         *broadcaster.Hub
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	validate    *validator.Validate

	runner    *runner.Runner
	scheduler *scheduler.Scheduler
	app       *fiber.App
}

// NewAPI assembles the server. Tracer is optional; nil disables execution
// spans.
func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	provider scripts.Provider,
	hub *broadcaster.Hub,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		provider:    provider,
		hub:         hub,
		eventBus:    eventBus,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() (*fiber.App, error) {
	catalog := services.NewCatalog(a.persistence)
	versioning := services.NewVersioning(a.persistence, a.logger)
	subnodes := services.NewSubNodes(a.persistence, a.logger)
	resolver := services.NewResolver(a.persistence)

	transfer, err := services.NewTransfer(a.persistence, versioning, subnodes, a.logger)
	if err != nil {
		return nil, err
	}

	a.runner = runner.NewRunner(runner.Config{
		Persistence: a.persistence,
		Resolver:    resolver,
		Provider:    a.provider,
		Hub:         a.hub,
		Bus:         a.eventBus,
		Tracer:      a.tracer,
		Logger:      a.logger,
	})

	a.scheduler = scheduler.NewScheduler(a.persistence, a.runner, a.logger)

	handlers := web.NewAPIHandlers(web.Config{
		Persistence: a.persistence,
		Catalog:     catalog,
		Versioning:  versioning,
		SubNodes:    subnodes,
		Resolver:    resolver,
		Transfer:    transfer,
		Runner:      a.runner,
		Scheduler:   a.scheduler,
		Bus:         a.eventBus,
		Validator:   a.validate,
	})

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("NodeFlow API")
	})

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
	f.Post("/import", handlers.ImportFamily)
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

	app.Delete("/schedules/:id", handlers.DeleteSchedule)

	v := app.Group("/versions")
	v.Get("/:id", handlers.GetVersion)
	v.Delete("/:id", handlers.DeleteVersion)
	v.Post("/:id/publish", handlers.PublishVersion)
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
	s.Delete("/:id", handlers.DeleteSubNode)
	s.Post("/:id/versions", handlers.CreateSubNodeVersion)
	s.Post("/:id/deploy", handlers.DeploySubNode)
	s.Post("/:id/undeploy", handlers.UndeploySubNode)
	s.Get("/:id/lineage", handlers.ListSubNodeLineage)
	s.Get("/:id/values", handlers.ListSubNodeValues)
	s.Put("/:id/values/:parameter_id", handlers.SetSubNodeValue)
	s.Delete("/:id/values/:parameter_id", handlers.RemoveSubNodeValue)

	e := app.Group("/executions")
	e.Get("/:id", handlers.GetExecution)
	e.Post("/:id/stop", handlers.StopExecution)
	e.Get("/:id/log", handlers.GetExecutionLog)

	app.Get("/health", handlers.HealthCheck)

	a.app = app

	return app, nil
}

func (a *API) Start(port int) error {
	app, err := a.App()
	if err != nil {
		return err
	}

	a.scheduler.Start()

	return app.Listen(":" + strconv.Itoa(port))
}

// Shutdown stops accepting requests and waits for in-flight executions.
func (a *API) Shutdown(ctx context.Context) error {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	if a.app != nil {
		if err := a.app.ShutdownWithContext(ctx); err != nil {
			return err
		}
	}

	if a.runner != nil {
		a.runner.Wait()
	}

	return nil
}
