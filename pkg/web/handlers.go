package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/nodeflow/nodeflow/pkg/eventbus"
	"github.com/nodeflow/nodeflow/pkg/persistence"
	"github.com/nodeflow/nodeflow/pkg/runner"
	"github.com/nodeflow/nodeflow/pkg/scheduler"
	"github.com/nodeflow/nodeflow/pkg/services"
)

// APIHandlers bundles the services behind the REST surface. Handlers stay
// thin: parse, validate, delegate, map errors.
type APIHandlers struct {
	persistence persistence.Persistence
	catalog     *services.Catalog
	versioning  *services.Versioning
	subnodes    *services.SubNodes
	resolver    *services.Resolver
	transfer    *services.Transfer
	runner      *runner.Runner
	scheduler   *scheduler.Scheduler
	bus         eventbus.EventPublisher
	validator   *validator.Validate
}

// Config carries the handler dependencies. Bus is optional.
type Config struct {
	Persistence persistence.Persistence
	Catalog     *services.Catalog
	Versioning  *services.Versioning
	SubNodes    *services.SubNodes
	Resolver    *services.Resolver
	Transfer    *services.Transfer
	Runner      *runner.Runner
	Scheduler   *scheduler.Scheduler
	Bus         eventbus.EventPublisher
	Validator   *validator.Validate
}

func NewAPIHandlers(cfg Config) *APIHandlers {
	return &APIHandlers{
		persistence: cfg.Persistence,
		catalog:     cfg.Catalog,
		versioning:  cfg.Versioning,
		subnodes:    cfg.SubNodes,
		resolver:    cfg.Resolver,
		transfer:    cfg.Transfer,
		runner:      cfg.Runner,
		scheduler:   cfg.Scheduler,
		bus:         cfg.Bus,
		validator:   cfg.Validator,
	}
}

// publishEvent emits a lifecycle event when a bus is configured. Publish
// failures are logged by the bus side; the API response does not depend
// on them.
func (h *APIHandlers) publishEvent(c fiber.Ctx, event eventbus.Event) {
	if h.bus == nil {
		return
	}

	_ = h.bus.Publish(c.Context(), uuid.New().String(), event)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) CreateParameter(c fiber.Ctx) error {
	var req CreateParameterRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	parameter, err := h.catalog.CreateParameter(c.Context(), services.CreateParameterInput{
		Key:          req.Key,
		Datatype:     req.Datatype,
		DefaultValue: req.DefaultValue,
		CreatedBy:    req.CreatedBy,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(parameter)
}

func (h *APIHandlers) ListParameters(c fiber.Ctx) error {
	parameters, err := h.catalog.ListParameters(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(parameters)
}

func (h *APIHandlers) GetParameter(c fiber.Ctx) error {
	parameter, err := h.catalog.GetParameter(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(parameter)
}

func (h *APIHandlers) UpdateParameter(c fiber.Ctx) error {
	var req UpdateParameterRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	parameter, err := h.catalog.UpdateDefault(c.Context(), c.Params("id"), req.DefaultValue)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(parameter)
}

func (h *APIHandlers) DeactivateParameter(c fiber.Ctx) error {
	parameter, err := h.catalog.Deactivate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(parameter)
}

func (h *APIHandlers) ActivateParameter(c fiber.Ctx) error {
	parameter, err := h.catalog.Activate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(parameter)
}

func (h *APIHandlers) DeleteParameter(c fiber.Ctx) error {
	if err := h.catalog.DeleteParameter(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
