package web

import (
	"github.com/gofiber/fiber/v3"

	"github.com/nodeflow/nodeflow/pkg/runner"
)

func (h *APIHandlers) ExecuteVersion(c fiber.Ctx) error {
	var req ExecuteRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	execution, err := h.runner.Execute(c.Context(), c.Params("id"), runner.ExecuteOptions{
		SubNodeID:   req.SubNodeID,
		Overrides:   req.Overrides,
		TriggeredBy: req.TriggeredBy,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(execution)
}

func (h *APIHandlers) StopExecution(c fiber.Ctx) error {
	var req StopRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	execution, err := h.runner.Stop(c.Context(), c.Params("id"), req.StoppedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.persistence.Executions().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) ListExecutions(c fiber.Ctx) error {
	executions, err := h.persistence.Executions().ListByVersion(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(executions)
}

func (h *APIHandlers) GetExecutionLog(c fiber.Ctx) error {
	execution, err := h.persistence.Executions().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Type("txt").SendString(execution.Log)
}
