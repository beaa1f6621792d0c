package web

import (
	"github.com/gofiber/fiber/v3"

	"github.com/nodeflow/nodeflow/pkg/services"
)

func (h *APIHandlers) CreateSubNode(c fiber.Ctx) error {
	var req CreateSubNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	subnode, err := h.subnodes.Create(c.Context(), services.CreateSubNodeInput{
		FamilyID:    c.Params("id"),
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(subnode)
}

func (h *APIHandlers) ListSubNodes(c fiber.Ctx) error {
	subnodes, err := h.subnodes.ListByFamily(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(subnodes)
}

func (h *APIHandlers) GetSubNode(c fiber.Ctx) error {
	subnode, err := h.subnodes.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(subnode)
}

func (h *APIHandlers) CreateSubNodeVersion(c fiber.Ctx) error {
	var req CreateSubNodeVersionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	subnode, err := h.subnodes.CreateNewVersion(c.Context(), c.Params("id"), req.Comment)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(subnode)
}

func (h *APIHandlers) DeploySubNode(c fiber.Ctx) error {
	subnode, err := h.subnodes.Deploy(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(subnode)
}

func (h *APIHandlers) UndeploySubNode(c fiber.Ctx) error {
	subnode, err := h.subnodes.Undeploy(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(subnode)
}

func (h *APIHandlers) ListSubNodeLineage(c fiber.Ctx) error {
	lineage, err := h.subnodes.ListLineage(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(lineage)
}

func (h *APIHandlers) ListSubNodeValues(c fiber.Ctx) error {
	values, err := h.subnodes.Values(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(values)
}

func (h *APIHandlers) SetSubNodeValue(c fiber.Ctx) error {
	var req SetValueRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.subnodes.SetValue(c.Context(), c.Params("id"), c.Params("parameter_id"), req.Value); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) RemoveSubNodeValue(c fiber.Ctx) error {
	if err := h.subnodes.RemoveValue(c.Context(), c.Params("id"), c.Params("parameter_id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DeleteSubNode(c fiber.Ctx) error {
	if err := h.subnodes.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
