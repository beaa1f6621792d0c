package web

import (
	"github.com/gofiber/fiber/v3"

	"github.com/nodeflow/nodeflow/pkg/services"
)

func (h *APIHandlers) CreateFamily(c fiber.Ctx) error {
	var req CreateFamilyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	family, err := h.versioning.CreateFamily(c.Context(), services.CreateFamilyInput{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(family)
}

func (h *APIHandlers) ListFamilies(c fiber.Ctx) error {
	families, err := h.versioning.ListFamilies(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(families)
}

func (h *APIHandlers) GetFamily(c fiber.Ctx) error {
	family, err := h.versioning.GetFamily(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(family)
}

func (h *APIHandlers) UpdateFamily(c fiber.Ctx) error {
	var req UpdateFamilyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	familyID := c.Params("id")

	family, err := h.versioning.GetFamily(c.Context(), familyID)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Name != nil && *req.Name != family.Name {
		family, err = h.versioning.RenameFamily(c.Context(), familyID, *req.Name)
		if err != nil {
			return handleServiceError(c, err)
		}
	}

	if req.Description != nil {
		family, err = h.versioning.UpdateFamilyDescription(c.Context(), familyID, *req.Description)
		if err != nil {
			return handleServiceError(c, err)
		}
	}

	return c.JSON(family)
}

func (h *APIHandlers) DeleteFamily(c fiber.Ctx) error {
	if err := h.versioning.DeleteFamily(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DeclareRelationship(c fiber.Ctx) error {
	var req DeclareRelationshipRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.versioning.DeclareRelationship(c.Context(), c.Params("id"), req.ChildID, req.Order); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusCreated)
}

func (h *APIHandlers) ListRelationships(c fiber.Ctx) error {
	relationships, err := h.versioning.Relationships(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(relationships)
}

func (h *APIHandlers) ExportFamily(c fiber.Ctx) error {
	export, err := h.transfer.Export(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(export)
}

func (h *APIHandlers) ImportFamily(c fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return badRequest(c, "Request body is empty")
	}

	family, err := h.transfer.Import(c.Context(), body, c.Query("created_by"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(family)
}
