package web

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/nodeflow/nodeflow/pkg/events"
)

func (h *APIHandlers) CreateVersion(c fiber.Ctx) error {
	var req CreateVersionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	version, err := h.versioning.CreateVersion(c.Context(), c.Params("id"), req.SourceVersionID, req.CreatedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(version)
}

func (h *APIHandlers) SeedVersion(c fiber.Ctx) error {
	var req SeedVersionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	version, err := h.versioning.SeedVersion(c.Context(), c.Params("id"), req.ScriptRef, req.CreatedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(version)
}

func (h *APIHandlers) ListVersions(c fiber.Ctx) error {
	versions, err := h.versioning.ListVersions(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(versions)
}

func (h *APIHandlers) GetVersion(c fiber.Ctx) error {
	version, err := h.versioning.GetVersion(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(version)
}

func (h *APIHandlers) GetPublishedVersion(c fiber.Ctx) error {
	version, err := h.versioning.GetPublished(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(version)
}

func (h *APIHandlers) PublishVersion(c fiber.Ctx) error {
	result, err := h.versioning.Publish(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	if !result.AlreadyPublished {
		h.publishEvent(c, events.VersionPublished{
			BaseEvent: events.BaseEvent{
				ID:        uuid.New().String(),
				Type:      events.VersionPublishedEvent,
				Timestamp: time.Now().UTC(),
				FamilyID:  result.Version.FamilyID,
			},
			VersionID: result.Version.ID,
			Version:   result.Version.Version,
		})
	}

	return c.JSON(result)
}

func (h *APIHandlers) RollbackFamily(c fiber.Ctx) error {
	var req RollbackRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	version, err := h.versioning.Rollback(c.Context(), c.Params("id"), req.TargetVersion)
	if err != nil {
		return handleServiceError(c, err)
	}

	h.publishEvent(c, events.FamilyRolledBack{
		BaseEvent: events.BaseEvent{
			ID:        uuid.New().String(),
			Type:      events.FamilyRolledBackEvent,
			Timestamp: time.Now().UTC(),
			FamilyID:  version.FamilyID,
		},
		VersionID:     version.ID,
		TargetVersion: req.TargetVersion,
	})

	return c.JSON(version)
}

func (h *APIHandlers) DeleteVersion(c fiber.Ctx) error {
	if err := h.versioning.DeleteVersion(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) LinkSubversion(c fiber.Ctx) error {
	var req LinkSubversionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.versioning.LinkSubversion(c.Context(), c.Params("id"), req.ChildVersionID, req.Order); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusCreated)
}

func (h *APIHandlers) ListVersionLinks(c fiber.Ctx) error {
	links, err := h.versioning.Links(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(links)
}

func (h *APIHandlers) SetVersionParameter(c fiber.Ctx) error {
	var req SetValueRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.versioning.SetParameter(c.Context(), c.Params("id"), c.Params("parameter_id"), req.Value); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) RemoveVersionParameter(c fiber.Ctx) error {
	if err := h.versioning.RemoveParameter(c.Context(), c.Params("id"), c.Params("parameter_id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) UpdateVersionScript(c fiber.Ctx) error {
	var req UpdateScriptRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	version, err := h.versioning.UpdateScript(c.Context(), c.Params("id"), req.ScriptRef)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(version)
}

// ResolveVersionParameters lists the effective parameters of a version,
// optionally scoped to a subnode with ?subnode_id= and annotated with
// sources via ?annotated=true.
func (h *APIHandlers) ResolveVersionParameters(c fiber.Ctx) error {
	versionID := c.Params("id")
	subnodeID := c.Query("subnode_id")

	if c.Query("annotated") == "true" {
		values, err := h.resolver.AnnotatedVersion(c.Context(), versionID, subnodeID)
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.JSON(values)
	}

	resolved, err := h.resolver.ResolveVersion(c.Context(), versionID, subnodeID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(resolved)
}
