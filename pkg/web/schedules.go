package web

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/robfig/cron/v3"

	"github.com/nodeflow/nodeflow/pkg/scheduler"
)

// CreateSchedule registers a cron entry that fires the family's published
// version. Entries live in the server process and are dropped on restart.
func (h *APIHandlers) CreateSchedule(c fiber.Ctx) error {
	var req ScheduleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	familyID := c.Params("id")

	if _, err := h.versioning.GetFamily(c.Context(), familyID); err != nil {
		return handleServiceError(c, err)
	}

	entry := scheduler.Entry{
		Schedule:    req.Schedule,
		FamilyID:    familyID,
		SubNodeID:   req.SubNodeID,
		Overrides:   req.Overrides,
		TriggeredBy: req.TriggeredBy,
	}

	id, err := h.scheduler.Add(entry)
	if err != nil {
		return badRequest(c, "Invalid cron expression: "+err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(scheduler.ScheduledEntry{ID: id, Entry: entry})
}

func (h *APIHandlers) ListFamilySchedules(c fiber.Ctx) error {
	familyID := c.Params("id")

	entries := make([]scheduler.ScheduledEntry, 0)

	for _, entry := range h.scheduler.List() {
		if entry.FamilyID == familyID {
			entries = append(entries, entry)
		}
	}

	return c.JSON(entries)
}

func (h *APIHandlers) DeleteSchedule(c fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid schedule ID")
	}

	if !h.scheduler.Remove(cron.EntryID(id)) {
		return notFound(c, "Schedule not found")
	}

	return c.SendStatus(fiber.StatusNoContent)
}
