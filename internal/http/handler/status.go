package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"attstream/internal/model"
)

// StatusReporter exposes the listener's live connection state.
type StatusReporter interface {
	Status() model.ListenerStatus
	StatusFor(deviceID string) (model.DeviceStatus, bool)
}

// ListenerStatus returns the overall listener state and all device snapshots.
func ListenerStatus(rep StatusReporter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(rep.Status())
	}
}

// DeviceStatus returns the live snapshot for a single device. Devices that
// are registered but not currently supervised report 404.
func DeviceStatus(rep StatusReporter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		st, ok := rep.StatusFor(id)
		if !ok {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "device is not being listened to")
		}
		return c.JSON(st)
	}
}
