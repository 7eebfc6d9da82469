package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"attstream/internal/service"
)

// ListAttendance returns captured punches, optionally filtered by device and
// time window. Timestamps use RFC 3339.
func ListAttendance(svc service.AttendanceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		q := service.AttendanceQuery{
			DeviceID: c.Query("device_id"),
			Limit:    limit,
			Offset:   offset,
		}

		if raw := c.Query("from"); raw != "" {
			ts, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_FROM", "from must be RFC 3339")
			}
			q.From = &ts
		}
		if raw := c.Query("to"); raw != "" {
			ts, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_TO", "to must be RFC 3339")
			}
			q.To = &ts
		}

		res, err := svc.List(c.UserContext(), q)
		if err != nil {
			if errors.Is(err, service.ErrInvalidRange) {
				return writeError(c, fiber.StatusBadRequest, "INVALID_RANGE", "from must be before to")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}
