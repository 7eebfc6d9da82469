package repository

import (
	"context"
	"time"

	"attstream/internal/model"
)

// DeviceRepository defines data access for devices using SQL queries only.
// No business logic here — strictly persistence operations.
//
// The failing_since column is the only cross-restart state the listener
// keeps per device: MarkFailing stamps the start of a failure streak,
// ClearFailing ends it and records the device as seen.
type DeviceRepository interface {
	// Create inserts a new device record and returns the stored row
	// (including values set by the DB).
	Create(ctx context.Context, d *model.Device) (*model.Device, error)

	// FindByID returns a device by its ID.
	FindByID(ctx context.Context, id string) (*model.Device, error)

	// List returns a paginated list of devices and the total row count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Device], error)

	// ListEnabled returns all devices the listener should be running.
	ListEnabled(ctx context.Context) ([]model.Device, error)

	// SetEnabled flips the enabled flag. Disabling records a reason and
	// clears failing_since; enabling clears the reason.
	SetEnabled(ctx context.Context, id string, enabled bool, reason string) error

	// MarkFailing stamps failing_since if it is not already set.
	MarkFailing(ctx context.Context, id string, since time.Time) error

	// ClearFailing resets failing_since and updates last_seen_at.
	ClearFailing(ctx context.Context, id string, seenAt time.Time) error

	// Delete removes a device by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error
}
