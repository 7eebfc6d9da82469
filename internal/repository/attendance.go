package repository

import (
	"context"
	"time"

	"attstream/internal/model"
)

// AttendanceFilter narrows attendance listings. Nil fields are ignored.
type AttendanceFilter struct {
	DeviceID *string
	From     *time.Time
	To       *time.Time
	Page     PageQuery
}

// AttendanceRepository defines data access for captured attendance events.
type AttendanceRepository interface {
	// Insert writes an event, relying on the (device_id, employee_code,
	// recorded_at) uniqueness constraint for deduplication. It returns
	// false with a nil error when the event was already present.
	Insert(ctx context.Context, ev *model.AttendanceEvent) (bool, error)

	// List returns a filtered, paginated list of events newest-first
	// together with the total count for the filter.
	List(ctx context.Context, f AttendanceFilter) (*PageResult[model.AttendanceEvent], error)
}
