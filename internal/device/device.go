package device

import (
	"context"
	"time"

	"attstream/internal/model"
)

// Event is a single realtime attendance reading pushed by a terminal.
type Event struct {
	EmployeeCode string
	RecordedAt   time.Time
	VerifyMode   int
	Punch        int
}

// Conn is an open realtime-capture session with one terminal.
//
// Next blocks until the terminal pushes an attendance event, the context is
// cancelled, or the transport fails. A transport error ends the session;
// the caller is expected to Close and re-dial.
type Conn interface {
	Next(ctx context.Context) (Event, error)
	Close() error
}

// Dialer opens capture sessions. The listener holds one Dialer and dials
// each device independently.
type Dialer interface {
	Dial(ctx context.Context, d model.Device) (Conn, error)
}
