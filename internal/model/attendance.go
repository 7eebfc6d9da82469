package model

import "time"

// Punch direction codes as reported by the terminal firmware.
const (
	PunchIn  = 0
	PunchOut = 1
)

// AttendanceEvent is a single clock-in/out reading captured from a device.
// The tuple (DeviceID, EmployeeCode, RecordedAt) identifies a reading;
// ingestion is deduplicated on it so replays after a reconnect are no-ops.
type AttendanceEvent struct {
	ID           string    `json:"id"`
	DeviceID     string    `json:"device_id"`
	EmployeeCode string    `json:"employee_code"`
	RecordedAt   time.Time `json:"recorded_at"`
	VerifyMode   int       `json:"verify_mode"`
	Punch        int       `json:"punch"`
	CreatedAt    time.Time `json:"created_at"`
}
