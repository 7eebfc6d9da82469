package model

import "time"

// DeviceStatus is an in-memory snapshot of a single device runner.
// It is served by the status endpoints without touching the database.
type DeviceStatus struct {
	DeviceID       string     `json:"device_id"`
	Name           string     `json:"name"`
	Connected      bool       `json:"connected"`
	Retries        int        `json:"retries"`
	EventsIngested int64      `json:"events_ingested"`
	Duplicates     int64      `json:"duplicates"`
	LastError      string     `json:"last_error,omitempty"`
	LastEventAt    *time.Time `json:"last_event_at,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
}

// ListenerStatus aggregates runner snapshots for the whole listener.
type ListenerStatus struct {
	Running bool           `json:"running"`
	Devices []DeviceStatus `json:"devices"`
}
