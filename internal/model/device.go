package model

import "time"

// Device represents a biometric attendance terminal the listener polls.
// This is a pure domain model with no database-specific dependencies or tags.
// FailingSince is set on the first connection failure of a failure streak and
// cleared on the next successful connection; the listener auto-disables a
// device whose streak exceeds the configured window.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Host string `json:"host"`
	Port int    `json:"port"`
	// CommKey is the shared secret for the terminal handshake. Never
	// serialized: device listings are readable without a token.
	CommKey        int        `json:"-"`
	Enabled        bool       `json:"enabled"`
	DisabledReason string     `json:"disabled_reason,omitempty"`
	FailingSince   *time.Time `json:"failing_since,omitempty"`
	LastSeenAt     *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
