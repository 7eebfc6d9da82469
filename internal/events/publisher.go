package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"attstream/internal/config"
	"attstream/internal/model"
)

// Publisher fans newly ingested attendance events out to downstream
// consumers (live dashboards, HR sync jobs). Publishing is best effort:
// the listener logs and counts failures but never blocks ingestion on them.
type Publisher interface {
	Publish(ctx context.Context, ev model.AttendanceEvent) error
	Close()
}

// natsPublisher publishes one JSON message per ingested event on
// <prefix>.<device_id>.
type natsPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATS connects to the NATS server and returns a Publisher over it.
func NewNATS(cfg config.NATSConfig) (Publisher, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("attstream"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &natsPublisher{nc: nc, prefix: cfg.SubjectPrefix}, nil
}

func (p *natsPublisher) Publish(_ context.Context, ev model.AttendanceEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.nc.Publish(SubjectFor(p.prefix, ev.DeviceID), payload)
}

func (p *natsPublisher) Close() {
	// Drain flushes buffered messages before closing the connection.
	_ = p.nc.Drain()
}

// SubjectFor builds the per-device subject events are published on.
func SubjectFor(prefix, deviceID string) string {
	return prefix + "." + deviceID
}

// noopPublisher is used when NATS is disabled by configuration.
type noopPublisher struct{}

// NewNoop returns a Publisher that discards all events.
func NewNoop() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, model.AttendanceEvent) error { return nil }

func (noopPublisher) Close() {}
