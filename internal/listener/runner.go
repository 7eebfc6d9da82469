package listener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"attstream/internal/device"
	"attstream/internal/model"
)

// runner owns the capture loop for a single device. The only state shared
// with anything else is the device's database row and the in-memory status
// snapshot guarded by mu.
type runner struct {
	dev  model.Device
	deps Deps
	log  *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	status model.DeviceStatus
}

func newRunner(dev model.Device, deps Deps) *runner {
	return &runner{
		dev:  dev,
		deps: deps,
		log: deps.Log.With(
			zap.String("device_id", dev.ID),
			zap.String("device", dev.Name),
		),
		done: make(chan struct{}),
		status: model.DeviceStatus{
			DeviceID:  dev.ID,
			Name:      dev.Name,
			StartedAt: time.Now().UTC(),
		},
	}
}

func (r *runner) stop() {
	r.cancel()
	<-r.done
}

func (r *runner) exited() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (r *runner) snapshot() model.DeviceStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// run is the per-device retry loop: dial, capture until the stream breaks,
// back off, repeat. A failure streak longer than the disable window ends
// the loop by disabling the device.
func (r *runner) run(ctx context.Context) {
	defer close(r.done)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.deps.Config.InitialBackoff
	bo.Multiplier = 2
	bo.MaxInterval = r.deps.Config.MaxBackoff

	var failingSince time.Time
	if r.dev.FailingSince != nil {
		// Resume the streak recorded before a restart.
		failingSince = *r.dev.FailingSince
	}

	for {
		connected, err := r.capture(ctx, bo)
		if connected {
			failingSince = time.Time{}
		}
		if ctx.Err() != nil {
			return
		}

		now := time.Now().UTC()
		if failingSince.IsZero() {
			failingSince = now
			if merr := r.deps.Devices.MarkFailing(ctx, r.dev.ID, now); merr != nil {
				r.log.Warn("failed to record failure start", zap.Error(merr))
			}
		}

		r.mu.Lock()
		r.status.LastError = err.Error()
		r.status.Connected = false
		r.mu.Unlock()

		if now.Sub(failingSince) >= r.deps.Config.DisableAfter {
			r.autoDisable(ctx, failingSince)
			return
		}

		r.log.Warn("capture failed, will reconnect",
			zap.Error(err),
			zap.Time("failing_since", failingSince),
		)

		r.mu.Lock()
		r.status.Retries++
		r.mu.Unlock()
		r.deps.Metrics.reconnects.WithLabelValues(r.dev.ID).Inc()

		delay := bo.NextBackOff()
		if delay > r.deps.Config.MaxBackoff {
			delay = r.deps.Config.MaxBackoff
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// capture holds one session open and ingests until it breaks. It reports
// whether a connection was established so the caller can reset the failure
// streak.
func (r *runner) capture(ctx context.Context, bo *backoff.ExponentialBackOff) (bool, error) {
	conn, err := r.deps.Dialer.Dial(ctx, r.dev)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	bo.Reset()
	now := time.Now().UTC()
	if cerr := r.deps.Devices.ClearFailing(ctx, r.dev.ID, now); cerr != nil {
		r.log.Warn("failed to clear failure streak", zap.Error(cerr))
	}

	r.mu.Lock()
	r.status.Connected = true
	r.status.LastError = ""
	r.mu.Unlock()
	r.deps.Metrics.connected.Inc()
	defer r.deps.Metrics.connected.Dec()

	r.log.Info("connected")

	for {
		ev, err := conn.Next(ctx)
		if err != nil {
			return true, err
		}
		r.ingest(ctx, ev)
	}
}

func (r *runner) ingest(ctx context.Context, ev device.Event) {
	rec := model.AttendanceEvent{
		ID:           uuid.NewString(),
		DeviceID:     r.dev.ID,
		EmployeeCode: ev.EmployeeCode,
		RecordedAt:   ev.RecordedAt,
		VerifyMode:   ev.VerifyMode,
		Punch:        ev.Punch,
		CreatedAt:    time.Now().UTC(),
	}

	// The archive sees every captured event, duplicates included.
	r.deps.Archive.Record(rec)

	inserted, err := r.deps.Events.Insert(ctx, &rec)
	if err != nil {
		r.log.Error("event insert failed",
			zap.String("employee_code", rec.EmployeeCode),
			zap.Time("recorded_at", rec.RecordedAt),
			zap.Error(err),
		)
		return
	}
	if !inserted {
		r.mu.Lock()
		r.status.Duplicates++
		r.mu.Unlock()
		r.deps.Metrics.duplicates.WithLabelValues(r.dev.ID).Inc()
		return
	}

	at := rec.RecordedAt
	r.mu.Lock()
	r.status.EventsIngested++
	r.status.LastEventAt = &at
	r.mu.Unlock()
	r.deps.Metrics.eventsIngested.WithLabelValues(r.dev.ID).Inc()

	if perr := r.deps.Publisher.Publish(ctx, rec); perr != nil {
		r.log.Warn("event publish failed", zap.Error(perr))
	}
}

func (r *runner) autoDisable(ctx context.Context, failingSince time.Time) {
	reason := fmt.Sprintf("unreachable since %s", failingSince.Format(time.RFC3339))
	if err := r.deps.Devices.SetEnabled(ctx, r.dev.ID, false, reason); err != nil {
		r.log.Error("auto-disable failed", zap.Error(err))
		return
	}
	r.deps.Metrics.autoDisabled.Inc()
	r.log.Error("device auto-disabled",
		zap.Time("failing_since", failingSince),
		zap.Duration("window", r.deps.Config.DisableAfter),
	)
}
