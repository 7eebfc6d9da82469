package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"attstream/internal/model"
	"attstream/internal/storage"
)

// Archiver persists raw captured events for audit and replay, independently
// of the deduplicated database rows. Like event publishing it is best
// effort: a failed flush is logged and the batch dropped, never surfaced to
// ingestion.
type Archiver interface {
	Record(ev model.AttendanceEvent)
	Close(ctx context.Context) error
}

// Sink buffers events per device and writes them as JSONL objects under
// events/<device>/<date>/<uuid>.jsonl on a fixed interval and at shutdown.
type Sink struct {
	store    storage.Storage
	log      *zap.Logger
	interval time.Duration

	mu  sync.Mutex
	buf map[string][]model.AttendanceEvent

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

var _ Archiver = (*Sink)(nil)

// NewSink creates a Sink and starts its flusher goroutine.
func NewSink(store storage.Storage, log *zap.Logger, interval time.Duration) *Sink {
	s := &Sink{
		store:    store,
		log:      log.With(zap.String("component", "archive")),
		interval: interval,
		buf:      make(map[string][]model.AttendanceEvent),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Record buffers one event for the next flush. Safe for concurrent use.
func (s *Sink) Record(ev model.AttendanceEvent) {
	s.mu.Lock()
	s.buf[ev.DeviceID] = append(s.buf[ev.DeviceID], ev)
	s.mu.Unlock()
}

// Close stops the flusher and writes out any buffered events. Calling it
// more than once is safe; later calls only flush.
func (s *Sink) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return s.Flush(ctx)
}

func (s *Sink) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := s.Flush(ctx); err != nil {
				s.log.Warn("flush failed", zap.Error(err))
			}
			cancel()
		case <-s.stop:
			return
		}
	}
}

// Flush writes one object per device holding everything buffered so far.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	batch := s.buf
	s.buf = make(map[string][]model.AttendanceEvent)
	s.mu.Unlock()

	var firstErr error
	for deviceID, events := range batch {
		if err := s.write(ctx, deviceID, events); err != nil {
			s.log.Warn("archive write failed",
				zap.String("device_id", deviceID),
				zap.Int("events", len(events)),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Sink) write(ctx context.Context, deviceID string, events []model.AttendanceEvent) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
	}

	key := ObjectKey(deviceID, time.Now().UTC())
	_, err := s.store.Put(ctx, key, &buf, storage.PutObjectOptions{
		Size:        int64(buf.Len()),
		ContentType: "application/x-ndjson",
		Metadata:    map[string]string{"device-id": deviceID},
	})
	return err
}

// ObjectKey builds the archive key for a device batch written at t.
func ObjectKey(deviceID string, t time.Time) string {
	return fmt.Sprintf("events/%s/%s/%s.jsonl", deviceID, t.Format("2006-01-02"), uuid.NewString())
}

// noop discards everything; used when the archive is disabled.
type noop struct{}

// NewNoop returns an Archiver that drops all events.
func NewNoop() Archiver {
	return noop{}
}

func (noop) Record(model.AttendanceEvent) {}

func (noop) Close(context.Context) error { return nil }
