package listener

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"attstream/internal/archive"
	"attstream/internal/device"
	"attstream/internal/events"
	"attstream/internal/model"
	"attstream/internal/repository"
)

// Config bounds the reconnect policy of every runner.
type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	DisableAfter   time.Duration
	RefreshEvery   time.Duration
}

// Deps collects everything a runner needs. Runners never talk to each
// other; the device rows in the database are the only cross-restart state.
type Deps struct {
	Dialer    device.Dialer
	Devices   repository.DeviceRepository
	Events    repository.AttendanceRepository
	Publisher events.Publisher
	Archive   archive.Archiver
	Metrics   *Metrics
	Log       *zap.Logger
	Config    Config
}

// Manager supervises one runner goroutine per enabled device and keeps the
// set of runners in sync with the device registry.
type Manager struct {
	deps Deps
	log  *zap.Logger

	mu      sync.Mutex
	runners map[string]*runner
	running bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager. Start must be called to begin capturing.
func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:    deps,
		log:     deps.Log.With(zap.String("component", "listener")),
		runners: make(map[string]*runner),
	}
}

// Start launches runners for all enabled devices and the registry refresh
// loop. It fails if the initial registry read fails; later read errors are
// only logged.
func (m *Manager) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	if err := m.sync(ctx); err != nil {
		cancel()
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	count := len(m.runners)
	m.mu.Unlock()

	m.wg.Add(1)
	go m.refreshLoop(ctx)

	m.log.Info("started", zap.Int("devices", count))
	return nil
}

// Stop cancels every runner and returns once all of them have exited.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.log.Info("stopped")
}

func (m *Manager) refreshLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.deps.Config.RefreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := m.sync(ctx); err != nil {
				m.log.Warn("registry refresh failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// sync reconciles running runners with the enabled devices in the registry:
// new or re-enabled devices get a runner, disabled or deleted ones are
// stopped, exited runners are reaped (and restarted if still enabled).
func (m *Manager) sync(ctx context.Context) error {
	enabled, err := m.deps.Devices.ListEnabled(ctx)
	if err != nil {
		return err
	}

	want := make(map[string]model.Device, len(enabled))
	for _, d := range enabled {
		want[d.ID] = d
	}

	// Runners are removed from the map under the lock but waited on outside
	// it, so status reads never stall behind a draining connection.
	var stopping []*runner

	m.mu.Lock()
	for id, r := range m.runners {
		if _, ok := want[id]; ok && !r.exited() {
			continue
		}
		if !r.exited() {
			stopping = append(stopping, r)
		}
		delete(m.runners, id)
	}

	for id, d := range want {
		if _, ok := m.runners[id]; ok {
			continue
		}
		m.startRunner(ctx, d)
	}
	m.mu.Unlock()

	for _, r := range stopping {
		r.stop()
	}

	return nil
}

// startRunner assumes m.mu is held; the map key guarantees at most one
// runner per device.
func (m *Manager) startRunner(ctx context.Context, d model.Device) {
	rctx, cancel := context.WithCancel(ctx)
	r := newRunner(d, m.deps)
	r.cancel = cancel
	m.runners[d.ID] = r

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		r.run(rctx)
	}()

	m.log.Info("runner started", zap.String("device_id", d.ID), zap.String("device", d.Name))
}

// Status reports a snapshot of every runner.
func (m *Manager) Status() model.ListenerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := model.ListenerStatus{
		Running: m.running,
		Devices: make([]model.DeviceStatus, 0, len(m.runners)),
	}
	for _, r := range m.runners {
		s.Devices = append(s.Devices, r.snapshot())
	}
	return s
}

// StatusFor reports the snapshot for a single device, if it has a runner.
func (m *Manager) StatusFor(id string) (model.DeviceStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runners[id]
	if !ok {
		return model.DeviceStatus{}, false
	}
	return r.snapshot(), true
}
