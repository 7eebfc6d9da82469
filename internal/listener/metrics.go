package listener

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the prometheus instruments for the listener.
type Metrics struct {
	eventsIngested *prometheus.CounterVec
	duplicates     *prometheus.CounterVec
	reconnects     *prometheus.CounterVec
	connected      prometheus.Gauge
	autoDisabled   prometheus.Counter
}

// NewMetrics creates listener metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		eventsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attendance_events_ingested_total",
				Help: "Attendance events stored after deduplication.",
			},
			[]string{"device_id"},
		),
		duplicates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attendance_events_duplicate_total",
				Help: "Attendance events skipped as already ingested.",
			},
			[]string{"device_id"},
		),
		reconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listener_reconnects_total",
				Help: "Reconnect attempts per device.",
			},
			[]string{"device_id"},
		),
		connected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "listener_connected_devices",
				Help: "Number of devices with a live capture session.",
			},
		),
		autoDisabled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "listener_devices_auto_disabled_total",
				Help: "Devices disabled after exceeding the failure window.",
			},
		),
	}

	for _, c := range []prometheus.Collector{
		m.eventsIngested, m.duplicates, m.reconnects, m.connected, m.autoDisabled,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}
