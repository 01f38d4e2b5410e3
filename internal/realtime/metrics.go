package realtime

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the hub's Prometheus collectors.
type Metrics struct {
	activeConnections prometheus.Gauge
	broadcasts        *prometheus.CounterVec
}

// NewMetrics creates and registers the realtime metrics.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_active_connections",
			Help: "Currently connected socket clients.",
		}),
		broadcasts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realtime_broadcasts_total",
				Help: "Broadcast calls by event name.",
			},
			[]string{"event"},
		),
	}

	if err := reg.Register(m.activeConnections); err != nil {
		return nil, err
	}
	if err := reg.Register(m.broadcasts); err != nil {
		return nil, err
	}
	return m, nil
}

// connections is nil-safe so the hub can run without metrics in tests.
func (m *Metrics) connections(delta float64) {
	if m == nil {
		return
	}
	m.activeConnections.Add(delta)
}

func (m *Metrics) countBroadcast(event string) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(event).Inc()
}
