package ingest

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the ingestion pipeline's Prometheus collectors.
type Metrics struct {
	ingests      *prometheus.CounterVec
	softFailures *prometheus.CounterVec
}

// NewMetrics creates and registers the ingestion metrics.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ingests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_calls_total",
				Help: "Total ingestion calls by outcome.",
			},
			[]string{"outcome"},
		),
		softFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_extraction_soft_failures_total",
				Help: "Extractions that produced no content, by reason.",
			},
			[]string{"reason"},
		),
	}

	if err := reg.Register(m.ingests); err != nil {
		return nil, err
	}
	if err := reg.Register(m.softFailures); err != nil {
		return nil, err
	}
	return m, nil
}

// countIngest is nil-safe so the service can run without metrics in tests.
func (m *Metrics) countIngest(outcome string) {
	if m == nil {
		return
	}
	m.ingests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) countSoftFailure(reason string) {
	if m == nil {
		return
	}
	m.softFailures.WithLabelValues(reason).Inc()
}
