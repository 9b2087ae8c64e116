// Package observability exposes the migration protocol's prometheus
// metrics. Metrics are optional: a nil *Metrics is a valid no-op receiver,
// so library users who don't care pay nothing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments one rank's migration pipeline.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	bytesSent     *prometheus.CounterVec
	migrated      prometheus.Counter
	invalidated   prometheus.Counter
	rejected      prometheus.Counter
}

// NewMetrics registers the protocol metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meshpart_stage_duration_seconds",
				Help:    "Wall time per migration pipeline stage.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		bytesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshpart_exchange_bytes_total",
				Help: "Bytes committed to collective exchanges, per stage.",
			},
			[]string{"stage"},
		),
		migrated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshpart_entities_migrated_total",
			Help: "Entities serialized and shipped to a new owner.",
		}),
		invalidated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshpart_ghosts_invalidated_total",
			Help: "Ghost copies dropped by the invalidation stage.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshpart_requests_rejected_total",
			Help: "Ownership-change requests rejected by validation.",
		}),
	}
	reg.MustRegister(m.stageDuration, m.bytesSent, m.migrated, m.invalidated, m.rejected)
	return m
}

// ObserveStage records one stage execution.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// AddBytesSent accounts outgoing exchange bytes for a stage.
func (m *Metrics) AddBytesSent(stage string, n int) {
	if m == nil {
		return
	}
	m.bytesSent.WithLabelValues(stage).Add(float64(n))
}

// AddMigrated counts entities shipped to new owners.
func (m *Metrics) AddMigrated(n int) {
	if m == nil {
		return
	}
	m.migrated.Add(float64(n))
}

// AddInvalidated counts dropped ghost copies.
func (m *Metrics) AddInvalidated(n int) {
	if m == nil {
		return
	}
	m.invalidated.Add(float64(n))
}

// AddRejected counts requests that failed validation.
func (m *Metrics) AddRejected(n int) {
	if m == nil {
		return
	}
	m.rejected.Add(float64(n))
}
