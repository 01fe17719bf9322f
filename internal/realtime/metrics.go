// Package realtime provides metrics for wall synchronization.
package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricPlacements   = "wall_placements_total"
	MetricSnapshots    = "wall_snapshots_broadcast_total"
	MetricSubscribers  = "wall_subscribers"
	MetricQuotaDenials = "wall_quota_denials_total"
)

// Metrics contains Prometheus metrics for the wall. All operations are
// thread-safe.
type Metrics struct {
	placements   prometheus.Counter
	snapshots    prometheus.Counter
	subscribers  prometheus.Gauge
	quotaDenials prometheus.Counter
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		placements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPlacements,
			Help: "Total number of pictures committed to the wall",
		}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSnapshots,
			Help: "Total number of full snapshots broadcast to subscribers",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricSubscribers,
			Help: "Current number of live snapshot subscribers",
		}),
		quotaDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricQuotaDenials,
			Help: "Total number of placements refused by the daily quota",
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.placements,
		m.snapshots,
		m.subscribers,
		m.quotaDenials,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncPlacements increments the committed placement counter.
func (m *Metrics) IncPlacements() {
	m.placements.Inc()
}

// IncSnapshots increments the snapshot broadcast counter.
func (m *Metrics) IncSnapshots() {
	m.snapshots.Inc()
}

// SetSubscribers records the current subscriber count.
func (m *Metrics) SetSubscribers(n int) {
	m.subscribers.Set(float64(n))
}

// IncQuotaDenials increments the quota denial counter.
func (m *Metrics) IncQuotaDenials() {
	m.quotaDenials.Inc()
}
