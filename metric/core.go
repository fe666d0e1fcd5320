package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CoreMetrics contains the SDK-level metrics every adapter exposes,
// independent of which capabilities it implements.
type CoreMetrics struct {
	// Subscription hub
	ValuesPublished     *prometheus.CounterVec
	ValuesDropped       *prometheus.CounterVec
	ActiveSubscriptions prometheus.Gauge

	// Query engine
	QueriesTotal  *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec

	// Tag registry
	TagDefinitions      prometheus.Gauge
	ChangeNotifications prometheus.Counter
}

func newCoreMetrics() *CoreMetrics {
	return &CoreMetrics{
		ValuesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tagkit",
				Subsystem: "hub",
				Name:      "values_published_total",
				Help:      "Total tag values delivered to subscription queues",
			},
			[]string{"outcome"},
		),
		ValuesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tagkit",
				Subsystem: "hub",
				Name:      "values_dropped_total",
				Help:      "Total tag values dropped by subscription overflow policies",
			},
			[]string{"policy"},
		),
		ActiveSubscriptions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "tagkit",
				Subsystem: "hub",
				Name:      "active_subscriptions",
				Help:      "Number of subscriptions currently in the Active state",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tagkit",
				Subsystem: "query",
				Name:      "requests_total",
				Help:      "Total derived historical queries served",
			},
			[]string{"kind", "status"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tagkit",
				Subsystem: "query",
				Name:      "duration_seconds",
				Help:      "Derived historical query latency",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"kind"},
		),
		TagDefinitions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "tagkit",
				Subsystem: "registry",
				Name:      "tag_definitions",
				Help:      "Number of tag definitions held by the registry",
			},
		),
		ChangeNotifications: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tagkit",
				Subsystem: "registry",
				Name:      "change_notifications_total",
				Help:      "Total configuration-changed notifications scheduled",
			},
		),
	}
}

func (m *CoreMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ValuesPublished,
		m.ValuesDropped,
		m.ActiveSubscriptions,
		m.QueriesTotal,
		m.QueryDuration,
		m.TagDefinitions,
		m.ChangeNotifications,
	}
}
