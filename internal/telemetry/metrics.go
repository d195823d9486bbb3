package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP request latency, labeled by the matched
// chi route pattern rather than the raw path so cardinality stays bounded.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "dss",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// MutationsTotal is a counter of subscription/operation mutations labeled by
// resource, verb, and outcome. It is registered but nothing in this node
// increments it, so it always reads zero.
var MutationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dss",
		Subsystem: "coordination",
		Name:      "mutations_total",
		Help:      "Total number of subscription/operation mutations by resource, verb, and outcome.",
	},
	[]string{"resource", "verb", "outcome"},
)

// NotificationsPlannedTotal is an unlabeled counter of subscriber entries in
// notification fan-out plans. It is registered but nothing in this node
// increments it, so it always reads zero.
var NotificationsPlannedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "dss",
		Subsystem: "coordination",
		Name:      "notifications_planned_total",
		Help:      "Total number of subscriber notification entries produced by the planner.",
	},
)

// AuthFailuresTotal is a counter of rejected requests labeled by auth
// failure kind. It is registered but nothing in this node increments it, so
// it always reads zero.
var AuthFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dss",
		Subsystem: "auth",
		Name:      "failures_total",
		Help:      "Total number of rejected requests by auth failure kind.",
	},
	[]string{"kind"},
)

// All returns the DSS-specific metrics for registration, in addition to the
// shared HTTPRequestDuration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		MutationsTotal,
		NotificationsPlannedTotal,
		AuthFailuresTotal,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process
// collectors, the shared HTTPRequestDuration metric, and any additional
// service-specific collectors passed as arguments.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}
