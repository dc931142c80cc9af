// Package metrics defines the driver's Prometheus metrics (spec.md
// SPEC_FULL §2.1); only the pool gauge is filled in here, by the Collector
// (see doc.go "Integration Points"). Grounded on the teacher's
// pkg/metrics/metrics.go: package-level GaugeVec/CounterVec/HistogramVec
// values, an init()-time prometheus.MustRegister block, and a Timer helper
// kept verbatim in spirit.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PoolConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "warren_bolt_pool_connections",
			Help: "Pooled connections by address and state (idle, in_use)",
		},
		[]string{"address", "state"},
	)

	PoolAcquireDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warren_bolt_pool_acquire_duration_seconds",
			Help:    "Time spent acquiring a connection from the pool",
			Buckets: prometheus.DefBuckets,
		},
	)

	PoolAcquireTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warren_bolt_pool_acquire_timeouts_total",
			Help: "Total number of connection acquisitions that exceeded their deadline",
		},
	)

	RoutingTableRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warren_bolt_routing_table_refreshes_total",
			Help: "Total number of routing-table refresh attempts by outcome",
		},
		[]string{"outcome"}, // ok | fatal | exhausted
	)

	SessionRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warren_bolt_session_retries_total",
			Help: "Total number of managed-transaction retry attempts by outcome",
		},
		[]string{"outcome"}, // success | exhausted
	)

	ServerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warren_bolt_server_errors_total",
			Help: "Total number of server-reported FAILUREs by status code",
		},
		[]string{"code"},
	)
)

func init() {
	prometheus.MustRegister(PoolConnections)
	prometheus.MustRegister(PoolAcquireDuration)
	prometheus.MustRegister(PoolAcquireTimeoutsTotal)
	prometheus.MustRegister(RoutingTableRefreshesTotal)
	prometheus.MustRegister(SessionRetriesTotal)
	prometheus.MustRegister(ServerErrorsTotal)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer times one operation and files its duration into a histogram.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
