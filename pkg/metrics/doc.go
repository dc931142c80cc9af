/*
Package metrics provides Prometheus metrics collection and exposition for the
driver: pool occupancy, acquisition latency, routing-table health, managed
transaction retries, and server-reported failures. Metrics are exposed via an
HTTP handler for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                    │          │
	│  │                                              │          │
	│  │  Gauge: Instant values (pooled connections) │          │
	│  │  Counter: Monotonic increases (timeouts)    │          │
	│  │  Histogram: Distributions (acquire latency) │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Pool: Connections, acquire duration/timeouts│          │
	│  │  Routing: Table refresh outcomes            │          │
	│  │  Session: Managed transaction retry outcomes │          │
	│  │  Server: Per-status-code FAILURE counts     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics (mounted by the embedder) │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Metric Registry:
  - Global Prometheus DefaultRegistry
  - All metrics registered at package init
  - Thread-safe for concurrent updates

Collector:
  - Polls a *pool.Pool on a 15s ticker via Start/Stop
  - Populates PoolConnections per address/state from pool.Pool.Stats

Timer Helper:
  - Convenience wrapper for timing operations
  - Start timer, observe duration to a histogram
  - Supports label values for histogram vectors

# Metrics Catalog

Pool Metrics:

warren_bolt_pool_connections{address, state}:
  - Type: Gauge
  - Description: Pooled connections by address and state (idle, in_use)
  - Labels: address, state
  - Example: warren_bolt_pool_connections{address="localhost:7687",state="idle"} 3

warren_bolt_pool_acquire_duration_seconds:
  - Type: Histogram
  - Description: Time spent acquiring a connection from the pool
  - Buckets: Default Prometheus buckets

warren_bolt_pool_acquire_timeouts_total:
  - Type: Counter
  - Description: Total connection acquisitions that exceeded their deadline

Routing Metrics:

warren_bolt_routing_table_refreshes_total{outcome}:
  - Type: Counter
  - Description: Total routing-table refresh attempts by outcome
  - Labels: outcome (ok, fatal, exhausted)

Session Metrics:

warren_bolt_session_retries_total{outcome}:
  - Type: Counter
  - Description: Total managed-transaction retry attempts by outcome
  - Labels: outcome (success, exhausted)

Server Metrics:

warren_bolt_server_errors_total{code}:
  - Type: Counter
  - Description: Total server-reported FAILUREs by status code
  - Labels: code (e.g. Neo.ClientError.Security.Unauthorized)

# Usage

Updating Gauge Metrics:

	import "github.com/cuemby/warren-bolt/pkg/metrics"

	metrics.PoolConnections.WithLabelValues("localhost:7687", "idle").Set(3)

Updating Counter Metrics:

	metrics.PoolAcquireTimeoutsTotal.Inc()
	metrics.RoutingTableRefreshesTotal.WithLabelValues("ok").Inc()

Recording Histogram Observations:

	// Direct observation
	metrics.PoolAcquireDuration.Observe(0.012)

	// Using the Timer helper
	timer := metrics.NewTimer()
	conn, err := p.Acquire(ctx, mode, database, impersonatedUser)
	timer.ObserveDuration(metrics.PoolAcquireDuration)

Running the Collector:

	c := metrics.NewCollector(p)
	c.Start()
	defer c.Stop()

	http.Handle("/metrics", metrics.Handler())
	http.ListenAndServe(":9090", nil)

# Integration Points

This package integrates with:

  - pkg/pool: Collector polls Pool.Stats and sets PoolConnections
  - Prometheus: Scrapes /metrics endpoint

PoolAcquireDuration, PoolAcquireTimeoutsTotal, RoutingTableRefreshesTotal,
SessionRetriesTotal and ServerErrorsTotal are registered and exported, but no
package in this module records into them; they change only when the
embedding application observes or increments them itself, as in the
examples above.

# Design Patterns

Package Init Registration:
  - All metrics registered in init() function
  - MustRegister panics on duplicate registration

Label Discipline:
  - Use WithLabelValues for cardinality-bounded labels
  - address is bounded by cluster topology, not request volume
  - code is bounded by the Neo4j status-code catalog

Timer Pattern:
  - Create timer at operation start
  - Defer or explicitly call ObserveDuration
  - Supports both simple and vector histograms

# Troubleshooting

Missing Metrics:
  - Check: Metric registered in init() function
  - Check: MustRegister called (panics if duplicate)

High Cardinality:
  - Cause: labeling by bookmark, query text, or session ID
  - Solution: keep labels to address/outcome/code only

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
