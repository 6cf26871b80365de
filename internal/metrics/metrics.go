// Package metrics exposes the Prometheus instrumentation for the gateway:
// API operations, cache hit/miss, connection pool saturation, circuit
// breaker state, rate limiting, and auth outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_api_operations_total",
			Help: "Total number of RBAC/service-layer operations processed",
		},
		[]string{"operation", "resource", "status"},
	)

	apiOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_api_operation_duration_seconds",
			Help:    "Duration of RBAC/service-layer operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "resource"},
	)

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_errors_total",
			Help: "Total number of errors by subsystem",
		},
		[]string{"subsystem", "operation"},
	)

	// HTTP Request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Cache metrics (result cache + schema cache)
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_cache_requests_total",
			Help: "Total number of cache requests",
		},
		[]string{"operation", "result"}, // cache tier or store operation, e.g. result/get/set_session; hit/miss/shared_fetch/success/error
	)

	CacheRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_cache_request_duration_seconds",
			Help:    "Cache request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"operation"},
	)

	// Connection pool metrics (per tenant)
	PoolConnectionsInUse = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_pool_connections_in_use",
			Help: "Connections currently checked out of a tenant pool",
		},
		[]string{"tenant_id"},
	)

	PoolConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_pool_connections_idle",
			Help: "Idle connections sitting in a tenant pool",
		},
		[]string{"tenant_id"},
	)

	PoolAcquireDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_pool_acquire_duration_seconds",
			Help:    "Time spent waiting to acquire a pooled connection",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"tenant_id"},
	)

	PoolAcquireTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_pool_acquire_timeouts_total",
			Help: "Total number of connection acquisitions that timed out",
		},
		[]string{"tenant_id"},
	)

	// Circuit breaker metrics (per tenant)
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_breaker_state",
			Help: "Circuit breaker state per tenant (0=closed, 1=open, 2=half_open)",
		},
		[]string{"tenant_id"},
	)

	BreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_breaker_trips_total",
			Help: "Total number of times a tenant's breaker tripped open",
		},
		[]string{"tenant_id"},
	)

	// Rate limiter metrics
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"tenant_id", "scope"}, // scope: user, ip
	)

	// Query dispatch metrics
	QueryExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_query_execution_duration_seconds",
			Help:    "Query execution duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
		[]string{"tenant_id", "status"},
	)

	QueryRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_query_rejections_total",
			Help: "Total number of queries rejected before execution",
		},
		[]string{"tenant_id", "reason"},
	)

	// Auth / session metrics
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"method", "result"},
	)

	ActiveSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_sessions_active",
			Help: "Number of active user sessions",
		},
		[]string{"tenant_id"},
	)
)

// RecordAPIOperation records the outcome and latency of a service-layer
// operation (role/permission/tenant/session/access-request CRUD).
func RecordAPIOperation(operation, resource string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
		errorsTotal.WithLabelValues("api", resource).Inc()
	}

	apiOperationsTotal.WithLabelValues(operation, resource, status).Inc()
	apiOperationDuration.WithLabelValues(operation, resource).Observe(duration.Seconds())
}

// RecordCacheOperation records a cache hit/miss/error outcome.
func RecordCacheOperation(operation, result string) {
	CacheRequestsTotal.WithLabelValues(operation, result).Inc()
	if result == "error" {
		errorsTotal.WithLabelValues("cache", operation).Inc()
	}
}

// RecordAuthAttempt records authentication attempt metrics.
func RecordAuthAttempt(method, result string) {
	AuthAttemptsTotal.WithLabelValues(method, result).Inc()
	if result == "failure" {
		errorsTotal.WithLabelValues("auth", method).Inc()
	}
}
