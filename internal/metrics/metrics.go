package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sankhya"

var (
	// HTTP Request Metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code",
		},
		[]string{"method", "route", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "status_code"},
	)

	httpRequestSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "route"},
	)

	httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "route", "status_code"},
	)

	httpActiveRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "active_requests",
			Help:      "Number of currently active HTTP requests",
		},
	)

	// Request Identifier Metrics
	identifiersResolvedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identifiers_resolved_total",
			Help:      "Total number of request identifiers resolved by kind and origin",
		},
		[]string{"kind", "origin"}, // origin: client, generated, replaced
	)

	// Upstream Metrics
	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total number of upstream requests by host and status",
		},
		[]string{"host", "status_code"},
	)

	upstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Upstream request duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"host"},
	)

	upstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "errors_total",
			Help:      "Total number of upstream errors",
		},
		[]string{"host", "error_type"}, // timeout, circuit_open, connection
	)

	// Circuit Breaker Metrics
	circuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "circuitbreaker",
			Name:      "state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	circuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "circuitbreaker",
			Name:      "transitions_total",
			Help:      "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Dependency Check Metrics
	dependencyChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dependency_checks_total",
			Help:      "Total number of dependency checks performed by result",
		},
		[]string{"dependency", "result"},
	)

	dependencyCheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dependency_check_duration_seconds",
			Help:      "Duration of dependency checks in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 2},
		},
		[]string{"dependency"},
	)

	once sync.Once
)

// Init initializes and registers all metrics with Prometheus
func Init() {
	once.Do(func() {
		Register(prometheus.DefaultRegisterer)
	})
}

// Register registers all metrics with reg
func Register(reg prometheus.Registerer) {
	// HTTP metrics
	reg.MustRegister(httpRequestsTotal)
	reg.MustRegister(httpRequestDuration)
	reg.MustRegister(httpRequestSize)
	reg.MustRegister(httpResponseSize)
	reg.MustRegister(httpActiveRequests)

	// Identifier metrics
	reg.MustRegister(identifiersResolvedTotal)

	// Upstream metrics
	reg.MustRegister(upstreamRequestsTotal)
	reg.MustRegister(upstreamRequestDuration)
	reg.MustRegister(upstreamErrorsTotal)

	// Circuit breaker metrics
	reg.MustRegister(circuitBreakerState)
	reg.MustRegister(circuitBreakerTransitionsTotal)

	// Dependency check metrics
	reg.MustRegister(dependencyChecksTotal)
	reg.MustRegister(dependencyCheckDuration)
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}

// HTTP Metrics functions
func RecordHTTPRequest(method, route, statusCode string, duration time.Duration, requestSize, responseSize int) {
	httpRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	httpRequestDuration.WithLabelValues(method, route, statusCode).Observe(duration.Seconds())
	httpRequestSize.WithLabelValues(method, route).Observe(float64(requestSize))
	httpResponseSize.WithLabelValues(method, route, statusCode).Observe(float64(responseSize))
}

func IncActiveRequests() {
	httpActiveRequests.Inc()
}

func DecActiveRequests() {
	httpActiveRequests.Dec()
}

// RecordIdentifierResolved counts an identifier by kind and origin
func RecordIdentifierResolved(kind, origin string) {
	identifiersResolvedTotal.WithLabelValues(kind, origin).Inc()
}

// Upstream Metrics functions
func RecordUpstreamRequest(host, statusCode string, duration time.Duration) {
	upstreamRequestsTotal.WithLabelValues(host, statusCode).Inc()
	upstreamRequestDuration.WithLabelValues(host).Observe(duration.Seconds())
}

func RecordUpstreamError(host, errorType string) {
	upstreamErrorsTotal.WithLabelValues(host, errorType).Inc()
}

// Circuit Breaker Metrics functions
func SetCircuitBreakerState(name string, state int) {
	circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func RecordCircuitBreakerTransition(name, fromState, toState string) {
	circuitBreakerTransitionsTotal.WithLabelValues(name, fromState, toState).Inc()
}

// RecordDependencyCheck counts a dependency check; result is "ok" or "fail"
func RecordDependencyCheck(dependency, result string, duration time.Duration) {
	dependencyChecksTotal.WithLabelValues(dependency, result).Inc()
	dependencyCheckDuration.WithLabelValues(dependency).Observe(duration.Seconds())
}
