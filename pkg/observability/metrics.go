package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Token lifecycle metrics
	AuthAttemptsTotal           *prometheus.CounterVec
	TokensIssuedTotal           *prometheus.CounterVec
	TokensRevokedTotal          *prometheus.CounterVec
	RevocationsPurgedTotal      *prometheus.CounterVec
	RevocationCacheLookupsTotal *prometheus.CounterVec
	LoginRateLimitedTotal       *prometheus.CounterVec

	// Database metrics
	DBConnectionsOpen         prometheus.Gauge
	DBConnectionsInUse        prometheus.Gauge
	DBConnectionsIdle         prometheus.Gauge
	DBConnectionsWaitCount    prometheus.Gauge
	DBConnectionsWaitDuration prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adlbuilder_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adlbuilder_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adlbuilder_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adlbuilder_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adlbuilder_auth_attempts_total",
				Help: "Bearer token authentication attempts by expected token type and outcome",
			},
			[]string{"type", "outcome"},
		),
		TokensIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adlbuilder_tokens_issued_total",
				Help: "Total number of tokens issued",
			},
			[]string{"type"},
		),
		TokensRevokedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adlbuilder_tokens_revoked_total",
				Help: "Total number of tokens added to the revocation ledger",
			},
			[]string{"type"},
		),
		RevocationsPurgedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adlbuilder_revocations_purged_total",
				Help: "Total number of revocation entries removed",
			},
			[]string{"reason"},
		),
		RevocationCacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adlbuilder_revocation_cache_lookups_total",
				Help: "Revocation cache lookups by result",
			},
			[]string{"result"},
		),
		LoginRateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adlbuilder_login_rate_limited_total",
				Help: "Login attempts rejected by the rate limiter",
			},
			[]string{"backend"},
		),

		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "adlbuilder_db_connections_open",
				Help: "Number of established database connections",
			},
		),
		DBConnectionsInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "adlbuilder_db_connections_in_use",
				Help: "Number of database connections currently in use",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "adlbuilder_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "adlbuilder_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
		DBConnectionsWaitDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "adlbuilder_db_connections_wait_duration_seconds",
				Help: "Total time spent waiting for connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.AuthAttemptsTotal,
		m.TokensIssuedTotal,
		m.TokensRevokedTotal,
		m.RevocationsPurgedTotal,
		m.RevocationCacheLookupsTotal,
		m.LoginRateLimitedTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.DBConnectionsWaitDuration,
	)

	return m
}

// The Record helpers accept a nil receiver so callers can run without metrics.

// RecordAuthAttempt counts one gate decision
func (m *Metrics) RecordAuthAttempt(tokenType, outcome string) {
	if m == nil {
		return
	}
	m.AuthAttemptsTotal.WithLabelValues(tokenType, outcome).Inc()
}

// RecordTokenIssued counts one minted token
func (m *Metrics) RecordTokenIssued(tokenType string) {
	if m == nil {
		return
	}
	m.TokensIssuedTotal.WithLabelValues(tokenType).Inc()
}

// RecordTokenRevoked counts one new ledger entry
func (m *Metrics) RecordTokenRevoked(tokenType string) {
	if m == nil {
		return
	}
	m.TokensRevokedTotal.WithLabelValues(tokenType).Inc()
}

// RecordRevocationsPurged adds n removed ledger entries
func (m *Metrics) RecordRevocationsPurged(reason string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.RevocationsPurgedTotal.WithLabelValues(reason).Add(float64(n))
}

// RecordRevocationCacheLookup counts a cache hit or miss
func (m *Metrics) RecordRevocationCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.RevocationCacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordRateLimited counts a rejected login attempt
func (m *Metrics) RecordRateLimited(backend string) {
	if m == nil {
		return
	}
	m.LoginRateLimitedTotal.WithLabelValues(backend).Inc()
}

// UpdateDBStats copies connection pool statistics into the gauges
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
	m.DBConnectionsWaitDuration.Set(stats.WaitDuration.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel prefers the matched mux template so ids do not explode cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Mount it with router.Use so the matched route template is available.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			path := routeLabel(r)

			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, path).Observe(float64(r.ContentLength))
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
