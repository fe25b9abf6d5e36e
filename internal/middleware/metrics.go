package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metrics for application monitoring. All metrics are
// registered in the default registry and exposed via /metrics.

var (
	// httpRequestsTotal counts all HTTP requests by method, path, and status.
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration measures request processing time.
	// Use for latency analysis and SLO tracking (P50, P95, P99).
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// httpResponseSize tracks response body sizes for bandwidth monitoring.
	httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// loginAttemptsTotal counts credential and OAuth login attempts by
	// method and result. Use for security monitoring: a spike in
	// invalid_credentials usually means a credential-stuffing run.
	//
	// Labels: method (password, google), result (success, invalid_credentials, invalid_state, error)
	loginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"method", "result"},
	)

	// signupsTotal counts signup attempts by result.
	//
	// Labels: result (success, duplicate_email, validation_failed, error)
	signupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_signups_total",
			Help: "Total number of signup attempts",
		},
		[]string{"result"},
	)

	// sessionsDestroyedTotal counts logouts.
	sessionsDestroyedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_sessions_destroyed_total",
			Help: "Total number of destroyed sessions",
		},
	)

	// checkoutsTotal counts checkout session creations by result.
	//
	// Labels: result (success, not_found, gateway_error)
	checkoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_checkouts_total",
			Help: "Total number of checkout session attempts",
		},
		[]string{"result"},
	)

	// productsRegisteredTotal counts new listings by type.
	productsRegisteredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_products_registered_total",
			Help: "Total number of registered products",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpResponseSize)
	prometheus.MustRegister(loginAttemptsTotal)
	prometheus.MustRegister(signupsTotal)
	prometheus.MustRegister(sessionsDestroyedTotal)
	prometheus.MustRegister(checkoutsTotal)
	prometheus.MustRegister(productsRegisteredTotal)
}

// Metrics creates middleware recording request count, duration, and
// response size for every request.
//
// Example Prometheus queries:
//
//	# Request rate by endpoint
//	rate(http_requests_total[5m])
//
//	# P95 latency
//	histogram_quantile(0.95, rate(http_request_duration_seconds_bucket[5m]))
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(ww.Status())

			httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			httpResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(ww.BytesWritten()))
		})
	}
}

// MetricsHandler returns the Prometheus metrics HTTP handler exposing
// all registered metrics in text exposition format.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordLoginAttempt increments the login attempts counter.
// method is "password" or "google"; result describes the outcome.
func RecordLoginAttempt(method, result string) {
	loginAttemptsTotal.WithLabelValues(method, result).Inc()
}

// RecordSignup increments the signup counter with the given result.
func RecordSignup(result string) {
	signupsTotal.WithLabelValues(result).Inc()
}

// RecordSessionDestroyed increments the logout counter.
func RecordSessionDestroyed() {
	sessionsDestroyedTotal.Inc()
}

// RecordCheckout increments the checkout counter with the given result.
func RecordCheckout(result string) {
	checkoutsTotal.WithLabelValues(result).Inc()
}

// RecordProductRegistered increments the product registration counter.
func RecordProductRegistered(productType string) {
	productsRegisteredTotal.WithLabelValues(productType).Inc()
}
