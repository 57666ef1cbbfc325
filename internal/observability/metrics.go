package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the service. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	tokensIssued    *prometheus.CounterVec
	verifyFailures  *prometheus.CounterVec
	rotations       *prometheus.CounterVec
}

// NewMetrics registers collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "HTTP error responses by error code.",
		}, []string{"method", "path", "code"}),
		tokensIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tokens_issued_total",
			Help: "Signed tokens by type.",
		}, []string{"type"}),
		verifyFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "token_verifications_failed_total",
			Help: "Rejected tokens by reason.",
		}, []string{"reason"}),
		rotations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "token_rotations_total",
			Help: "Refresh rotations by result.",
		}, []string{"result"}),
	}
}

// RecordRequest counts a completed request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError counts an error response.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(method, path, code).Inc()
}

// RecordIssued counts a signed token.
func (m *Metrics) RecordIssued(tokenType string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(tokenType).Inc()
}

// RecordVerificationFailure counts a rejected token.
func (m *Metrics) RecordVerificationFailure(reason string) {
	if m == nil {
		return
	}
	m.verifyFailures.WithLabelValues(reason).Inc()
}

// RecordRotation counts a rotation attempt; result is "ok" or a failure reason.
func (m *Metrics) RecordRotation(result string) {
	if m == nil {
		return
	}
	m.rotations.WithLabelValues(result).Inc()
}
