package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the Prometheus collectors exposed by the service.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	LoginOutcomes   *prometheus.CounterVec
	CodesIssued     *prometheus.CounterVec
}

// NewMetrics registers the service collectors on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "auth",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		LoginOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "login_outcomes_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),
		CodesIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "one_time_codes_issued_total",
			Help:      "One-time codes issued by purpose",
		}, []string{"purpose"}),
	}
}
