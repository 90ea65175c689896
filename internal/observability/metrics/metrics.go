package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lendingdesk_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lendingdesk_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	borrowSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lendingdesk_borrow_submissions_total",
		Help: "Borrow request submissions by result",
	}, []string{"result"})

	borrowDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lendingdesk_borrow_decisions_total",
		Help: "Librarian decisions on borrow requests by outcome",
	}, []string{"outcome"})

	catalogCacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lendingdesk_catalog_cache_total",
		Help: "Catalog snapshot cache lookups by result",
	}, []string{"result"})

	openLoans = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lendingdesk_open_loans",
		Help: "Number of loans whose date range covers today",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveSubmission counts one borrow submission with its result
// (created, conflict, invalid, not_found, error).
func ObserveSubmission(result string) {
	borrowSubmissions.WithLabelValues(result).Inc()
}

// ObserveDecision counts one decision with its outcome
// (approved, denied, conflict, invalid, not_found, forbidden, error).
func ObserveDecision(outcome string) {
	borrowDecisions.WithLabelValues(outcome).Inc()
}

// ObserveCatalogCache counts one cache lookup (hit, miss, bypass, error).
func ObserveCatalogCache(result string) {
	catalogCacheOps.WithLabelValues(result).Inc()
}

// SetOpenLoans sets the open-loans gauge
func SetOpenLoans(count int) {
	if count < 0 {
		count = 0
	}
	openLoans.Set(float64(count))
}
