// Package metrics holds the Prometheus collectors of the service.
//   - http_request_total / http_request_duration_seconds / http_request_in_flight
//   - responda_pdf_render_total, responda_presign_total, responda_draft_save_total
//   - responda_jobs_run_total
//
// All collectors are registered with the default registry at init.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBuckets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets",
			Help: "Number of per-client rate limiter buckets",
		},
	)

	PDFRenders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "responda_pdf_render_total",
			Help: "PDF reports rendered by report kind and result",
		},
		[]string{"kind", "result"},
	)

	PresignRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "responda_presign_total",
			Help: "Presign relay requests by storage backend and result",
		},
		[]string{"backend", "result"},
	)

	DraftSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "responda_draft_save_total",
			Help: "Draft auto-saves by result",
		},
		[]string{"result"},
	)

	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "responda_jobs_run_total",
			Help: "Scheduled job executions by job and result",
		},
		[]string{"job", "result"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBuckets)
	prometheus.MustRegister(PDFRenders)
	prometheus.MustRegister(PresignRequests)
	prometheus.MustRegister(DraftSaves)
	prometheus.MustRegister(JobRuns)
}

// Result maps an error to the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
