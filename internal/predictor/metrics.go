package predictor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts prediction attempts.
	// Labels: outcome (success, service_error, transport_error, invalid_input)
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricecast",
			Subsystem: "predictor",
			Name:      "requests_total",
			Help:      "Total number of prediction requests by outcome",
		},
		[]string{"outcome"},
	)

	// RequestDuration tracks round-trip time to the regression backend.
	RequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pricecast",
			Subsystem: "predictor",
			Name:      "request_duration_seconds",
			Help:      "Duration of prediction requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// PendingSubmissions is 1 while a form submission is outstanding.
	PendingSubmissions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pricecast",
			Subsystem: "form",
			Name:      "pending",
			Help:      "Number of outstanding form submissions (0 or 1 per form)",
		},
	)
)

func recordOutcome(r Result) {
	RequestsTotal.WithLabelValues(r.Outcome()).Inc()
}
