package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addecide_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "addecide_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// decisions served, labelled by the rotation strategy that picked them
	DecisionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addecide_decisions_total",
			Help: "Total ad decisions served",
		},
		[]string{"strategy"},
	)

	// decision latency in seconds
	DecisionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "addecide_decision_duration_seconds",
			Help:    "Histogram of decision pipeline latencies",
			Buckets: prometheus.DefBuckets,
		},
	)

	// number of no-ad responses, labelled by reason
	NoAdCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addecide_no_ad_total",
			Help: "Total no-ad responses by reason",
		},
		[]string{"reason"},
	)

	// decision errors
	DecisionErrorCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "addecide_decision_errors_total",
			Help: "Total decision requests that failed",
		},
	)

	// number of events recorded, labelled by type
	EventCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addecide_events_total",
			Help: "Total events recorded",
		},
		[]string{"type"},
	)

	// third-party provider fallbacks served
	ProviderFallbackCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "addecide_provider_fallback_total",
			Help: "Total decisions served from a provider tag fallback",
		},
	)

	// targeting validation outcomes
	TargetingValidationCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addecide_targeting_validation_total",
			Help: "Total targeting rule validations",
		},
		[]string{"outcome"},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		DecisionCount,
		DecisionLatency,
		NoAdCount,
		DecisionErrorCount,
		EventCount,
		ProviderFallbackCount,
		TargetingValidationCount,
	)
}
