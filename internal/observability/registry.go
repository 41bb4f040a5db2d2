package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics
// This replaces direct access to global Prometheus metrics with dependency injection
type MetricsRegistry interface {
	// HTTP Request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Decision metrics
	IncrementDecisions(strategy string)
	RecordDecisionLatency(duration time.Duration)
	IncrementNoAd(reason string)
	IncrementDecisionErrors()
	IncrementProviderFallbacks()

	// Event tracking metrics
	IncrementEvent(eventType string)

	// Targeting validation metrics
	IncrementTargetingValidations(outcome string)
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

// HTTP Request metrics
func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// Decision metrics
func (r *PrometheusRegistry) IncrementDecisions(strategy string) {
	DecisionCount.WithLabelValues(strategy).Inc()
}

func (r *PrometheusRegistry) RecordDecisionLatency(duration time.Duration) {
	DecisionLatency.Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementNoAd(reason string) {
	NoAdCount.WithLabelValues(reason).Inc()
}

func (r *PrometheusRegistry) IncrementDecisionErrors() {
	DecisionErrorCount.Inc()
}

func (r *PrometheusRegistry) IncrementProviderFallbacks() {
	ProviderFallbackCount.Inc()
}

// Event tracking metrics
func (r *PrometheusRegistry) IncrementEvent(eventType string) {
	EventCount.WithLabelValues(eventType).Inc()
}

// Targeting validation metrics
func (r *PrometheusRegistry) IncrementTargetingValidations(outcome string) {
	TargetingValidationCount.WithLabelValues(outcome).Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementDecisions(strategy string)                                   {}
func (r *NoOpRegistry) RecordDecisionLatency(duration time.Duration)                         {}
func (r *NoOpRegistry) IncrementNoAd(reason string)                                          {}
func (r *NoOpRegistry) IncrementDecisionErrors()                                             {}
func (r *NoOpRegistry) IncrementProviderFallbacks()                                          {}
func (r *NoOpRegistry) IncrementEvent(eventType string)                                      {}
func (r *NoOpRegistry) IncrementTargetingValidations(outcome string)                         {}
