package observability

import (
	"sync"
	"time"
)

// MockMetricsRegistry is a MetricsRegistry that counts calls for testing.
type MockMetricsRegistry struct {
	mu          sync.Mutex
	Requests    int
	Decisions   map[string]int
	NoAds       map[string]int
	Errors      int
	Fallbacks   int
	Events      map[string]int
	Validations map[string]int
}

func NewMockMetricsRegistry() *MockMetricsRegistry {
	return &MockMetricsRegistry{
		Decisions:   make(map[string]int),
		NoAds:       make(map[string]int),
		Events:      make(map[string]int),
		Validations: make(map[string]int),
	}
}

func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests++
}

func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}

func (m *MockMetricsRegistry) IncrementDecisions(strategy string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Decisions[strategy]++
}

func (m *MockMetricsRegistry) RecordDecisionLatency(duration time.Duration) {}

func (m *MockMetricsRegistry) IncrementNoAd(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NoAds[reason]++
}

func (m *MockMetricsRegistry) IncrementDecisionErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors++
}

func (m *MockMetricsRegistry) IncrementProviderFallbacks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fallbacks++
}

func (m *MockMetricsRegistry) IncrementEvent(eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events[eventType]++
}

func (m *MockMetricsRegistry) IncrementTargetingValidations(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Validations[outcome]++
}
