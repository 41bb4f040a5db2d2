package analytics

import (
	"context"
	"sync"
)

var _ Recorder = (*MockRecorder)(nil)

// MockRecorder is an in-memory Recorder for testing.
type MockRecorder struct {
	mu     sync.Mutex
	Events []Event
}

// NewMockRecorder creates a new mock recorder instance.
func NewMockRecorder() *MockRecorder {
	return &MockRecorder{}
}

// RecordEvent appends the event to the in-memory log.
func (m *MockRecorder) RecordEvent(ctx context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
	return nil
}

// ByType returns the recorded events matching the given type.
func (m *MockRecorder) ByType(eventType string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, ev := range m.Events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}
