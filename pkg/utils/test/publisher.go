package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/nickyai/memex/pkg/eventstream"
)

// MockPublisher records every published fact event.
type MockPublisher struct {
	mu sync.Mutex

	// Events accumulates all events passed to Publish.
	Events []*eventstream.FactEvent

	// FailPublish causes Publish to return an error.
	FailPublish bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(_ context.Context, event *eventstream.FactEvent) error {
	if event == nil {
		return eventstream.ErrNilFactEvent
	}
	if m.FailPublish {
		return fmt.Errorf("mock publish failure")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// EventsOfType returns the recorded events matching the type, in publish
// order.
func (m *MockPublisher) EventsOfType(eventType eventstream.EventType) []*eventstream.FactEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*eventstream.FactEvent
	for _, event := range m.Events {
		if event.EventType == eventType {
			out = append(out, event)
		}
	}
	return out
}
