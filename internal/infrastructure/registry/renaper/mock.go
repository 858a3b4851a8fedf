package renaper

import (
	"context"
	"sync"
	"time"

	"celiaquia/internal/ports"
)

// MockClient answers from a fixed table and accepts everything else. It backs
// local runs without RENAPER credentials and usecase tests.
type MockClient struct {
	Latency time.Duration

	mu       sync.Mutex
	outcomes map[string]ports.RenaperOutcome
	calls    map[string]int
}

var _ ports.RenaperClient = (*MockClient)(nil)

func NewMockClient() *MockClient {
	return &MockClient{
		outcomes: make(map[string]ports.RenaperOutcome),
		calls:    make(map[string]int),
	}
}

// Set fixes the outcome returned for documento.
func (m *MockClient) Set(documento string, outcome ports.RenaperOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[documento] = outcome
}

// Calls reports how many times documento was verified.
func (m *MockClient) Calls(documento string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[documento]
}

func (m *MockClient) Verify(ctx context.Context, q ports.RenaperQuery) ports.RenaperResult {
	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return ports.RenaperResult{Outcome: ports.RenaperUnavailable, Detail: ctx.Err().Error()}
		case <-time.After(m.Latency):
		}
	}

	m.mu.Lock()
	m.calls[q.Documento]++
	outcome, ok := m.outcomes[q.Documento]
	m.mu.Unlock()

	if !ok {
		outcome = ports.RenaperAccepted
	}
	return ports.RenaperResult{Outcome: outcome, Detail: "mock " + string(outcome)}
}
