package sintys

import (
	"context"
	"sync"

	"celiaquia/internal/errs"
	"celiaquia/internal/ports"
)

// MockClient reports NO_MATCH for every documento unless told otherwise.
type MockClient struct {
	mu      sync.Mutex
	matches map[string]string
	down    bool
	calls   int
}

var _ ports.SintysClient = (*MockClient)(nil)

func NewMockClient() *MockClient {
	return &MockClient{matches: make(map[string]string)}
}

// SetMatch flags documento as already receiving a benefit.
func (m *MockClient) SetMatch(documento, observacion string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[documento] = observacion
}

// SetDown makes every call fail as unavailable.
func (m *MockClient) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockClient) CrossCheck(_ context.Context, queries []ports.SintysQuery) (map[string]ports.SintysVerdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.down {
		return nil, errs.E(errs.KindExternalUnavailable, "sintys mock is down")
	}

	out := make(map[string]ports.SintysVerdict, len(queries))
	for _, q := range queries {
		obs, match := m.matches[q.Documento]
		out[q.Documento] = ports.SintysVerdict{Documento: q.Documento, Match: match, Observacion: obs}
	}
	return out, nil
}
