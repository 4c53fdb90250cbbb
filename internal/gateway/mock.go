package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// MockRunner is a deterministic runner used by unit tests. Outputs and
// errors are keyed by the space-joined argv following the tool path.
type MockRunner struct {
	mu sync.Mutex

	Calls [][]string

	Outputs map[string][]byte
	Errors  map[string]error
	// Default answers calls without a configured output.
	Default []byte
}

func (m *MockRunner) CombinedOutput(_ context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := append([]string{name}, args...)
	m.Calls = append(m.Calls, call)
	key := mockKey(call)
	out := m.Outputs[key]
	if err, ok := m.Errors[key]; ok {
		return out, err
	}
	if out == nil {
		if m.Default != nil {
			return m.Default, nil
		}
		return nil, errors.New("mock output not configured: " + key)
	}
	return out, nil
}

// Subcommands returns the argv of every call after the tool path.
func (m *MockRunner) Subcommands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Calls))
	for _, call := range m.Calls {
		out = append(out, mockKey(call))
	}
	return out
}

// mockKey drops the privilege prefix and tool path from a call.
func mockKey(call []string) string {
	for i, arg := range call {
		if strings.HasSuffix(arg, ToolName) {
			return strings.Join(call[i+1:], " ")
		}
	}
	return strings.Join(call, " ")
}
