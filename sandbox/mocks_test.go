package sandbox

import (
	"context"
	"sync"
)

// MockCommandRunner implements CommandRunner for testing. Every call is
// recorded so tests can assert that certain paths never spawn anything.
type MockCommandRunner struct {
	mu      sync.Mutex
	calls   []CommandSpec
	handler func(ctx context.Context, spec CommandSpec) (CommandOutput, error)
}

func (m *MockCommandRunner) RunCommand(ctx context.Context, spec CommandSpec) (CommandOutput, error) {
	m.mu.Lock()
	m.calls = append(m.calls, spec)
	m.mu.Unlock()

	if m.handler != nil {
		return m.handler(ctx, spec)
	}
	return CommandOutput{}, nil
}

// Calls returns a snapshot of the recorded invocations.
func (m *MockCommandRunner) Calls() []CommandSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CommandSpec(nil), m.calls...)
}

// CallCount returns how many commands were executed.
func (m *MockCommandRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
