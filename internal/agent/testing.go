package agent

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// RegistryOf builds a registry from explicit adapters, bypassing config.
// Later duplicates of a name are ignored. Agentic capability resolves the
// same way NewRegistry resolves it.
func RegistryOf(adapters ...Adapter) *Registry {
	reg := &Registry{
		adapters: make(map[string]Adapter, len(adapters)),
		agentic:  make(map[string]bool, len(adapters)),
	}
	for _, a := range adapters {
		name := a.Name()
		if _, seen := reg.adapters[name]; seen {
			continue
		}
		reg.adapters[name] = a
		_, reg.agentic[name] = Agentic(a)
		reg.names = append(reg.names, name)
	}
	sort.Strings(reg.names)
	return reg
}

// Mock is a scriptable read-only adapter for tests. Outcomes are
// consumed in order; the last one repeats once the script runs out.
type Mock struct {
	AgentName    string
	Display      string
	Availability bool

	// Handler, when set, computes outcomes instead of the script.
	Handler func(ctx context.Context, task Task) Outcome

	mu       sync.Mutex
	outcomes []Outcome
	calls    []Task
}

// NewMock returns an available mock that replays the given outcomes.
// With no outcomes scripted it always succeeds with output "ok".
func NewMock(name string, outcomes ...Outcome) *Mock {
	return &Mock{
		AgentName:    name,
		Display:      "Mock (" + name + ")",
		Availability: true,
		outcomes:     outcomes,
	}
}

func (m *Mock) Name() string        { return m.AgentName }
func (m *Mock) DisplayName() string { return m.Display }
func (m *Mock) Available() bool     { return m.Availability }

func (m *Mock) Execute(ctx context.Context, task Task) Outcome {
	if !m.Availability {
		return unavailableOutcome(m.AgentName, m.Display)
	}
	if m.Handler != nil {
		m.mu.Lock()
		m.calls = append(m.calls, task)
		m.mu.Unlock()
		out := m.Handler(ctx, task)
		if out.Agent == "" {
			out.Agent = m.AgentName
		}
		return out
	}
	return m.next(task)
}

func (m *Mock) next(task Task) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, task)

	var out Outcome
	switch {
	case len(m.outcomes) == 0:
		out = Outcome{Status: StatusSuccess, Output: "ok"}
	case len(m.calls) <= len(m.outcomes):
		out = m.outcomes[len(m.calls)-1]
	default:
		out = m.outcomes[len(m.outcomes)-1]
	}
	if out.Agent == "" {
		out.Agent = m.AgentName
	}
	return out
}

// Calls returns a copy of every task the mock received.
func (m *Mock) Calls() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Task, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the mock was invoked.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastTask returns the most recent task, if any.
func (m *Mock) LastTask() (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return Task{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// AgenticMock is a Mock that also writes files natively, standing in for
// backends like Claude Code. On every agentic call it materializes Files
// under the task working directory before replaying the next outcome.
type AgenticMock struct {
	Mock

	// Files maps relative paths to contents written on agentic calls.
	Files map[string]string

	amu          sync.Mutex
	agenticCalls []Task
}

// NewAgenticMock returns an available file-writing mock.
func NewAgenticMock(name string, outcomes ...Outcome) *AgenticMock {
	return &AgenticMock{Mock: *NewMock(name, outcomes...)}
}

func (m *AgenticMock) ExecuteAgentic(ctx context.Context, task Task) Outcome {
	if !m.Availability {
		return unavailableOutcome(m.AgentName, m.Display)
	}
	m.amu.Lock()
	m.agenticCalls = append(m.agenticCalls, task)
	m.amu.Unlock()

	for rel, content := range m.Files {
		path := filepath.Join(task.WorkingDir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return failedOutcome(m.AgentName, err.Error(), 0)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return failedOutcome(m.AgentName, err.Error(), 0)
		}
	}
	return m.Execute(ctx, task)
}

// AgenticCallCount returns how many agentic invocations happened.
func (m *AgenticMock) AgenticCallCount() int {
	m.amu.Lock()
	defer m.amu.Unlock()
	return len(m.agenticCalls)
}
