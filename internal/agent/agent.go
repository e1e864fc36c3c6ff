// Package agent defines the adapter contract for AI coding backends and
// ships adapters for Claude Code, Gemini CLI, GitHub Copilot, and direct
// Gemini API access.
//
// Backend failures are data, not errors: a missing CLI yields an Outcome
// with StatusUnavailable, a killed process yields StatusTimeout. Callers
// branch on Status so one broken backend never aborts a whole dispatch.
package agent

import (
	"context"
	"fmt"
	"time"
)

// Status is the terminal state of one agent invocation.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusFailed      Status = "failed"
	StatusTimeout     Status = "timeout"
	StatusUnavailable Status = "unavailable"
)

// Task carries one prompt to a backend.
type Task struct {
	// WorkingDir is the project directory the backend operates in.
	WorkingDir string

	// Prompt is the user-facing request.
	Prompt string

	// SystemPrompt optionally steers backends that support one.
	SystemPrompt string

	// MaxBudgetUSD caps spend for backends that enforce budgets.
	// Zero means the adapter's configured default.
	MaxBudgetUSD float64

	// Timeout bounds the invocation. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout bounds invocations whose Task carries no timeout.
const DefaultTimeout = 2 * time.Minute

// Deadline returns the effective timeout for the task.
func (t Task) Deadline() time.Duration {
	if t.Timeout > 0 {
		return t.Timeout
	}
	return DefaultTimeout
}

// Outcome is the uniform result of one agent invocation.
type Outcome struct {
	Agent        string
	Output       string
	Status       Status
	Duration     time.Duration
	CostUSD      float64
	Model        string
	InputTokens  int
	OutputTokens int

	// Detail holds diagnostic text for non-success statuses.
	Detail string
}

// Success reports whether the invocation completed normally.
func (o Outcome) Success() bool {
	return o.Status == StatusSuccess
}

// Adapter is the minimum contract every backend satisfies. Execute is
// read-only: the backend answers with text and touches no files.
type Adapter interface {
	// Name is the configured agent name, e.g. "claude-sonnet".
	Name() string

	// DisplayName is the human-facing label for console output.
	DisplayName() string

	// Available reports whether the backend can be invoked right now
	// (CLI on PATH, API key present).
	Available() bool

	// Execute runs one prompt and returns the outcome. It must honor
	// ctx and the task timeout, and must not hang past either.
	Execute(ctx context.Context, task Task) Outcome
}

// AgenticAdapter is implemented by backends that can create, edit, and
// delete files in the working directory themselves. Backends without it
// are driven through prompt-and-extract by the engine.
type AgenticAdapter interface {
	Adapter

	// ExecuteAgentic runs one prompt with file-write capability.
	ExecuteAgentic(ctx context.Context, task Task) Outcome
}

// Agentic reports whether a writes files natively. The capability is a
// property of the adapter type, so resolve it once at wiring time.
func Agentic(a Adapter) (AgenticAdapter, bool) {
	ag, ok := a.(AgenticAdapter)
	return ag, ok
}

func unavailableOutcome(name, display string) Outcome {
	return Outcome{
		Agent:  name,
		Status: StatusUnavailable,
		Detail: fmt.Sprintf("%s is not available. Check installation and authentication.", display),
	}
}

func failedOutcome(name, detail string, elapsed time.Duration) Outcome {
	return Outcome{
		Agent:    name,
		Status:   StatusFailed,
		Duration: elapsed,
		Detail:   detail,
	}
}

func timeoutOutcome(name string, limit, elapsed time.Duration) Outcome {
	return Outcome{
		Agent:    name,
		Status:   StatusTimeout,
		Duration: elapsed,
		Detail:   fmt.Sprintf("%s timed out after %s", name, limit),
	}
}
