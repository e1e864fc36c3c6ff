package agent

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withFakeLookPath replaces PATH resolution so adapter availability can
// be scripted without installing real CLIs.
func withFakeLookPath(t *testing.T, installed map[string]bool) {
	t.Helper()
	orig := lookPath
	lookPath = func(name string) (string, error) {
		if installed[name] {
			return "/usr/bin/" + name, nil
		}
		return "", exec.ErrNotFound
	}
	t.Cleanup(func() { lookPath = orig })
}

func TestOutcomeSuccess(t *testing.T) {
	assert.True(t, Outcome{Status: StatusSuccess}.Success())
	assert.False(t, Outcome{Status: StatusFailed}.Success())
	assert.False(t, Outcome{Status: StatusTimeout}.Success())
	assert.False(t, Outcome{Status: StatusUnavailable}.Success())
}

func TestTaskDeadlineDefaults(t *testing.T) {
	assert.Equal(t, DefaultTimeout, Task{}.Deadline())
	assert.Equal(t, DefaultTimeout/2, Task{Timeout: DefaultTimeout / 2}.Deadline())
}

func TestAgenticCapabilityIsTypeLevel(t *testing.T) {
	var plain Adapter = NewMock("plain")
	_, ok := Agentic(plain)
	assert.False(t, ok, "read-only mock must not report agentic capability")

	var writer Adapter = NewAgenticMock("writer")
	_, ok = Agentic(writer)
	assert.True(t, ok)

	_, ok = Agentic(NewClaude(ClaudeOptions{}, nil))
	assert.True(t, ok, "claude writes files natively")

	_, ok = Agentic(NewGemini(GeminiOptions{}, nil))
	assert.False(t, ok, "gemini CLI is driven through prompt-and-extract")
}

func TestMockScriptConsumption(t *testing.T) {
	m := NewMock("m",
		Outcome{Status: StatusFailed, Detail: "first"},
		Outcome{Status: StatusSuccess, Output: "second"},
	)

	first := m.Execute(context.Background(), Task{Prompt: "a"})
	assert.Equal(t, StatusFailed, first.Status)
	assert.Equal(t, "m", first.Agent)

	second := m.Execute(context.Background(), Task{Prompt: "b"})
	assert.Equal(t, "second", second.Output)

	// Script exhausted: last outcome repeats.
	third := m.Execute(context.Background(), Task{Prompt: "c"})
	assert.Equal(t, "second", third.Output)

	assert.Equal(t, 3, m.CallCount())
	last, ok := m.LastTask()
	require.True(t, ok)
	assert.Equal(t, "c", last.Prompt)
}

func TestMockHandler(t *testing.T) {
	m := NewMock("echo")
	m.Handler = func(_ context.Context, task Task) Outcome {
		return Outcome{Status: StatusSuccess, Output: "got: " + task.Prompt}
	}

	out := m.Execute(context.Background(), Task{Prompt: "ping"})
	assert.Equal(t, "got: ping", out.Output)
	assert.Equal(t, "echo", out.Agent)
}

func TestMockUnavailable(t *testing.T) {
	m := NewMock("down")
	m.Availability = false

	out := m.Execute(context.Background(), Task{})
	assert.Equal(t, StatusUnavailable, out.Status)
}

func TestAgenticMockWritesFiles(t *testing.T) {
	dir := t.TempDir()
	m := NewAgenticMock("writer", Outcome{Status: StatusSuccess, Output: "done"})
	m.Files = map[string]string{
		"main.go":       "package main\n",
		"pkg/util/u.go": "package util\n",
	}

	out := m.ExecuteAgentic(context.Background(), Task{WorkingDir: dir})
	require.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, 1, m.AgenticCallCount())

	data, err := os.ReadFile(filepath.Join(dir, "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(data))

	_, err = os.Stat(filepath.Join(dir, "pkg", "util", "u.go"))
	assert.NoError(t, err)
}
