package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaudeArgvPrintMode(t *testing.T) {
	c := NewClaude(ClaudeOptions{Model: "sonnet", MaxBudgetUSD: 1.5}, nil)

	argv := c.argv(Task{Prompt: "hello"}, false)
	assert.Equal(t, []string{
		"claude", "--print", "--output-format", "json",
		"--model", "sonnet",
		"--max-budget-usd", "1.5",
		"hello",
	}, argv)
}

func TestClaudeArgvAgenticMode(t *testing.T) {
	c := NewClaude(ClaudeOptions{Model: "opus"}, nil)

	argv := c.argv(Task{Prompt: "build it", SystemPrompt: "be terse"}, true)
	assert.Equal(t, []string{
		"claude", "-p", "--output-format", "json", "--dangerously-skip-permissions",
		"--model", "opus",
		"--system-prompt", "be terse",
		"build it",
	}, argv)
}

func TestClaudeArgvTaskBudgetOverridesDefault(t *testing.T) {
	c := NewClaude(ClaudeOptions{MaxBudgetUSD: 1.0}, nil)

	argv := c.argv(Task{Prompt: "p", MaxBudgetUSD: 0.25}, false)
	assert.Contains(t, argv, "0.25")
	assert.NotContains(t, argv, "1")
}

func TestClaudeArgvSkipPermissionsInPrintMode(t *testing.T) {
	c := NewClaude(ClaudeOptions{SkipPermissions: true}, nil)

	printArgs := c.argv(Task{Prompt: "p"}, false)
	assert.Contains(t, printArgs, "--dangerously-skip-permissions")

	// Agentic mode already sets the flag once.
	agenticArgs := c.argv(Task{Prompt: "p"}, true)
	count := 0
	for _, a := range agenticArgs {
		if a == "--dangerously-skip-permissions" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestClaudeArgvExtraArgsBeforePrompt(t *testing.T) {
	c := NewClaude(ClaudeOptions{ExtraArgs: []string{"--verbose"}}, nil)

	argv := c.argv(Task{Prompt: "the prompt"}, false)
	require.GreaterOrEqual(t, len(argv), 2)
	assert.Equal(t, "--verbose", argv[len(argv)-2])
	assert.Equal(t, "the prompt", argv[len(argv)-1])
}

func TestClaudeParseEnvelope(t *testing.T) {
	c := NewClaude(ClaudeOptions{Name: "claude-sonnet"}, nil)

	res := execResult{
		stdout: `{
			"result": "the answer",
			"is_error": false,
			"duration_ms": 2500,
			"total_cost_usd": 0.0123,
			"usage": {"input_tokens": 100, "output_tokens": 50},
			"modelUsage": {"claude-sonnet-4-5": {}}
		}`,
		elapsed: time.Second,
	}

	out := c.parse(res)
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, "the answer", out.Output)
	assert.Equal(t, "claude-sonnet", out.Agent)
	assert.Equal(t, 2500*time.Millisecond, out.Duration)
	assert.InDelta(t, 0.0123, out.CostUSD, 1e-9)
	assert.Equal(t, 100, out.InputTokens)
	assert.Equal(t, 50, out.OutputTokens)
	assert.Equal(t, "claude-sonnet-4-5", out.Model)
}

func TestClaudeParseErrorEnvelope(t *testing.T) {
	c := NewClaude(ClaudeOptions{}, nil)

	out := c.parse(execResult{
		stdout:  `{"result": "budget exceeded", "is_error": true}`,
		elapsed: time.Second,
	})
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, "budget exceeded", out.Detail)
}

func TestClaudeParsePlainText(t *testing.T) {
	c := NewClaude(ClaudeOptions{Model: "haiku"}, nil)

	out := c.parse(execResult{stdout: "just some text\n", elapsed: time.Second})
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, "just some text", out.Output)
	assert.Equal(t, "haiku", out.Model)
}

func TestClaudeUnavailableWhenCLIMissing(t *testing.T) {
	withFakeLookPath(t, map[string]bool{})

	c := NewClaude(ClaudeOptions{Name: "claude-sonnet"}, nil)
	assert.False(t, c.Available())

	out := c.Execute(context.Background(), Task{Prompt: "hi"})
	assert.Equal(t, StatusUnavailable, out.Status)
	assert.Equal(t, "claude-sonnet", out.Agent)
	assert.Contains(t, out.Detail, "not available")
}

func TestFirstModelDeterministic(t *testing.T) {
	usage := map[string]json.RawMessage{
		"model-b": nil,
		"model-a": nil,
	}
	assert.Equal(t, "model-a", firstModel(usage))
	assert.Equal(t, "", firstModel(nil))
}
