package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/forge/internal/agent"
	"github.com/fyrsmithlabs/forge/internal/orchestrate"
)

func TestBanner(t *testing.T) {
	banner := Banner("0.2.0")
	assert.Contains(t, banner, "AI Coding Agent Orchestrator v0.2.0")
	assert.Contains(t, banner, "Claude Code • Gemini • Copilot")
}

func TestAgentPanel(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		out := agent.Outcome{
			Agent:    "claude-sonnet",
			Output:   "created main.go and tests",
			Status:   agent.StatusSuccess,
			Duration: 2300 * time.Millisecond,
			CostUSD:  0.042,
			Model:    "claude-sonnet-4-5",
		}
		panel := AgentPanel(out)
		assert.Contains(t, panel, "CLAUDE-SONNET")
		assert.Contains(t, panel, "[claude-sonnet-4-5]")
		assert.Contains(t, panel, "2.3s")
		assert.Contains(t, panel, "$0.0420")
		assert.Contains(t, panel, "created main.go and tests")
	})

	t.Run("failure shows detail", func(t *testing.T) {
		out := agent.Outcome{
			Agent:  "copilot",
			Status: agent.StatusFailed,
			Detail: "exit status 1",
		}
		panel := AgentPanel(out)
		assert.Contains(t, panel, "COPILOT")
		assert.Contains(t, panel, "[Error] exit status 1")
	})

	t.Run("failure without detail", func(t *testing.T) {
		out := agent.Outcome{Agent: "gemini", Status: agent.StatusTimeout}
		assert.Contains(t, AgentPanel(out), "[No output]")
	})

	t.Run("long output is clipped", func(t *testing.T) {
		out := agent.Outcome{
			Agent:  "gemini",
			Output: strings.Repeat("x", panelOutputMax+500),
			Status: agent.StatusSuccess,
		}
		assert.Contains(t, AgentPanel(out), "... (500 more chars)")
	})
}

func TestSummaryTable(t *testing.T) {
	outs := []agent.Outcome{
		{
			Agent:        "claude-sonnet",
			Status:       agent.StatusSuccess,
			Model:        "claude-sonnet-4-5",
			Duration:     2 * time.Second,
			CostUSD:      0.03,
			InputTokens:  1200,
			OutputTokens: 800,
			Output:       strings.Repeat("a", 1500),
		},
		{
			Agent:    "gemini",
			Status:   agent.StatusFailed,
			Model:    "gemini-2.5-pro",
			Duration: 5 * time.Second,
			CostUSD:  0.01,
		},
	}

	table := SummaryTable(outs)
	assert.Contains(t, table, "Agent Results")
	assert.Contains(t, table, "CLAUDE-SONNET")
	assert.Contains(t, table, "GEMINI")
	assert.Contains(t, table, "✓ success")
	assert.Contains(t, table, "✗ failed")
	assert.Contains(t, table, "↓1,200 ↑800")
	assert.Contains(t, table, "1,500 chars")

	// Totals row: summed cost, wall clock of the slowest agent.
	assert.Contains(t, table, "TOTAL")
	assert.Contains(t, table, "$0.0400")
	assert.Contains(t, table, "5.0s")
}

func TestBestPanel(t *testing.T) {
	out := agent.Outcome{Agent: "gemini", Output: "winning answer", Status: agent.StatusSuccess}
	panel := BestPanel(out, "Best Response")
	assert.Contains(t, panel, "★ Best Response — GEMINI")
	assert.Contains(t, panel, "winning answer")
}

func TestStatusTable(t *testing.T) {
	rows := []AgentStatus{
		{Name: "claude-sonnet", Type: "cli", Model: "claude-sonnet-4-5", Available: true, BudgetUSD: 5},
		{Name: "gemini", Type: "cli", Model: "gemini-2.5-pro", Available: true},
		{Name: "copilot", Type: "cli", Available: false},
	}

	table := StatusTable(rows)
	assert.Contains(t, table, "Agent Status")
	assert.Contains(t, table, "CLAUDE-SONNET")
	assert.Contains(t, table, "✓ Ready")
	assert.Contains(t, table, "✗ Not found")
	assert.Contains(t, table, "$5.0000")
	assert.Contains(t, table, "2/3 agents available")
}

func TestOrchestrationView(t *testing.T) {
	res := orchestrate.Result{
		Mode: orchestrate.ModeReview,
		Rounds: []orchestrate.Round{
			{Number: 1, Agent: "claude-sonnet", Role: "initiator", Outcome: agent.Outcome{
				Agent:    "claude-sonnet",
				Output:   "draft implementation",
				Status:   agent.StatusSuccess,
				CostUSD:  0.02,
				Duration: 3 * time.Second,
			}},
			{Number: 2, Agent: "gemini", Role: "reviewer", Outcome: agent.Outcome{
				Agent:    "gemini",
				Output:   "looks correct",
				Status:   agent.StatusSuccess,
				CostUSD:  0.01,
				Duration: 2 * time.Second,
			}},
		},
		FinalOutput:   "final merged result",
		TotalCostUSD:  0.03,
		TotalDuration: 5 * time.Second,
		AgentsUsed:    []string{"claude-sonnet", "gemini"},
	}

	view := OrchestrationView(res)
	assert.Contains(t, view, "Review Mode")
	assert.Contains(t, view, "2 round(s), 2 agent(s)")
	assert.Contains(t, view, "Round 1")
	assert.Contains(t, view, "INITIATOR")
	assert.Contains(t, view, "REVIEWER")
	assert.Contains(t, view, "draft implementation")
	assert.Contains(t, view, "looks correct")
	assert.Contains(t, view, "Orchestration Summary")
	assert.Contains(t, view, "claude-sonnet, gemini")
	assert.Contains(t, view, "$0.0300")
	assert.Contains(t, view, "Final Output")
	assert.Contains(t, view, "final merged result")
}

func TestOrchestrationViewUnknownMode(t *testing.T) {
	view := OrchestrationView(orchestrate.Result{Mode: orchestrate.Mode("experimental")})
	assert.Contains(t, view, "experimental")
}

func TestRoundPanelFailure(t *testing.T) {
	round := orchestrate.Round{
		Number: 3,
		Agent:  "copilot",
		Role:   "worker",
		Outcome: agent.Outcome{
			Agent:  "copilot",
			Status: agent.StatusFailed,
			Detail: "command not found",
		},
	}
	panel := roundPanel(round)
	assert.Contains(t, panel, "Round 3")
	assert.Contains(t, panel, "WORKER")
	assert.Contains(t, panel, "command not found")
}
