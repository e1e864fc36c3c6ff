package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/forge/internal/agent"
	"github.com/fyrsmithlabs/forge/internal/orchestrate"
)

// Output windows for the different panel kinds.
const (
	panelOutputMax = 3000
	roundOutputMax = 1500
	finalOutputMax = 4000
)

// Banner returns the startup header.
func Banner(version string) string {
	logo := `
  ███████╗ ██████╗ ██████╗  ██████╗ ███████╗
  ██╔════╝██╔═══██╗██╔══██╗██╔════╝ ██╔════╝
  █████╗  ██║   ██║██████╔╝██║  ███╗█████╗
  ██╔══╝  ██║   ██║██╔══██╗██║   ██║██╔══╝
  ██║     ╚██████╔╝██║  ██║╚██████╔╝███████╗
  ╚═╝      ╚═════╝ ╚═╝  ╚═╝ ╚═════╝ ╚══════╝
`
	sub := fmt.Sprintf("  AI Coding Agent Orchestrator v%s\n  Claude Code • Gemini • Copilot\n", version)
	return titleStyle.Render(logo) + "\n" + dimStyle.Render(sub)
}

// AgentPanel renders one invocation as a bordered panel: status, agent,
// model, duration and cost in the header, output or error below.
func AgentPanel(out agent.Outcome) string {
	color := AgentColor(out.Agent)

	header := StatusIcon(out.Status) + " " +
		lipgloss.NewStyle().Foreground(color).Bold(true).Render(strings.ToUpper(out.Agent))
	if out.Model != "" {
		header += dimStyle.Render("  [" + out.Model + "]")
	}
	header += dimStyle.Render("  " + FormatDuration(out.Duration))
	if out.CostUSD > 0 {
		header += costStyle.Render("  " + FormatCost(out.CostUSD))
	}

	var body string
	switch {
	case out.Success():
		body = clip(out.Output, panelOutputMax)
		if len(out.Output) > panelOutputMax {
			body += fmt.Sprintf("\n\n... (%d more chars)", len(out.Output)-panelOutputMax)
		}
	case out.Detail != "":
		body = "[Error] " + out.Detail
	default:
		body = "[No output]"
	}

	border := color
	if !out.Success() {
		border = lipgloss.Color("196")
	}
	return panelStyle.BorderForeground(border).Render(header + "\n\n" + body)
}

// SummaryTable renders the cross-agent comparison table with a totals
// row: total cost, wall-clock time of the slowest agent.
func SummaryTable(outs []agent.Outcome) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Agent Results") + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%-14s %-12s %-14s %8s %10s %14s %12s",
		"AGENT", "STATUS", "MODEL", "TIME", "COST", "TOKENS", "OUTPUT")) + "\n")

	var totalCost float64
	var wall time.Duration
	for _, out := range outs {
		totalCost += out.CostUSD
		if out.Duration > wall {
			wall = out.Duration
		}

		model := out.Model
		if model == "" {
			model = "—"
		}
		name := lipgloss.NewStyle().Foreground(AgentColor(out.Agent)).Bold(true).
			Render(fmt.Sprintf("%-14s", strings.ToUpper(out.Agent)))
		b.WriteString(fmt.Sprintf("%s %-12s %-14s %8s %10s %14s %12s\n",
			name,
			StatusIcon(out.Status)+" "+string(out.Status),
			clip(model, 14),
			FormatDuration(out.Duration),
			FormatCost(out.CostUSD),
			FormatTokens(out.InputTokens, out.OutputTokens),
			groupDigits(len(out.Output))+" chars",
		))
	}

	total := "—"
	if totalCost > 0 {
		total = FormatCost(totalCost)
	}
	b.WriteString(valueStyle.Render(fmt.Sprintf("%-14s", "TOTAL")))
	b.WriteString(fmt.Sprintf(" %-12s %-14s %8s %10s\n", "", "", FormatDuration(wall), total))
	return b.String()
}

// BestPanel highlights the winning output of a multi-agent dispatch.
func BestPanel(out agent.Outcome, label string) string {
	color := AgentColor(out.Agent)
	title := lipgloss.NewStyle().Foreground(color).Bold(true).
		Render(fmt.Sprintf("★ %s — %s", label, strings.ToUpper(out.Agent)))
	return panelStyle.BorderForeground(color).Render(title + "\n\n" + out.Output)
}

// AgentStatus is one row of the availability table.
type AgentStatus struct {
	Name      string
	Type      string
	Model     string
	Available bool
	BudgetUSD float64
}

// StatusTable renders agent availability with model and budget info.
func StatusTable(rows []AgentStatus) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Agent Status") + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%-16s %-8s %-24s %-14s %8s",
		"AGENT", "TYPE", "MODEL", "STATUS", "BUDGET")) + "\n")

	available := 0
	for _, row := range rows {
		status := failStyle.Render(fmt.Sprintf("%-14s", "✗ Not found"))
		if row.Available {
			status = okStyle.Render(fmt.Sprintf("%-14s", "✓ Ready"))
			available++
		}
		budget := ""
		if row.BudgetUSD > 0 {
			budget = FormatCost(row.BudgetUSD)
		}
		name := lipgloss.NewStyle().Foreground(AgentColor(row.Name)).Bold(true).
			Render(fmt.Sprintf("%-16s", strings.ToUpper(row.Name)))
		b.WriteString(fmt.Sprintf("%s %-8s %-24s %s %8s\n",
			name, row.Type, clip(row.Model, 24), status, budget))
	}

	b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("%d/%d agents available", available, len(rows))) + "\n")
	return b.String()
}

var modeLabels = map[orchestrate.Mode]string{
	orchestrate.ModeSingle:    "Single Agent",
	orchestrate.ModeParallel:  "Parallel Dispatch",
	orchestrate.ModeChain:     "Chain Mode",
	orchestrate.ModeReview:    "Review Mode",
	orchestrate.ModeConsensus: "Consensus Mode",
	orchestrate.ModeSwarm:     "Swarm Mode",
}

// OrchestrationView renders the full round log of a collaboration
// session: per-round panels, a summary block, and the final output.
func OrchestrationView(res orchestrate.Result) string {
	label, ok := modeLabels[res.Mode]
	if !ok {
		label = string(res.Mode)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(label))
	b.WriteString(dimStyle.Render(fmt.Sprintf(" — %d round(s), %d agent(s)", len(res.Rounds), len(res.AgentsUsed))))
	b.WriteString("\n\n")

	for _, round := range res.Rounds {
		b.WriteString(roundPanel(round))
		b.WriteString("\n")
	}

	b.WriteString("\n" + sectionStyle.Render("Orchestration Summary") + "\n")
	summary := [][2]string{
		{"Mode", strings.ToUpper(string(res.Mode))},
		{"Rounds", strconv.Itoa(len(res.Rounds))},
		{"Agents Used", strings.Join(res.AgentsUsed, ", ")},
		{"Total Cost", FormatCost(res.TotalCostUSD)},
		{"Total Duration", FormatDuration(res.TotalDuration)},
	}
	for _, row := range summary {
		b.WriteString(labelStyle.Render(fmt.Sprintf("  %-16s", row[0])) + valueStyle.Render(row[1]) + "\n")
	}

	if res.FinalOutput != "" {
		b.WriteString("\n" + panelStyle.BorderForeground(lipgloss.Color("13")).Render(
			titleStyle.Render("Final Output")+"\n\n"+clip(res.FinalOutput, finalOutputMax)) + "\n")
	}
	return b.String()
}

func roundPanel(round orchestrate.Round) string {
	out := round.Outcome
	color := AgentColor(round.Agent)

	header := dimStyle.Render(fmt.Sprintf("Round %d ", round.Number)) +
		valueStyle.Render(strings.ToUpper(round.Role)) +
		lipgloss.NewStyle().Foreground(color).Bold(true).Render(" — "+strings.ToUpper(round.Agent)) +
		" " + StatusIcon(out.Status)
	if out.CostUSD > 0 {
		header += costStyle.Render(" " + FormatCost(out.CostUSD))
	}
	header += dimStyle.Render(" " + FormatDuration(out.Duration))

	body := out.Output
	if !out.Success() {
		body = out.Detail
		if body == "" {
			body = "No output"
		}
	}
	shown := clip(body, roundOutputMax)
	if len(body) > roundOutputMax {
		shown += fmt.Sprintf("\n\n... (%d more chars)", len(body)-roundOutputMax)
	}

	border := color
	if !out.Success() {
		border = lipgloss.Color("196")
	}
	return panelStyle.BorderForeground(border).Render(header + "\n\n" + shown)
}
