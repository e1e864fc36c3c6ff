package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/forge/internal/agent"
)

// Shared lipgloss styles.
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("13")).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	costStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("46")).
		Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// Agent identity colors, keyed by configured name with family-prefix
// fallbacks so custom names like "claude-fast" inherit a color.
var agentColors = map[string]lipgloss.Color{
	"claude-sonnet": lipgloss.Color("13"),
	"claude-opus":   lipgloss.Color("5"),
	"claude-haiku":  lipgloss.Color("213"),
	"claude":        lipgloss.Color("13"),
	"gemini":        lipgloss.Color("14"),
	"antigravity":   lipgloss.Color("6"),
	"copilot":       lipgloss.Color("10"),
}

var agentFamilies = []string{"claude", "gemini", "antigravity", "copilot"}

// AgentColor returns the identity color for an agent name.
func AgentColor(name string) lipgloss.Color {
	if c, ok := agentColors[name]; ok {
		return c
	}
	for _, family := range agentFamilies {
		if strings.HasPrefix(name, family) {
			return agentColors[family]
		}
	}
	return lipgloss.Color("15")
}

// Grade colors for the history browser.
var gradeStyles = map[string]lipgloss.Style{
	"A": lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true),
	"B": lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true),
	"C": lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true),
	"D": lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
	"F": lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
}

func gradeStyle(grade string) lipgloss.Style {
	if s, ok := gradeStyles[grade]; ok {
		return s
	}
	return dimStyle
}

var statusIcons = map[agent.Status]string{
	agent.StatusSuccess:     "✓",
	agent.StatusFailed:      "✗",
	agent.StatusTimeout:     "⚠",
	agent.StatusUnavailable: "⊘",
}

// StatusIcon returns the one-glyph marker for an invocation status.
func StatusIcon(s agent.Status) string {
	if icon, ok := statusIcons[s]; ok {
		return icon
	}
	return "?"
}
