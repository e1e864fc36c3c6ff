package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fyrsmithlabs/forge/internal/history"
)

const (
	historySparkWidth  = 30
	historySparkHeight = 3
	objectiveColWidth  = 44
)

// HistoryModel is the BubbleTea model for the run-history browser: a
// stats header with a score sparkline, a selectable run list, and a
// scrollable per-run detail view.
type HistoryModel struct {
	records []history.RunRecord // newest first
	stats   history.Stats

	cursor   int
	detail   bool
	viewport viewport.Model
	approval progress.Model

	width    int
	height   int
	ready    bool
	quitting bool
}

// NewHistory builds the browser model. The sidecar stores records
// oldest first; the browser lists them newest first.
func NewHistory(records []history.RunRecord) HistoryModel {
	stats := history.Summarize(records)

	reversed := make([]history.RunRecord, len(records))
	for i, r := range records {
		reversed[len(records)-1-i] = r
	}

	return HistoryModel{
		records: reversed,
		stats:   stats,
		approval: progress.New(
			progress.WithGradient("#fbbf24", "#22c55e"),
			progress.WithWidth(30),
		),
	}
}

// Init implements tea.Model.
func (m HistoryModel) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, msg.Height-6)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = msg.Height - 6
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

		if m.detail {
			switch msg.String() {
			case "esc", "backspace":
				m.detail = false
				return m, nil
			}
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.records)-1 {
				m.cursor++
			}
		case "enter":
			if len(m.records) > 0 {
				if !m.ready {
					// No WindowSizeMsg yet, e.g. a non-interactive run.
					m.viewport = viewport.New(80, 20)
					m.ready = true
				}
				m.detail = true
				m.viewport.SetContent(m.detailView(m.records[m.cursor]))
				m.viewport.GotoTop()
			}
		}
	}

	return m, nil
}

// View renders the browser.
func (m HistoryModel) View() string {
	if m.quitting {
		return ""
	}

	if len(m.records) == 0 {
		body := titleStyle.Render("Run History") + "\n\n" +
			dimStyle.Render("No runs recorded yet. Run forge duo to get started!")
		return panelStyle.Render(body) + "\n" + m.footer()
	}

	if m.detail {
		r := m.records[m.cursor]
		header := titleStyle.Render("Run "+clip(r.ID, 8)) +
			dimStyle.Render("  "+clip(r.Timestamp, 19))
		return header + "\n" + m.viewport.View() + "\n" + m.footer()
	}

	return m.listView()
}

func (m HistoryModel) listView() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Run History") + "\n\n")

	b.WriteString(labelStyle.Render("Runs ") + valueStyle.Render(strconv.Itoa(m.stats.Runs)))
	b.WriteString(labelStyle.Render("   Avg Score ") + valueStyle.Render(fmt.Sprintf("%.0f", m.stats.AvgScore)))
	b.WriteString(labelStyle.Render("   Total Cost ") + costStyle.Render(FormatCost(m.stats.TotalCostUSD)))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Approval ") + m.approval.ViewAs(m.stats.ApprovalRate/100))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Score trend") + "\n")
	b.WriteString(scoreSparkline(m.records) + "\n\n")

	for i, r := range m.records {
		marker := "  "
		if i == m.cursor {
			marker = footerKeyStyle.Render("▸") + " "
		}
		b.WriteString(fmt.Sprintf("%s%s  %s %3d  %s → %s  %s  %s  %s\n",
			marker,
			dimStyle.Render(clip(r.Timestamp, 19)),
			gradeStyle(r.Grade).Render(gradeOrUnknown(r.Grade)),
			r.QualityScore,
			r.Planner, r.Coder,
			FormatCost(r.CostUSD),
			approvedIcon(r.Approved),
			clip(r.Objective, objectiveColWidth),
		))
	}

	return b.String() + m.footer()
}

func (m HistoryModel) detailView(r history.RunRecord) string {
	var b strings.Builder

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-12s", label)) + value + "\n")
	}

	b.WriteString(sectionStyle.Render("Objective") + "\n")
	b.WriteString(r.Objective + "\n\n")

	b.WriteString(sectionStyle.Render("Run") + "\n")
	row("ID", valueStyle.Render(r.ID))
	row("Timestamp", valueStyle.Render(r.Timestamp))
	row("Planner", valueStyle.Render(r.Planner))
	row("Coder", valueStyle.Render(r.Coder))
	row("Grade", gradeStyle(r.Grade).Render(gradeOrUnknown(r.Grade))+
		dimStyle.Render(fmt.Sprintf(" (%d/100)", r.QualityScore)))
	row("Rounds", valueStyle.Render(strconv.Itoa(r.TotalRounds)))
	row("Duration", valueStyle.Render(fmt.Sprintf("%.1fs", r.DurationSecs)))
	row("Cost", costStyle.Render(FormatCost(r.CostUSD)))
	row("Files", valueStyle.Render(strconv.Itoa(r.FilesCreated)))
	row("Approved", approvedIcon(r.Approved))

	if len(r.Errors) > 0 {
		b.WriteString("\n" + sectionStyle.Render("Errors") + "\n")
		for _, e := range r.Errors {
			b.WriteString(failStyle.Render("✗ ") + e + "\n")
		}
	}

	return b.String()
}

func (m HistoryModel) footer() string {
	if m.detail {
		return footerStyle.Render(
			footerKeyStyle.Render("[esc]") + " back  " +
				footerKeyStyle.Render("[↑/↓]") + " scroll  " +
				footerKeyStyle.Render("[q]") + " quit")
	}
	return footerStyle.Render(
		footerKeyStyle.Render("[↑/↓]") + " select  " +
			footerKeyStyle.Render("[enter]") + " details  " +
			footerKeyStyle.Render("[q]") + " quit")
}

// scoreSparkline charts quality scores oldest to newest.
func scoreSparkline(records []history.RunRecord) string {
	if len(records) == 0 {
		return dimStyle.Render("no data")
	}
	spark := sparkline.New(historySparkWidth, historySparkHeight)
	for i := len(records) - 1; i >= 0; i-- {
		spark.Push(float64(records[i].QualityScore))
	}
	return sparklineStyle.Render(spark.View())
}

func gradeOrUnknown(grade string) string {
	if grade == "" {
		return "?"
	}
	return grade
}

func approvedIcon(approved bool) string {
	if approved {
		return okStyle.Render("✓")
	}
	return failStyle.Render("✗")
}

// RunHistory opens the interactive history browser and blocks until
// the user quits.
func RunHistory(records []history.RunRecord) error {
	p := tea.NewProgram(NewHistory(records), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
