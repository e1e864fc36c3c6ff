package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/forge/internal/history"
	"github.com/fyrsmithlabs/forge/internal/tui"
)

var (
	historyDir   string
	historyPlain bool
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVarP(&historyDir, "dir", "d", ".", "project directory")
	historyCmd.Flags().BoolVar(&historyPlain, "plain", false, "print a plain summary instead of the browser")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse past runs for this project",
	Long: `History opens an interactive browser over the project's recorded runs:
scores, grades, costs, and per-run detail. Non-interactive output (pipes,
--plain) falls back to a printed summary.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	records := history.Load(historyDir)

	if historyPlain || !isatty.IsTerminal(os.Stdout.Fd()) {
		printHistorySummary(cmd, records)
		return nil
	}
	return tui.RunHistory(records)
}

func printHistorySummary(cmd *cobra.Command, records []history.RunRecord) {
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No runs yet. Run forge duo to get started!")
		return
	}

	stats := history.Summarize(records)
	fmt.Fprintf(out, "Runs: %d  Avg score: %.0f  Approval: %.0f%%  Total cost: $%.2f\n\n",
		stats.Runs, stats.AvgScore, stats.ApprovalRate, stats.TotalCostUSD)

	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		ts := rec.Timestamp
		if len(ts) > 19 {
			ts = ts[:19]
		}
		grade := rec.Grade
		if grade == "" {
			grade = "?"
		}
		verdict := "not approved"
		if rec.Approved {
			verdict = "approved"
		}
		fmt.Fprintf(out, "%s  %s %3d  %s → %s  $%.4f  %s  %s\n",
			ts, grade, rec.QualityScore, rec.Planner, rec.Coder, rec.CostUSD, verdict, rec.Objective)
	}
}
