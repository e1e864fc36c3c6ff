package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/forge/internal/agent"
	"github.com/fyrsmithlabs/forge/internal/config"
	"github.com/fyrsmithlabs/forge/internal/console"
	"github.com/fyrsmithlabs/forge/internal/tui"
)

func init() {
	rootCmd.AddCommand(agentsCmd)
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Show agent availability and orchestration modes",
	Long: `Agents probes each configured agent CLI and reports which ones are
installed and ready, then lists the orchestration modes they can drive.`,
	Args: cobra.NoArgs,
	RunE: runAgentsCmd,
}

// modeHelp describes each orchestration mode for the overview table.
var modeHelp = []struct {
	mode string
	desc string
	min  string
}{
	{"single", "One agent, one shot", "1"},
	{"parallel", "All agents produce, pick best result", "2+"},
	{"chain", "Sequential: each agent improves the last output", "2+"},
	{"review", "Produce, critique, refine (3 rounds)", "2+"},
	{"consensus", "All produce, then a judge synthesizes the best", "2+"},
	{"swarm", "Break into subtasks, assign to best agents", "2+"},
}

func runAgentsCmd(cmd *cobra.Command, args []string) error {
	banner(cmd)

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	term := console.NewTerminal(cmd.OutOrStdout())
	reg := agent.NewRegistry(cfg.Agents, log)

	fmt.Fprintln(cmd.OutOrStdout(), tui.StatusTable(agentStatusRows(cfg, reg)))

	term.Rule("Orchestration Modes")
	for _, m := range modeHelp {
		term.Info("  %-10s %-48s agents: %s", m.mode, m.desc, m.min)
	}
	term.Blank()
	term.Detail(`Usage: forge run --mode chain -a claude-sonnet -a claude-opus "your prompt"`)
	return nil
}

// agentStatusRows builds the availability table shared by the agents
// and config commands.
func agentStatusRows(cfg *config.Config, reg *agent.Registry) []tui.AgentStatus {
	availability := reg.Availability()
	rows := make([]tui.AgentStatus, 0, len(reg.Names()))
	for _, name := range reg.Names() {
		ac := cfg.Agents[name]
		rows = append(rows, tui.AgentStatus{
			Name:      name,
			Type:      string(ac.Kind),
			Model:     ac.Model,
			Available: availability[name],
			BudgetUSD: ac.MaxBudgetUSD,
		})
	}
	return rows
}
