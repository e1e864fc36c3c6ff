package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/forge/internal/agent"
	"github.com/fyrsmithlabs/forge/internal/console"
	"github.com/fyrsmithlabs/forge/internal/engine"
	"github.com/fyrsmithlabs/forge/internal/orchestrate"
	"github.com/fyrsmithlabs/forge/internal/tui"
)

var (
	runAgents       []string
	runAll          bool
	runMode         string
	runDir          string
	runBudget       float64
	runTimeout      int
	runSystemPrompt string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringArrayVarP(&runAgents, "agent", "a", nil, "agent(s) to use (repeatable)")
	runCmd.Flags().BoolVarP(&runAll, "all", "A", false, "use every available agent")
	runCmd.Flags().StringVarP(&runMode, "mode", "m", "single", "orchestration mode (single, parallel, chain, review, consensus, swarm)")
	runCmd.Flags().StringVarP(&runDir, "dir", "d", ".", "working directory for agents")
	runCmd.Flags().Float64VarP(&runBudget, "budget", "b", 0, "max budget in USD per dispatch")
	runCmd.Flags().IntVarP(&runTimeout, "timeout", "t", 0, "per-dispatch timeout in seconds")
	runCmd.Flags().StringVarP(&runSystemPrompt, "system-prompt", "s", "", "system prompt prepended to every dispatch")
}

var runCmd = &cobra.Command{
	Use:   "run PROMPT",
	Short: "Dispatch a prompt to one or more agents",
	Long: `Run sends a prompt through the selected orchestration mode and prints
each agent's result.

Examples:
  forge run "explain this codebase"
  forge run -a claude-sonnet -a gemini -m parallel "write a parser"
  forge run -A -m consensus "design the schema"
  forge run -m chain -a gemini -a claude-sonnet "draft then refine"`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	banner(cmd)

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	term := console.NewTerminal(cmd.OutOrStdout())
	reg := agent.NewRegistry(cfg.Agents, log)
	eng := engine.New(reg, cfg.Global.MaxParallel, log)

	wd, err := filepath.Abs(runDir)
	if err != nil {
		return err
	}

	available := eng.AvailableNames()
	if len(available) == 0 {
		term.Error("No agents available.")
		term.Detail("Install at least one: claude, gemini, or gh copilot")
		return errors.New("no agents available")
	}

	var agents []string
	switch {
	case runAll:
		agents = available
	case len(runAgents) > 0:
		for _, name := range runAgents {
			if _, ok := reg.Get(name); !ok {
				return fmt.Errorf("agent %q not found (available: %s)", name, strings.Join(reg.Names(), ", "))
			}
		}
		agents = runAgents
	default:
		agents = available[:1]
	}

	mode, err := orchestrate.ParseMode(runMode)
	if err != nil {
		return err
	}
	if len(agents) == 1 && mode.MultiAgent() {
		term.Warn("Mode %q needs multiple agents but only %q selected. Falling back to single mode.", mode, agents[0])
		mode = orchestrate.ModeSingle
	}

	term.Detail("Working dir: %s", wd)
	term.Detail("Prompt: %s", clipText(args[0], 100))
	term.Detail("Mode: %s | Agents: %s", mode, strings.Join(agents, ", "))
	term.Blank()

	timeout := cfg.Global.Timeout.Duration()
	if runTimeout > 0 {
		timeout = time.Duration(runTimeout) * time.Second
	}

	ctx, stop := signalContext()
	defer stop()

	orch := orchestrate.New(eng, log)
	res, err := orch.Run(ctx, orchestrate.Request{
		Mode:         mode,
		Prompt:       args[0],
		SystemPrompt: runSystemPrompt,
		WorkingDir:   wd,
		Agents:       agents,
		Timeout:      timeout,
		MaxBudgetUSD: runBudget,
		Progress: func(agentName, state, detail string) {
			term.Info("%s %s — %s", progressIcon(state), agentName, detail)
		},
	})
	if err != nil {
		return err
	}

	term.Blank()
	fmt.Fprintln(cmd.OutOrStdout(), tui.OrchestrationView(res))
	return nil
}

func progressIcon(state string) string {
	switch state {
	case "running":
		return "▸"
	case "queued":
		return "·"
	case "done":
		return "✓"
	case "failed":
		return "✗"
	default:
		return "?"
	}
}
