package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/forge/internal/agent"
	"github.com/fyrsmithlabs/forge/internal/checkpoint"
	"github.com/fyrsmithlabs/forge/internal/console"
	"github.com/fyrsmithlabs/forge/internal/pipeline"
	"github.com/fyrsmithlabs/forge/internal/tui"
)

var (
	buildAgent      string
	buildDir        string
	buildNewProject string
	buildMaxIter    int
	buildTestCmds   []string
	buildAutoCommit bool
)

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVarP(&buildAgent, "agent", "a", "", "agent to build with (default: best available)")
	buildCmd.Flags().StringVarP(&buildDir, "dir", "d", "", "working directory")
	buildCmd.Flags().StringVarP(&buildNewProject, "new", "n", "", "create a new project directory with this name")
	buildCmd.Flags().IntVarP(&buildMaxIter, "max-iter", "i", pipeline.DefaultMaxIterations, "maximum build iterations")
	buildCmd.Flags().StringArrayVarP(&buildTestCmds, "test-cmd", "t", nil, "verification command (repeatable)")
	buildCmd.Flags().BoolVar(&buildAutoCommit, "auto-commit", false, "commit after each passing iteration")
}

var buildCmd = &cobra.Command{
	Use:   "build OBJECTIVE",
	Short: "Autonomous build loop: plan, code, verify, fix",
	Long: `Build drives one agent through an observe-and-fix loop until the
verification commands pass or the iteration budget runs out.

Examples:
  forge build "REST API for todo items with sqlite"
  forge build -n todoapi "REST API for todo items"
  forge build -a claude-opus -t "pytest -q" "fix the failing tests"`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	banner(cmd)

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	term := console.NewTerminal(cmd.OutOrStdout())
	reg := agent.NewRegistry(cfg.Agents, log)

	wd, created, err := resolveWorkdir(cfg, buildDir, buildNewProject)
	if err != nil {
		return err
	}
	if created {
		if cfg.Workspace.CreateGit {
			if err := checkpoint.NewManager(wd, log).EnsureRepo(); err != nil {
				term.Warn("git init failed: %v", err)
			}
		}
		term.Success("Created project: %s", wd)
	}

	name := buildAgent
	if name == "" {
		name = defaultBuildAgent(reg)
	}
	if name == "" {
		term.Error("No agents available.")
		term.Detail("Install at least one: claude, gemini, or gh copilot")
		return errors.New("no agents available")
	}

	commands := buildTestCmds
	if len(commands) == 0 {
		commands = cfg.Build.TestCommands
	}

	term.Detail("Working dir: %s", wd)
	term.Detail("Objective: %s", clipText(args[0], 100))
	term.Detail("Agent: %s | Max iterations: %d", name, buildMaxIter)
	if len(commands) > 0 {
		term.Detail("Tests: %v", commands)
	}
	term.Blank()

	ctx, stop := signalContext()
	defer stop()

	build := pipeline.NewBuild(reg, wd, pipeline.BuildOptions{
		Agent:         name,
		MaxIterations: buildMaxIter,
		Commands:      commands,
		AutoCommit:    buildAutoCommit || cfg.Build.AutoCommit,
		EscalateAfter: cfg.Build.EscalateAfter,
		Timeout:       cfg.Global.Timeout.Duration(),
	}, term, log)

	res, err := build.Run(ctx, args[0])
	if err != nil {
		return err
	}

	term.Blank()
	term.Detail("Total iterations: %d", len(res.Steps))
	if res.TotalCostUSD > 0 {
		term.Detail("Total cost: %s", tui.FormatCost(res.TotalCostUSD))
	}
	if res.Succeeded {
		term.Success("Build completed successfully.")
	} else {
		term.Warn("Build did not fully complete.")
	}
	return nil
}

// defaultBuildAgent prefers the strong general-purpose coders before
// falling back to whatever is installed.
func defaultBuildAgent(reg *agent.Registry) string {
	for _, name := range []string{"claude-sonnet", "claude-opus", "claude-haiku"} {
		if a, ok := reg.Get(name); ok && a.Available() {
			return name
		}
	}
	return reg.FirstAvailable()
}
