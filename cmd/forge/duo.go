package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/forge/internal/agent"
	"github.com/fyrsmithlabs/forge/internal/console"
	"github.com/fyrsmithlabs/forge/internal/pipeline"
)

var (
	duoPlanner     string
	duoCoder       string
	duoRounds      int
	duoDir         string
	duoNewProject  string
	duoNoCommit    bool
	duoInteractive bool
	duoTimeout     int
	duoResume      bool
)

// errNotApproved distinguishes an exhausted review loop from a crash.
var errNotApproved = errors.New("run ended without approval")

func init() {
	rootCmd.AddCommand(duoCmd)

	duoCmd.Flags().StringVarP(&duoPlanner, "planner", "p", pipeline.DefaultPlanner, "agent that plans and reviews")
	duoCmd.Flags().StringVarP(&duoCoder, "coder", "c", pipeline.DefaultCoder, "agent that writes the code")
	duoCmd.Flags().IntVarP(&duoRounds, "rounds", "r", pipeline.DefaultMaxRounds, "maximum review rounds")
	duoCmd.Flags().StringVarP(&duoDir, "dir", "d", ".", "working directory")
	duoCmd.Flags().StringVar(&duoNewProject, "new", "", "create a new project directory with this name")
	duoCmd.Flags().BoolVar(&duoNoCommit, "no-commit", false, "skip checkpoint commits between rounds")
	duoCmd.Flags().BoolVarP(&duoInteractive, "interactive", "i", false, "pause after each review for feedback")
	duoCmd.Flags().IntVarP(&duoTimeout, "timeout", "t", 300, "per-phase timeout in seconds")
	duoCmd.Flags().BoolVar(&duoResume, "resume", false, "resume from the last saved round")
}

var duoCmd = &cobra.Command{
	Use:   "duo OBJECTIVE",
	Short: "Planner/coder collaboration loop",
	Long: `Duo pairs a planning agent with a coding agent: the planner writes the
plan, the coder implements it, verification runs, and the planner reviews
the result. Rounds of review and fixing continue until the planner
approves or the round budget is exhausted.

Examples:
  forge duo "CLI tool that converts CSV to JSON"
  forge duo -p gemini -c claude-opus -r 3 "refactor the storage layer"
  forge duo --new shortener "URL shortener with redis"
  forge duo -i "payment webhooks" (pause after each review)`,
	Args: cobra.ExactArgs(1),
	RunE: runDuo,
}

func runDuo(cmd *cobra.Command, args []string) error {
	banner(cmd)

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	term := console.NewTerminal(cmd.OutOrStdout())
	reg := agent.NewRegistry(cfg.Agents, log)

	wd, created, err := resolveWorkdir(cfg, duoDir, duoNewProject)
	if err != nil {
		return err
	}
	if created {
		term.Detail("Created project: %s", wd)
	}

	roles := []struct{ label, name string }{
		{"planner", duoPlanner},
		{"coder", duoCoder},
	}
	for _, role := range roles {
		a, ok := reg.Get(role.name)
		if !ok {
			return fmt.Errorf("agent %q not configured (available: %s)", role.name, strings.Join(reg.Names(), ", "))
		}
		if !a.Available() {
			term.Warn("%s %q is not available", role.label, role.name)
		}
	}

	term.Headline("Collaborative Build")
	term.Detail("Planner/Reviewer: %s", duoPlanner)
	term.Detail("Coder: %s", duoCoder)
	term.Detail("Max rounds: %d", duoRounds)
	term.Detail("Working dir: %s", wd)
	term.Blank()

	opts := pipeline.Options{
		Planner:       duoPlanner,
		Coder:         duoCoder,
		MaxRounds:     duoRounds,
		Timeout:       time.Duration(duoTimeout) * time.Second,
		AutoCommit:    !duoNoCommit,
		Resume:        duoResume,
		EscalateAfter: cfg.Build.EscalateAfter,
	}
	if duoInteractive {
		opts.Prompter = stdinPrompter(cmd.InOrStdin(), term)
	}

	ctx, stop := signalContext()
	defer stop()

	res, err := pipeline.New(reg, wd, opts, term, log).Run(ctx, args[0])
	if err != nil {
		return err
	}

	term.Blank()
	if res.Approved {
		term.Success("Build complete. Project ready.")
		return nil
	}
	term.Warn("Build finished. Review manually.")
	return errNotApproved
}

// stdinPrompter reads one answer line per question. EOF aborts the run.
func stdinPrompter(r io.Reader, term *console.Terminal) pipeline.Prompter {
	scanner := bufio.NewScanner(r)
	return func(question string) (string, bool) {
		term.Info("%s", question)
		if !scanner.Scan() {
			return "", false
		}
		return strings.TrimSpace(scanner.Text()), true
	}
}
