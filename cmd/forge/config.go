package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/forge/internal/agent"
	"github.com/fyrsmithlabs/forge/internal/console"
	"github.com/fyrsmithlabs/forge/internal/tui"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Config prints the merged settings after defaults, forge.yaml, and
environment overrides are applied, plus the resulting agent roster.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	banner(cmd)

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	term := console.NewTerminal(cmd.OutOrStdout())
	reg := agent.NewRegistry(cfg.Agents, log)

	fmt.Fprintln(cmd.OutOrStdout(), tui.StatusTable(agentStatusRows(cfg, reg)))

	root := cfg.Workspace.ProjectsRoot
	if root == "" {
		root = "current directory"
	}
	term.Detail("Projects root: %s", root)
	term.Detail("Timeout: %s | Max parallel: %d", cfg.Global.Timeout.Duration(), cfg.Global.MaxParallel)
	return nil
}
