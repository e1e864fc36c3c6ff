package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/forge/internal/checkpoint"
	"github.com/fyrsmithlabs/forge/internal/console"
	"github.com/fyrsmithlabs/forge/internal/logging"
	"github.com/fyrsmithlabs/forge/internal/scaffold"
)

var (
	initDir  string
	initList bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVarP(&initDir, "dir", "d", ".", "target directory")
	initCmd.Flags().BoolVarP(&initList, "list", "l", false, "list available templates")
}

var initCmd = &cobra.Command{
	Use:   "init [TEMPLATE]",
	Short: "Scaffold a project from a starter template",
	Long: `Init writes a template's starter files into the target directory and
initializes a git repository when none exists.

Examples:
  forge init --list
  forge init fastapi
  forge init nextjs -d ./web`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if initList {
		for _, t := range scaffold.List() {
			fmt.Fprintf(out, "  %-16s %s\n", t.Name, t.Description)
		}
		return nil
	}
	if len(args) != 1 {
		return errors.New("template name required (use --list to see templates)")
	}

	banner(cmd)
	term := console.NewTerminal(out)

	target, err := filepath.Abs(initDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}

	files, err := scaffold.Materialize(args[0], target)
	if err != nil {
		return err
	}

	term.Success("Initialized %q template in %s", args[0], target)
	for _, f := range files {
		term.Detail("  + %s", f)
	}

	if _, err := os.Stat(filepath.Join(target, ".git")); os.IsNotExist(err) {
		if err := checkpoint.NewManager(target, logging.NewNop()).EnsureRepo(); err == nil {
			term.Detail("  Initialized git repository")
		}
	}

	term.Blank()
	term.Detail("Next: cd %s && forge build \"your objective\"", initDir)
	return nil
}
