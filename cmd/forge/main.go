// Package main implements the forge CLI: agent orchestration, the
// autonomous build pipelines, and the run-history tooling.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/forge/internal/config"
	"github.com/fyrsmithlabs/forge/internal/logging"
	"github.com/fyrsmithlabs/forge/internal/tui"
)

var (
	// configPath overrides config file discovery.
	configPath string
	logLevel   string
	logFormat  string

	// version information (set via ldflags during build)
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "AI coding agent orchestrator",
	Long: `Forge unifies Claude Code, Gemini, and GitHub Copilot into a single
console for autonomous builds.

Orchestration Modes:
  single    - One agent, one shot (default)
  parallel  - All agents, same prompt, pick best
  chain     - Sequential: output feeds into next agent
  review    - One produces, another reviews & improves
  consensus - All produce, then cross-critique to synthesize
  swarm     - Break into subtasks, assign to best agents`,
	Version:      version,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), tui.Banner(version))
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to forge.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, console)")
}

// setup loads the configuration and builds the logger every command
// shares. Command-line flags override file settings.
func setup() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(configPath, ".")
	if err != nil {
		return nil, nil, err
	}

	level := logLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	format := logFormat
	if format == "" {
		format = cfg.Logging.Format
	}
	logCfg, err := logging.ParseConfig(level, format)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// banner prints the startup header.
func banner(cmd *cobra.Command) {
	fmt.Fprintln(cmd.OutOrStdout(), tui.Banner(version))
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// resolveWorkdir picks the working directory: a --new project under the
// projects root, or the --dir value made absolute. Reports whether a
// new project directory was created.
func resolveWorkdir(cfg *config.Config, dir, newProject string) (string, bool, error) {
	if newProject != "" {
		root := cfg.Workspace.ProjectsRoot
		if root == "" {
			root = "."
		}
		wd := filepath.Join(expandHome(root), newProject)
		if err := os.MkdirAll(wd, 0o755); err != nil {
			return "", false, fmt.Errorf("create project directory: %w", err)
		}
		return wd, true, nil
	}

	if dir == "" {
		dir = cfg.Workspace.DefaultDir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false, err
	}
	return abs, false, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// clipText bounds s for display, marking the cut.
func clipText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
