// Package config provides configuration loading for forge.
package config

import (
	"fmt"
	"time"
)

// AgentKind identifies which adapter implementation backs an agent entry.
type AgentKind string

const (
	KindClaude      AgentKind = "claude"
	KindGemini      AgentKind = "gemini"
	KindCopilot     AgentKind = "copilot"
	KindAntigravity AgentKind = "antigravity"
)

// AgentConfig describes one configured agent backend.
type AgentConfig struct {
	// Enabled controls whether the agent is registered at all.
	Enabled bool `koanf:"enabled"`

	// Kind selects the adapter implementation.
	Kind AgentKind `koanf:"kind"`

	// Command overrides the executable name (defaults per kind).
	Command string `koanf:"command"`

	// Model is passed through to the backend where supported.
	Model string `koanf:"model"`

	// MaxBudgetUSD caps spend per dispatch for backends that honor budgets.
	// Zero means no cap.
	MaxBudgetUSD float64 `koanf:"max_budget_usd"`

	// FallbackToAPI lets a CLI-backed agent fall back to its API variant
	// when the CLI is not installed.
	FallbackToAPI bool `koanf:"fallback_to_api"`

	// SkipPermissions passes the backend's permission-bypass flag on
	// agentic dispatches.
	SkipPermissions bool `koanf:"skip_permissions"`

	// ExtraArgs are appended verbatim to the backend command line.
	ExtraArgs []string `koanf:"extra_args"`
}

// WorkspaceConfig controls where builds run.
type WorkspaceConfig struct {
	// DefaultDir is the working directory when none is given.
	DefaultDir string `koanf:"default_dir"`

	// CreateGit initializes a git repository in new project directories.
	CreateGit bool `koanf:"create_git"`

	// ProjectsRoot is where --new project directories are created.
	ProjectsRoot string `koanf:"projects_root"`
}

// BuildConfig tunes the build pipeline.
type BuildConfig struct {
	// MaxRounds bounds the review/fix loop.
	MaxRounds int `koanf:"max_rounds"`

	// AutoCommit commits the working tree after each successful round.
	AutoCommit bool `koanf:"auto_commit"`

	// EscalateAfter is the consecutive-failure threshold that triggers
	// model escalation.
	EscalateAfter int `koanf:"escalate_after"`

	// VerifyTimeout bounds each verification command.
	VerifyTimeout Duration `koanf:"verify_timeout"`

	// TestCommands are default verification commands for builds that
	// pass none explicitly. Empty means suite auto-detection.
	TestCommands []string `koanf:"test_commands"`
}

// GlobalConfig holds cross-cutting settings.
type GlobalConfig struct {
	// Timeout bounds a single agent dispatch.
	Timeout Duration `koanf:"timeout"`

	// MaxParallel bounds concurrent dispatches in multi-agent modes.
	MaxParallel int `koanf:"max_parallel"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`
}

// Config is the root forge configuration.
type Config struct {
	Global    GlobalConfig           `koanf:"global"`
	Workspace WorkspaceConfig        `koanf:"workspace"`
	Build     BuildConfig            `koanf:"build"`
	Logging   LoggingConfig          `koanf:"logging"`
	Agents    map[string]AgentConfig `koanf:"agents"`
}

// DefaultAgents returns the built-in agent registry. User config entries
// override these by name; unknown names add new agents.
func DefaultAgents() map[string]AgentConfig {
	return map[string]AgentConfig{
		"claude-sonnet": {
			Enabled:      true,
			Kind:         KindClaude,
			Model:        "sonnet",
			MaxBudgetUSD: 1.0,
		},
		"claude-opus": {
			Enabled:      true,
			Kind:         KindClaude,
			Model:        "opus",
			MaxBudgetUSD: 5.0,
		},
		"claude-haiku": {
			Enabled:      true,
			Kind:         KindClaude,
			Model:        "haiku",
			MaxBudgetUSD: 0.25,
		},
		"gemini": {
			Enabled:       true,
			Kind:          KindGemini,
			FallbackToAPI: true,
		},
		"copilot": {
			Enabled: true,
			Kind:    KindCopilot,
		},
		"antigravity-pro": {
			Enabled: true,
			Kind:    KindAntigravity,
			Model:   "gemini-2.5-pro",
		},
		"antigravity-flash": {
			Enabled: true,
			Kind:    KindAntigravity,
			Model:   "gemini-2.5-flash",
		},
	}
}

// applyDefaults fills zero values with defaults. User-provided agent
// entries are merged over the built-in registry.
func applyDefaults(cfg *Config) {
	if cfg.Global.Timeout == 0 {
		cfg.Global.Timeout = Duration(120 * time.Second)
	}
	if cfg.Global.MaxParallel == 0 {
		cfg.Global.MaxParallel = 5
	}
	if cfg.Workspace.DefaultDir == "" {
		cfg.Workspace.DefaultDir = "."
	}
	if cfg.Build.MaxRounds == 0 {
		cfg.Build.MaxRounds = 10
	}
	if cfg.Build.EscalateAfter == 0 {
		cfg.Build.EscalateAfter = 3
	}
	if cfg.Build.VerifyTimeout == 0 {
		cfg.Build.VerifyTimeout = Duration(60 * time.Second)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	merged := DefaultAgents()
	for name, agent := range cfg.Agents {
		if agent.Kind == "" {
			if base, ok := merged[name]; ok {
				agent.Kind = base.Kind
			}
		}
		merged[name] = agent
	}
	cfg.Agents = merged
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Global.Timeout.Duration() <= 0 {
		return fmt.Errorf("global timeout must be positive, got %s", c.Global.Timeout.Duration())
	}
	if c.Global.MaxParallel < 1 {
		return fmt.Errorf("max_parallel must be >= 1, got %d", c.Global.MaxParallel)
	}
	if c.Build.MaxRounds < 1 {
		return fmt.Errorf("build max_rounds must be >= 1, got %d", c.Build.MaxRounds)
	}
	if c.Build.EscalateAfter < 1 {
		return fmt.Errorf("build escalate_after must be >= 1, got %d", c.Build.EscalateAfter)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	for name, agent := range c.Agents {
		if !agent.Enabled {
			continue
		}
		switch agent.Kind {
		case KindClaude, KindGemini, KindCopilot, KindAntigravity:
		default:
			return fmt.Errorf("agent %q has unknown kind %q", name, agent.Kind)
		}
		if agent.MaxBudgetUSD < 0 {
			return fmt.Errorf("agent %q has negative budget", name)
		}
	}
	return nil
}

// EnabledAgents returns the names of all enabled agents, order unspecified.
func (c *Config) EnabledAgents() []string {
	names := make([]string, 0, len(c.Agents))
	for name, agent := range c.Agents {
		if agent.Enabled {
			names = append(names, name)
		}
	}
	return names
}
