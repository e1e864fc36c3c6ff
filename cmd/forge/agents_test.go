package main

import (
	"strings"
	"testing"

	"github.com/fyrsmithlabs/forge/internal/agent"
	"github.com/fyrsmithlabs/forge/internal/config"
	"github.com/fyrsmithlabs/forge/internal/logging"
	"github.com/fyrsmithlabs/forge/internal/orchestrate"
)

func TestAgentsCmd_Exists(t *testing.T) {
	for _, c := range rootCmd.Commands() {
		if c.Name() == "agents" {
			return
		}
	}
	t.Fatal("agents command not registered")
}

func TestAgentsCmd_Help(t *testing.T) {
	if agentsCmd.Short == "" {
		t.Error("agents command has no short description")
	}
	if !strings.Contains(agentsCmd.Long, "orchestration modes") {
		t.Error("agents long help should mention orchestration modes")
	}
}

func TestModeHelp_CoversAllModes(t *testing.T) {
	documented := make(map[string]bool, len(modeHelp))
	for _, m := range modeHelp {
		documented[m.mode] = true
	}
	for _, mode := range orchestrate.Modes() {
		if !documented[string(mode)] {
			t.Errorf("mode %q missing from the help table", mode)
		}
	}
	if len(modeHelp) != len(orchestrate.Modes()) {
		t.Errorf("help table has %d entries, orchestrator knows %d modes", len(modeHelp), len(orchestrate.Modes()))
	}
}

func TestAgentStatusRows(t *testing.T) {
	cfg := &config.Config{Agents: config.DefaultAgents()}
	reg := agent.NewRegistry(cfg.Agents, logging.NewNop())

	rows := agentStatusRows(cfg, reg)
	if len(rows) != len(reg.Names()) {
		t.Fatalf("got %d rows, want %d", len(rows), len(reg.Names()))
	}
	for _, row := range rows {
		if _, ok := cfg.Agents[row.Name]; !ok {
			t.Errorf("row %q does not match a configured agent", row.Name)
		}
		if row.Type == "" {
			t.Errorf("row %q has no adapter type", row.Name)
		}
	}
}
