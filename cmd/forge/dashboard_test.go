package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/forge/internal/dashboard"
	"github.com/fyrsmithlabs/forge/internal/history"
)

func TestDashboardCmd_Exists(t *testing.T) {
	for _, c := range rootCmd.Commands() {
		if c.Name() == "dashboard" {
			return
		}
	}
	t.Fatal("dashboard command not registered")
}

func TestDashboardCmd_Help(t *testing.T) {
	if dashboardCmd.Short == "" {
		t.Error("dashboard command has no short description")
	}
	if !strings.Contains(dashboardCmd.Long, "HTML") {
		t.Error("dashboard long help should mention the HTML report")
	}
}

func TestDashboardCmd_Flags(t *testing.T) {
	for _, name := range []string{"dir", "serve", "host", "port"} {
		if dashboardCmd.Flags().Lookup(name) == nil {
			t.Errorf("dashboard flag --%s not registered", name)
		}
	}

	if f := dashboardCmd.Flags().Lookup("host"); f.DefValue != "localhost" {
		t.Errorf("host default = %q, want localhost", f.DefValue)
	}
	if f := dashboardCmd.Flags().Lookup("port"); f.DefValue != "8712" {
		t.Errorf("port default = %q, want 8712", f.DefValue)
	}
}

func TestDashboardCmd_WritesReport(t *testing.T) {
	dir := t.TempDir()
	rec := history.RunRecord{
		Objective: "render me", Planner: "gemini", Coder: "claude-sonnet",
		QualityScore: 88, Grade: "B", Approved: true,
	}
	if err := history.Append(dir, rec); err != nil {
		t.Fatalf("seed history: %v", err)
	}

	defer func() { dashDir = "." }()
	dashDir = dir

	var out bytes.Buffer
	dashboardCmd.SetOut(&out)
	defer dashboardCmd.SetOut(nil)

	if err := dashboardCmd.RunE(dashboardCmd, nil); err != nil {
		t.Fatalf("dashboard: %v", err)
	}

	if !strings.Contains(out.String(), "Dashboard written to") {
		t.Errorf("missing success line:\n%s", out.String())
	}
	report := filepath.Join(dir, dashboard.Filename)
	data, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !strings.Contains(string(data), "render me") {
		t.Error("report should include the seeded objective")
	}
}
