// Package validate gates generated projects on structural completeness.
//
// After CODE and FIX phases the orchestrator checks that the essential
// artifacts exist and are well formed: a package manifest, a README,
// source files, test files. Findings are rendered into review prompts so
// the reviewer and the fixer see concrete structural gaps alongside
// runtime errors.
package validate

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/forge/internal/workspace"
)

// Severity ranks a finding. Only critical findings fail the gate.
type Severity string

const (
	// SeverityCritical marks missing essential files or broken structure.
	SeverityCritical Severity = "CRITICAL"
	// SeverityWarning marks suboptimal but functional output.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo marks nice-to-have artifacts.
	SeverityInfo Severity = "INFO"
)

// Finding is one structural problem located during a check.
type Finding struct {
	Severity Severity
	Message  string
	// File is the path the finding refers to, relative to the project
	// root. Empty for project-wide findings.
	File string
}

// Result collects the findings from one pass over a project tree.
type Result struct {
	Findings []Finding
}

// Passed reports whether the project clears the gate. Warning and info
// findings never fail a check.
func (r Result) Passed() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityCritical {
			return false
		}
	}
	return true
}

// CriticalCount returns the number of critical findings.
func (r Result) CriticalCount() int {
	return r.countBy(SeverityCritical)
}

// WarningCount returns the number of warning findings.
func (r Result) WarningCount() int {
	return r.countBy(SeverityWarning)
}

func (r Result) countBy(sev Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == sev {
			n++
		}
	}
	return n
}

// PromptSection renders the findings as text for injection into agent
// prompts.
func (r Result) PromptSection() string {
	if len(r.Findings) == 0 {
		return "All validation checks passed."
	}

	lines := []string{fmt.Sprintf("VALIDATION: %d critical, %d warnings", r.CriticalCount(), r.WarningCount())}
	for _, f := range r.Findings {
		if f.File != "" {
			lines = append(lines, fmt.Sprintf("- [%s] %s: %s", f.Severity, f.File, f.Message))
		} else {
			lines = append(lines, fmt.Sprintf("- [%s] %s", f.Severity, f.Message))
		}
	}
	return strings.Join(lines, "\n")
}

// manifestNames are the package manifests that satisfy the manifest check,
// any one of them.
var manifestNames = []string{
	"pyproject.toml", "setup.py", "setup.cfg", "package.json",
	"Cargo.toml", "go.mod", "requirements.txt",
}

// sourceExts are the file extensions counted as source code.
var sourceExts = map[string]struct{}{
	".py": {}, ".js": {}, ".ts": {}, ".go": {},
	".rs": {}, ".java": {}, ".rb": {}, ".php": {},
}

// Check validates that a project has essential structure and files.
//
// It verifies, in order: the directory exists, it contains files at all,
// a package manifest is present, README.md exists and is non-trivial,
// source files exist, test files exist, no source file is empty, and a
// .gitignore is present.
func Check(dir string) Result {
	var result Result

	if _, err := os.Stat(dir); err != nil {
		result.Findings = append(result.Findings, Finding{
			Severity: SeverityCritical,
			Message:  "Working directory does not exist",
		})
		return result
	}

	files := workspace.ListFiles(dir)
	if len(files) == 0 {
		result.Findings = append(result.Findings, Finding{
			Severity: SeverityCritical,
			Message:  "No files found in project directory",
		})
		return result
	}

	if !anyExists(dir, manifestNames) {
		result.Findings = append(result.Findings, Finding{
			Severity: SeverityCritical,
			Message:  "No package manifest (pyproject.toml, package.json, requirements.txt, etc.)",
		})
	}

	if info, err := os.Stat(filepath.Join(dir, "README.md")); err != nil {
		result.Findings = append(result.Findings, Finding{
			Severity: SeverityCritical,
			Message:  "README.md is missing",
			File:     "README.md",
		})
	} else if info.Size() < 50 {
		result.Findings = append(result.Findings, Finding{
			Severity: SeverityWarning,
			Message:  "README.md exists but is too short (< 50 bytes)",
			File:     "README.md",
		})
	}

	var sources []string
	for _, f := range files {
		if _, ok := sourceExts[path.Ext(f)]; ok {
			sources = append(sources, f)
		}
	}
	if len(sources) == 0 {
		result.Findings = append(result.Findings, Finding{
			Severity: SeverityCritical,
			Message:  "No source code files found",
		})
	}

	hasTests := false
	for _, f := range sources {
		if strings.Contains(strings.ToLower(f), "test") {
			hasTests = true
			break
		}
	}
	if !hasTests {
		result.Findings = append(result.Findings, Finding{
			Severity: SeverityWarning,
			Message:  "No test files found (files containing 'test')",
		})
	}

	for _, f := range sources {
		if strings.HasSuffix(f, "__init__.py") {
			continue
		}
		if info, err := os.Stat(filepath.Join(dir, f)); err == nil && info.Size() == 0 {
			result.Findings = append(result.Findings, Finding{
				Severity: SeverityWarning,
				Message:  "File is empty",
				File:     f,
			})
		}
	}

	if _, err := os.Stat(filepath.Join(dir, ".gitignore")); err != nil {
		result.Findings = append(result.Findings, Finding{
			Severity: SeverityInfo,
			Message:  ".gitignore is missing",
		})
	}

	return result
}

func anyExists(dir string, names []string) bool {
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}
