// Package classify categorizes build and test failures to pick a retry
// strategy: quick local fix, dependency install, agent retry, model
// escalation, or architectural re-planning.
package classify

import (
	"regexp"
	"strings"
)

// Category groups failures by their root cause.
type Category string

const (
	CategorySyntax        Category = "syntax"
	CategoryDependency    Category = "dependency"
	CategoryLogic         Category = "logic"
	CategoryArchitecture  Category = "architecture"
	CategoryRuntime       Category = "runtime"
	CategoryConfiguration Category = "configuration"
	CategoryUnknown       Category = "unknown"
)

// Severity determines the retry strategy.
type Severity string

const (
	// SeverityLow failures are quick corrections or auto-fixable.
	SeverityLow Severity = "low"

	// SeverityMedium failures need an agent retry with the same model.
	SeverityMedium Severity = "medium"

	// SeverityHigh failures need model escalation.
	SeverityHigh Severity = "high"

	// SeverityCritical failures need re-planning.
	SeverityCritical Severity = "critical"
)

// Result is a classified build error with routing metadata.
type Result struct {
	Category        Category
	Severity        Severity
	Summary         string
	RawOutput       string
	SuggestedAction string

	// AutoFixable marks failures forge can repair without an agent,
	// e.g. installing a missing dependency.
	AutoFixable bool
}

// ShouldEscalate reports whether the failure warrants a stronger model.
func (r Result) ShouldEscalate() bool {
	return r.Severity == SeverityHigh || r.Severity == SeverityCritical
}

// rule binds a pattern set to its classification. Rules are checked in
// order; the first with any match wins, so a dependency marker beats a
// generic runtime marker appearing in the same output.
type rule struct {
	category    Category
	severity    Severity
	action      string
	autoFixable bool
	patterns    []*regexp.Regexp
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile("(?i)" + p)
	}
	return out
}

var rules = []rule{
	{
		category: CategorySyntax,
		severity: SeverityLow,
		action:   "Fix syntax error -- simple correction, retry with same agent.",
		patterns: compile(
			`SyntaxError`,
			`IndentationError`,
			`unexpected EOF`,
			`invalid syntax`,
			`expected.*['"]`,
			`unterminated string`,
			`TabError`,
		),
	},
	{
		category:    CategoryDependency,
		severity:    SeverityLow,
		action:      "Install missing dependency, then retry.",
		autoFixable: true,
		patterns: compile(
			`ModuleNotFoundError`,
			`ImportError`,
			`No module named`,
			`Could not find a version`,
			`pip install`,
			`npm ERR!.*not found`,
			`package.*not found`,
			`Cannot find module`,
			`Module not found`,
			`error\[E0432\]`,
			`cannot find package`,
		),
	},
	{
		category: CategoryConfiguration,
		severity: SeverityMedium,
		action:   "Fix configuration -- create missing file or set variable.",
		patterns: compile(
			`FileNotFoundError.*config`,
			`No such file or directory`,
			`environment variable.*not set`,
			`missing.*configuration`,
			`ENOENT`,
		),
	},
	{
		category: CategoryLogic,
		severity: SeverityMedium,
		action:   "Fix logic error -- review test expectations and implementation.",
		patterns: compile(
			`AssertionError`,
			`FAILED.*assert`,
			`Expected.*but got`,
			`Test failed`,
			`test.*FAILED`,
			`FAIL:`,
			`failures=\d+`,
			`errors=\d+`,
		),
	},
	{
		category: CategoryRuntime,
		severity: SeverityMedium,
		action:   "Fix runtime error -- check types and edge cases.",
		patterns: compile(
			`TypeError`,
			`ValueError`,
			`KeyError`,
			`IndexError`,
			`AttributeError`,
			`RuntimeError`,
			`ZeroDivisionError`,
			`FileNotFoundError`,
			`PermissionError`,
			`OSError`,
			`Traceback \(most recent call last\)`,
			`panic:`,
			`Segmentation fault`,
		),
	},
}

// Classify inspects build/test output and returns its classification.
// Unrecognized output is CategoryUnknown at medium severity.
func Classify(output string) Result {
	for _, r := range rules {
		if matchesAny(output, r.patterns) {
			return Result{
				Category:        r.category,
				Severity:        r.severity,
				Summary:         extractSummary(output, r.patterns),
				RawOutput:       output,
				SuggestedAction: r.action,
				AutoFixable:     r.autoFixable,
			}
		}
	}
	return Result{
		Category:        CategoryUnknown,
		Severity:        SeverityMedium,
		Summary:         truncate(strings.TrimSpace(output), 200),
		RawOutput:       output,
		SuggestedAction: "Review error output and fix accordingly.",
	}
}

// ClassifyRepeated inspects a failure history for stuck patterns. Three
// consecutive failures in the same category mean the approach itself is
// wrong: the result escalates to an architecture-level finding.
func ClassifyRepeated(results []Result) Result {
	if len(results) < 3 {
		if len(results) > 0 {
			return results[len(results)-1]
		}
		return Result{
			Category:        CategoryUnknown,
			Severity:        SeverityMedium,
			Summary:         "No errors to classify",
			SuggestedAction: "No action needed.",
		}
	}

	last3 := results[len(results)-3:]
	category := last3[0].Category
	same := true
	for _, r := range last3[1:] {
		if r.Category != category {
			same = false
			break
		}
	}
	if !same {
		return results[len(results)-1]
	}

	return Result{
		Category:  CategoryArchitecture,
		Severity:  SeverityHigh,
		Summary:   "Persistent " + string(category) + " errors across 3+ iterations.",
		RawOutput: results[len(results)-1].RawOutput,
		SuggestedAction: "Escalate to stronger model. The current approach has a fundamental " +
			string(category) + " issue that needs re-thinking.",
	}
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// extractSummary returns the first line matching the winning patterns.
func extractSummary(text string, patterns []*regexp.Regexp) string {
	for _, line := range strings.Split(text, "\n") {
		for _, p := range patterns {
			if p.MatchString(line) {
				return truncate(strings.TrimSpace(line), 200)
			}
		}
	}
	return truncate(strings.TrimSpace(text), 200)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
