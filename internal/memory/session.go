// Package memory tracks what a build has already tried.
//
// Two layers with different lifetimes: Session holds the iteration
// history of a single run and renders it as a compact prompt digest so
// agents stop repeating failed approaches, and Store persists durable
// learnings across runs in a JSON sidecar scoped to the working
// directory.
package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Truncation bounds applied when an iteration is recorded. The digest
// injected into prompts must stay small no matter how chatty an agent
// was.
const (
	promptSummaryMax  = 200
	outputSummaryMax  = 500
	errorSummaryMax   = 500
	approachDetailMax = 200
	errorExcerptMax   = 100
)

// recentIterations is how many per-iteration lines PromptSection keeps.
const recentIterations = 5

// DefaultEscalationThreshold is the consecutive-failure count at which
// ShouldEscalate fires when the caller passes no explicit threshold.
const DefaultEscalationThreshold = 3

// IterationRecord is the snapshot of a single build iteration. Records
// are append-only: once stored they are never mutated.
type IterationRecord struct {
	// Iteration is the 1-based iteration number within the run.
	Iteration int `json:"iteration"`

	// Agent is the name of the agent that executed the iteration.
	Agent string `json:"agent"`

	// PromptSummary holds the leading part of the prompt sent to the
	// agent, truncated when recorded.
	PromptSummary string `json:"prompt_summary"`

	// OutputSummary holds the leading part of the agent's output,
	// truncated when recorded.
	OutputSummary string `json:"output_summary"`

	// FilesCreated and FilesModified list the paths the iteration
	// touched, as reported by the agent gateway.
	FilesCreated  []string `json:"files_created"`
	FilesModified []string `json:"files_modified"`

	// TestsPassed reports whether verification succeeded afterward.
	TestsPassed bool `json:"tests_passed"`

	// ErrorSummary holds the leading part of the verification error
	// text when the iteration failed, empty otherwise.
	ErrorSummary string `json:"error_summary,omitempty"`

	// ErrorCategory is the classifier's category for the failure
	// (syntax, dependency, logic, ...), empty when the iteration
	// passed.
	ErrorCategory string `json:"error_category,omitempty"`

	// CostUSD is the agent spend attributed to this iteration.
	CostUSD float64 `json:"cost_usd"`
}

// Session accumulates iteration records for one build run.
//
// It answers two questions the control loop keeps asking: "how many
// times in a row have we failed" (escalation trigger) and "what should
// the next prompt say about history" (PromptSection). Safe for
// concurrent use, although the control loop itself is sequential.
type Session struct {
	mu              sync.Mutex
	records         []IterationRecord
	failedApproach  []string
	successfulFiles map[string]struct{}
	totalCost       float64
}

// NewSession returns an empty session memory.
func NewSession() *Session {
	return &Session{successfulFiles: make(map[string]struct{})}
}

// Record appends one iteration outcome. Prompt, output, and error text
// are truncated to their summary bounds before storage; the caller may
// pass the full strings.
func (s *Session) Record(rec IterationRecord) {
	rec.PromptSummary = truncate(rec.PromptSummary, promptSummaryMax)
	rec.OutputSummary = truncate(rec.OutputSummary, outputSummaryMax)
	rec.ErrorSummary = truncate(rec.ErrorSummary, errorSummaryMax)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	s.totalCost += rec.CostUSD

	if rec.TestsPassed {
		for _, f := range rec.FilesCreated {
			s.successfulFiles[f] = struct{}{}
		}
		for _, f := range rec.FilesModified {
			s.successfulFiles[f] = struct{}{}
		}
	} else if rec.ErrorSummary != "" {
		s.failedApproach = append(s.failedApproach, fmt.Sprintf(
			"Iteration %d (%s): %s",
			rec.Iteration, rec.Agent, truncate(rec.ErrorSummary, approachDetailMax),
		))
	}
}

// Count returns the number of recorded iterations.
func (s *Session) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// TotalCost returns the accumulated agent spend across all iterations.
func (s *Session) TotalCost() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalCost
}

// Records returns a copy of all iteration records in order.
func (s *Session) Records() []IterationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]IterationRecord, len(s.records))
	copy(out, s.records)
	return out
}

// HasSuccesses reports whether any recorded iteration passed.
func (s *Session) HasSuccesses() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.TestsPassed {
			return true
		}
	}
	return false
}

// ConsecutiveFailures counts failures from the most recent record
// backward, stopping at the first passing record or the start.
func (s *Session) ConsecutiveFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].TestsPassed {
			break
		}
		count++
	}
	return count
}

// ShouldEscalate reports whether the run has accumulated at least
// maxFailures consecutive failures. Pass maxFailures <= 0 to use
// DefaultEscalationThreshold.
func (s *Session) ShouldEscalate(maxFailures int) bool {
	if maxFailures <= 0 {
		maxFailures = DefaultEscalationThreshold
	}
	return s.ConsecutiveFailures() >= maxFailures
}

// EscalationReason returns a human-readable explanation for an
// escalation decision, naming the recent error categories.
func (s *Session) EscalationReason() string {
	failures := s.ConsecutiveFailures()

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return ""
	}

	var categories []string
	start := len(s.records) - 3
	if start < 0 {
		start = 0
	}
	for _, r := range s.records[start:] {
		if r.TestsPassed {
			continue
		}
		cat := r.ErrorCategory
		if cat == "" {
			cat = "unknown"
		}
		categories = append(categories, cat)
	}

	if len(categories) == 0 {
		return fmt.Sprintf("Failed %d consecutive iterations.", failures)
	}
	return fmt.Sprintf(
		"Failed %d consecutive iterations. Error types: %s",
		failures, strings.Join(categories, ", "),
	)
}

// PromptSection renders the session as a bounded digest for injection
// into agent prompts: totals, the last few iteration one-liners, the
// most recent failed approaches flagged as do-not-repeat, and the
// files that survived a passing iteration. Returns "" when nothing has
// been recorded.
func (s *Session) PromptSection() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) == 0 {
		return ""
	}

	parts := []string{"BUILD HISTORY:"}

	total := len(s.records)
	passed := 0
	for _, r := range s.records {
		if r.TestsPassed {
			passed++
		}
	}
	parts = append(parts, fmt.Sprintf(
		"  %d iteration(s) so far, %d passed, %d failed. Total cost: $%.4f",
		total, passed, total-passed, s.totalCost,
	))

	recent := s.records
	if len(recent) > recentIterations {
		recent = recent[len(recent)-recentIterations:]
	}
	for _, r := range recent {
		status := "FAILED"
		if r.TestsPassed {
			status = "PASSED"
		}
		line := fmt.Sprintf("  Iteration %d (%s) -- %s", r.Iteration, r.Agent, status)
		if len(r.FilesCreated) > 0 {
			line += " | Created: " + strings.Join(headOf(r.FilesCreated, 5), ", ")
		}
		if r.ErrorSummary != "" {
			line += " | Error: " + truncate(r.ErrorSummary, errorExcerptMax)
		}
		if r.ErrorCategory != "" {
			line += " [" + r.ErrorCategory + "]"
		}
		parts = append(parts, line)
	}

	if len(s.failedApproach) > 0 {
		parts = append(parts, "\nPREVIOUS FAILED APPROACHES (do NOT repeat these):")
		approaches := s.failedApproach
		if len(approaches) > 3 {
			approaches = approaches[len(approaches)-3:]
		}
		for _, a := range approaches {
			parts = append(parts, "  - "+a)
		}
	}

	if len(s.successfulFiles) > 0 {
		files := make([]string, 0, len(s.successfulFiles))
		for f := range s.successfulFiles {
			files = append(files, f)
		}
		sort.Strings(files)
		parts = append(parts, fmt.Sprintf(
			"\nFiles that were successfully created/modified: %s",
			strings.Join(headOf(files, 10), ", "),
		))
	}

	return strings.Join(parts, "\n")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func headOf(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
