package memory

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passRecord(n int, files ...string) IterationRecord {
	return IterationRecord{
		Iteration:    n,
		Agent:        "claude-sonnet",
		FilesCreated: files,
		TestsPassed:  true,
	}
}

func failRecord(n int, errText string) IterationRecord {
	return IterationRecord{
		Iteration:     n,
		Agent:         "claude-sonnet",
		TestsPassed:   false,
		ErrorSummary:  errText,
		ErrorCategory: "syntax",
	}
}

func TestSessionInitialState(t *testing.T) {
	s := NewSession()

	assert.Equal(t, 0, s.Count())
	assert.Equal(t, 0.0, s.TotalCost())
	assert.False(t, s.HasSuccesses())
	assert.Equal(t, 0, s.ConsecutiveFailures())
	assert.Empty(t, s.PromptSection())
}

func TestSessionRecordSuccess(t *testing.T) {
	s := NewSession()
	rec := passRecord(1, "main.go")
	rec.CostUSD = 0.05
	s.Record(rec)

	assert.Equal(t, 1, s.Count())
	assert.True(t, s.HasSuccesses())
	assert.Equal(t, 0, s.ConsecutiveFailures())
	assert.InDelta(t, 0.05, s.TotalCost(), 1e-9)
}

func TestConsecutiveFailuresPassThenThreeFails(t *testing.T) {
	s := NewSession()
	s.Record(passRecord(1))
	s.Record(failRecord(2, "boom"))
	s.Record(failRecord(3, "boom"))
	s.Record(failRecord(4, "boom"))

	assert.Equal(t, 3, s.ConsecutiveFailures())
}

func TestConsecutiveFailuresStopsAtLastPass(t *testing.T) {
	s := NewSession()
	s.Record(failRecord(1, "boom"))
	s.Record(passRecord(2))
	s.Record(failRecord(3, "boom"))

	assert.Equal(t, 1, s.ConsecutiveFailures())
}

func TestConsecutiveFailuresAllPassing(t *testing.T) {
	s := NewSession()
	s.Record(passRecord(1))
	s.Record(passRecord(2))

	assert.Equal(t, 0, s.ConsecutiveFailures())
}

func TestShouldEscalateThreshold(t *testing.T) {
	s := NewSession()
	for i := 1; i <= 4; i++ {
		s.Record(failRecord(i, "SyntaxError"))
	}

	assert.True(t, s.ShouldEscalate(3))
	assert.True(t, s.ShouldEscalate(0), "non-positive threshold uses the default")
	assert.False(t, s.ShouldEscalate(5))
}

func TestEscalationReasonNamesCategories(t *testing.T) {
	s := NewSession()
	for i := 1; i <= 4; i++ {
		s.Record(failRecord(i, "SyntaxError: invalid syntax"))
	}

	reason := s.EscalationReason()
	assert.Contains(t, reason, "4")
	assert.Contains(t, reason, "syntax")
}

func TestEscalationReasonEmptySession(t *testing.T) {
	assert.Empty(t, NewSession().EscalationReason())
}

func TestRecordTruncatesSummaries(t *testing.T) {
	s := NewSession()
	s.Record(IterationRecord{
		Iteration:     1,
		Agent:         "gemini",
		PromptSummary: strings.Repeat("p", 1000),
		OutputSummary: strings.Repeat("o", 1000),
		ErrorSummary:  strings.Repeat("e", 1000),
	})

	recs := s.Records()
	require.Len(t, recs, 1)
	assert.Len(t, recs[0].PromptSummary, 200)
	assert.Len(t, recs[0].OutputSummary, 500)
	assert.Len(t, recs[0].ErrorSummary, 500)
}

func TestPromptSectionContents(t *testing.T) {
	s := NewSession()
	rec := passRecord(1, "app.go")
	rec.CostUSD = 0.02
	s.Record(rec)
	s.Record(failRecord(2, "undefined: handler"))

	section := s.PromptSection()
	assert.Contains(t, section, "BUILD HISTORY:")
	assert.Contains(t, section, "2 iteration(s) so far, 1 passed, 1 failed")
	assert.Contains(t, section, "$0.0200")
	assert.Contains(t, section, "Iteration 1 (claude-sonnet) -- PASSED | Created: app.go")
	assert.Contains(t, section, "Iteration 2 (claude-sonnet) -- FAILED | Error: undefined: handler [syntax]")
	assert.Contains(t, section, "PREVIOUS FAILED APPROACHES (do NOT repeat these):")
	assert.Contains(t, section, "- Iteration 2 (claude-sonnet): undefined: handler")
	assert.Contains(t, section, "Files that were successfully created/modified: app.go")
}

func TestPromptSectionKeepsLastFiveIterations(t *testing.T) {
	s := NewSession()
	for i := 1; i <= 8; i++ {
		s.Record(failRecord(i, fmt.Sprintf("err-%d", i)))
	}

	section := s.PromptSection()
	assert.NotContains(t, section, "Iteration 3 (claude-sonnet) --")
	assert.Contains(t, section, "Iteration 4 (claude-sonnet) --")
	assert.Contains(t, section, "Iteration 8 (claude-sonnet) --")
}

func TestPromptSectionKeepsLastThreeFailedApproaches(t *testing.T) {
	s := NewSession()
	for i := 1; i <= 5; i++ {
		s.Record(failRecord(i, fmt.Sprintf("approach-%d", i)))
	}

	section := s.PromptSection()
	assert.NotContains(t, section, "- Iteration 2 (claude-sonnet): approach-2")
	assert.Contains(t, section, "- Iteration 3 (claude-sonnet): approach-3")
	assert.Contains(t, section, "- Iteration 5 (claude-sonnet): approach-5")
}

func TestRecordsReturnsCopy(t *testing.T) {
	s := NewSession()
	s.Record(passRecord(1, "a.go"))

	recs := s.Records()
	recs[0].Agent = "mutated"

	assert.Equal(t, "claude-sonnet", s.Records()[0].Agent)
}
