package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/forge/internal/agent"
	"github.com/fyrsmithlabs/forge/internal/classify"
	"github.com/fyrsmithlabs/forge/internal/console"
	"github.com/fyrsmithlabs/forge/internal/logging"
	"github.com/fyrsmithlabs/forge/internal/verify"
)

// stubSuiteRunner replays scripted results and records the suites it
// was asked to run.
type stubSuiteRunner struct {
	mu      sync.Mutex
	results []verify.Result
	calls   int
	suites  []verify.Suite
}

func (s *stubSuiteRunner) RunSuite(ctx context.Context, suite verify.Suite) verify.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.suites = append(s.suites, suite)
	if len(s.results) == 0 {
		return verify.Result{Passed: true, Output: "ok", Commands: len(suite.AllCommands())}
	}
	if s.calls <= len(s.results) {
		return s.results[s.calls-1]
	}
	return s.results[len(s.results)-1]
}

func (s *stubSuiteRunner) RunCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestBuildSucceedsFirstIteration(t *testing.T) {
	dir := t.TempDir()
	coder := trackerCoder("claude-sonnet")
	suite := &stubSuiteRunner{}

	sink := console.NewCapture()
	b := NewBuild(agent.RegistryOf(coder), dir, BuildOptions{
		Agent:         "claude-sonnet",
		MaxIterations: 3,
		Commands:      []string{"npm test"},
		Suite:         suite,
		Deps:          stubDeps{},
	}, sink, logging.NewNop())

	res, err := b.Run(context.Background(), trackerObjective)
	require.NoError(t, err)

	assert.True(t, res.Succeeded)
	require.Len(t, res.Steps, 1)
	step := res.Steps[0]
	assert.True(t, step.VerifyPassed)
	assert.True(t, step.Succeeded)
	assert.ElementsMatch(t, []string{"README.md", "tracker.js"}, step.FilesCreated)
	assert.InDelta(t, 0.30, res.TotalCostUSD, 1e-9)

	require.Equal(t, 1, suite.RunCount())
	assert.Equal(t, []string{"npm test"}, suite.suites[0].TestCommands)
	assert.True(t, sink.Contains(console.KindSuccess, "Build succeeded on iteration 1"))
}

func TestBuildEscalatesAfterConsecutiveFailures(t *testing.T) {
	dir := t.TempDir()
	haiku := trackerCoder("claude-haiku")
	sonnet := trackerCoder("claude-sonnet")

	fail := verify.Result{
		Passed:    false,
		Output:    "1 failed",
		ErrorText: "SyntaxError: invalid syntax (app.py, line 3)",
	}
	suite := &stubSuiteRunner{results: []verify.Result{
		fail, fail, fail,
		{Passed: true, Output: "4 passed"},
	}}

	sink := console.NewCapture()
	b := NewBuild(agent.RegistryOf(haiku, sonnet), dir, BuildOptions{
		Agent:         "claude-haiku",
		MaxIterations: 5,
		Commands:      []string{"pytest"},
		Suite:         suite,
		Deps:          stubDeps{},
	}, sink, logging.NewNop())

	res, err := b.Run(context.Background(), trackerObjective)
	require.NoError(t, err)

	assert.True(t, res.Succeeded)
	require.Len(t, res.Steps, 4)
	assert.Equal(t, "claude-haiku", res.Steps[2].Agent)
	assert.Equal(t, "claude-sonnet", res.Steps[3].Agent)
	assert.Equal(t, "claude-sonnet", b.Agent())
	assert.Equal(t, 3, haiku.AgenticCallCount())
	assert.Equal(t, 1, sonnet.AgenticCallCount())
	assert.True(t, sink.Contains(console.KindWarn, "Escalated to claude-sonnet"))

	require.NotNil(t, res.Steps[0].Classified)
	assert.Equal(t, classify.CategorySyntax, res.Steps[0].Classified.Category)
}

func TestBuildFileActivitySignalWithoutCommands(t *testing.T) {
	dir := t.TempDir()
	coder := agent.NewAgenticMock("claude-sonnet",
		agent.Outcome{Status: agent.StatusSuccess, Output: "Wrote the notes.", CostUSD: 0.05})
	coder.Files = map[string]string{
		"notes.md":   "# Notes\n",
		"agenda.txt": "1. plan\n",
	}
	suite := &stubSuiteRunner{}

	sink := console.NewCapture()
	b := NewBuild(agent.RegistryOf(coder), dir, BuildOptions{
		Agent:         "claude-sonnet",
		MaxIterations: 2,
		Suite:         suite,
		Deps:          stubDeps{},
	}, sink, logging.NewNop())

	res, err := b.Run(context.Background(), "Collect meeting notes into an agenda")
	require.NoError(t, err)

	// No recognizable project language, so file activity is the
	// success signal and no suite ever runs.
	assert.True(t, res.Succeeded)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, 0, suite.RunCount())
	assert.True(t, sink.Contains(console.KindDetail, "file activity check"))
}

func TestBuildPromptCarriesMemoryAndLastError(t *testing.T) {
	dir := t.TempDir()
	coder := trackerCoder("claude-sonnet")

	fail := verify.Result{
		Passed:    false,
		Output:    "1 failed",
		ErrorText: "ModuleNotFoundError: No module named 'requests'",
	}
	suite := &stubSuiteRunner{results: []verify.Result{fail, fail}}

	b := NewBuild(agent.RegistryOf(coder), dir, BuildOptions{
		Agent:         "claude-sonnet",
		MaxIterations: 2,
		Commands:      []string{"pytest"},
		Suite:         suite,
		Deps:          stubDeps{},
	}, console.NewCapture(), logging.NewNop())

	res, err := b.Run(context.Background(), trackerObjective)
	require.NoError(t, err)
	assert.False(t, res.Succeeded)

	calls := coder.Calls()
	require.Len(t, calls, 2)
	first, second := calls[0].Prompt, calls[1].Prompt

	assert.Contains(t, first, "OBJECTIVE: "+trackerObjective)
	assert.NotContains(t, first, "BUILD HISTORY:")

	assert.Contains(t, second, "BUILD HISTORY:")
	assert.Contains(t, second, "LAST ERROR (dependency):")
	assert.Contains(t, second, "actually write the code files")
}

func TestBuildAgentNotFound(t *testing.T) {
	dir := t.TempDir()
	suite := &stubSuiteRunner{}

	sink := console.NewCapture()
	b := NewBuild(agent.RegistryOf(), dir, BuildOptions{
		Agent:         "ghost",
		MaxIterations: 1,
		Commands:      []string{"pytest"},
		Suite:         suite,
		Deps:          stubDeps{},
	}, sink, logging.NewNop())

	res, err := b.Run(context.Background(), trackerObjective)
	require.NoError(t, err)

	assert.False(t, res.Succeeded)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, `Agent "ghost" not found`, res.Steps[0].Output)
	assert.Equal(t, 0, suite.RunCount())
}
