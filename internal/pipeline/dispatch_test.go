package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/forge/internal/agent"
	"github.com/fyrsmithlabs/forge/internal/console"
	"github.com/fyrsmithlabs/forge/internal/logging"
)

func quickRetries(t *testing.T) {
	t.Helper()
	old := retryDelay
	retryDelay = time.Millisecond
	t.Cleanup(func() { retryDelay = old })
}

func dispatchTestDuo(t *testing.T, dir string, adapters ...agent.Adapter) *Duo {
	t.Helper()
	d := New(agent.RegistryOf(adapters...), dir, Options{
		Verifier: &stubVerifier{},
		Deps:     stubDeps{},
	}, console.NewCapture(), logging.NewNop())
	require.NoError(t, d.ckpt.EnsureRepo())
	return d
}

func TestDispatchUnknownAgent(t *testing.T) {
	d := dispatchTestDuo(t, t.TempDir())

	round := d.dispatch(context.Background(), "ghost", "do something", PhaseReview)

	assert.False(t, round.Success)
	assert.Equal(t, `Agent "ghost" not found`, round.Output)
	assert.Equal(t, PhaseReview, round.Phase)
}

func TestDispatchRetriesOnFailure(t *testing.T) {
	quickRetries(t)
	planner := agent.NewMock("gemini",
		agent.Outcome{Status: agent.StatusFailed, Detail: "rate limited"},
		agent.Outcome{Status: agent.StatusSuccess, Output: "second try worked"},
	)
	d := dispatchTestDuo(t, t.TempDir(), planner)

	round := d.dispatch(context.Background(), "gemini", "plan it", PhasePlan)

	assert.True(t, round.Success)
	assert.Equal(t, "second try worked", round.Output)
	assert.Equal(t, 2, planner.CallCount())
}

func TestDispatchNoRetryAfterSuccess(t *testing.T) {
	planner := agent.NewMock("gemini", agent.Outcome{Status: agent.StatusSuccess, Output: "plan"})
	d := dispatchTestDuo(t, t.TempDir(), planner)

	round := d.dispatch(context.Background(), "gemini", "plan it", PhasePlan)

	assert.True(t, round.Success)
	assert.Equal(t, 1, planner.CallCount())
}

func TestDispatchPromptExcerptBounded(t *testing.T) {
	planner := agent.NewMock("gemini")
	d := dispatchTestDuo(t, t.TempDir(), planner)

	long := strings.Repeat("p", 5*promptKeep)
	round := d.dispatch(context.Background(), "gemini", long, PhasePlan)

	assert.Len(t, round.Prompt, promptKeep)

	// The agent still receives the full prompt.
	task, ok := planner.LastTask()
	require.True(t, ok)
	assert.Len(t, task.Prompt, 5*promptKeep)
}

func TestDispatchAgenticCollectsFiles(t *testing.T) {
	coder := agent.NewAgenticMock("claude-sonnet")
	coder.Files = map[string]string{
		"src/app.py":  "print('hello')\n",
		"src/util.py": "def add(a, b):\n    return a + b\n",
	}
	dir := t.TempDir()
	d := dispatchTestDuo(t, dir, coder)

	round := d.dispatchAgentic(context.Background(), "claude-sonnet", "implement", PhaseCode)

	assert.True(t, round.Success)
	assert.ElementsMatch(t, []string{"src/app.py", "src/util.py"}, round.FilesCreated)
	require.NotNil(t, d.lastRef)
	assert.Equal(t, "code-1", d.lastRef.Label)
}

func TestDispatchAgenticExtractFallback(t *testing.T) {
	// A read-only backend describes its files in the transcript
	// instead of writing them.
	output := "Here is the implementation:\n\n" +
		"=== FILE: src/util.py ===\n" +
		"def add(a, b):\n    return a + b\n" +
		"=== END FILE ===\n"
	coder := agent.NewMock("gemini", agent.Outcome{Status: agent.StatusSuccess, Output: output})
	dir := t.TempDir()
	d := dispatchTestDuo(t, dir, coder)

	round := d.dispatchAgentic(context.Background(), "gemini", "implement", PhaseCode)

	assert.True(t, round.Success)
	assert.Contains(t, round.FilesCreated, "src/util.py")
	assert.True(t, strings.HasPrefix(round.Output, "Extracted 1 file(s): src/util.py"))

	data, err := os.ReadFile(filepath.Join(dir, "src/util.py"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "def add(a, b):")
}
