package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRoundTrip(t *testing.T) {
	dir := t.TempDir()

	err := SaveState(dir, State{
		Objective:  "build a url shortener",
		Planner:    "gemini",
		Coder:      "claude-sonnet",
		LastPhase:  PhaseVerify,
		PlanOutput: "## 1. README.md Content\nA shortener.",
		Rounds: toStateRounds([]Round{
			{Number: 1, Phase: PhasePlan, Agent: "gemini", Output: "plan", Success: true,
				Duration: 2500 * time.Millisecond, CostUSD: 0.03},
			{Number: 2, Phase: PhaseCode, Agent: "claude-sonnet", Output: "done", Success: true,
				Duration: 41 * time.Second, CostUSD: 0.22},
			{Number: 3, Phase: PhaseVerify, Agent: "forge", Output: "all passed", Success: true},
		}),
	})
	require.NoError(t, err)

	st := LoadState(dir)
	require.NotNil(t, st)
	assert.Equal(t, "build a url shortener", st.Objective)
	assert.Equal(t, "gemini", st.Planner)
	assert.Equal(t, "claude-sonnet", st.Coder)
	assert.Equal(t, PhaseVerify, st.LastPhase)
	assert.Equal(t, "## 1. README.md Content\nA shortener.", st.PlanOutput)
	require.Len(t, st.Rounds, 3)

	rounds := roundsFromState(st.Rounds)
	assert.Equal(t, PhaseCode, rounds[1].Phase)
	assert.Equal(t, 41*time.Second, rounds[1].Duration)
	assert.InDelta(t, 0.22, rounds[1].CostUSD, 1e-9)
	assert.Equal(t, "forge", rounds[2].Agent)
}

func TestLoadStateMissing(t *testing.T) {
	assert.Nil(t, LoadState(t.TempDir()))
}

func TestLoadStateCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, StateFilename), []byte("{not json"), 0o644))
	assert.Nil(t, LoadState(dir))
}

func TestLoadStateVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	data, err := json.Marshal(map[string]any{
		"version":   2,
		"objective": "from the future",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, StateFilename), data, 0o644))
	assert.Nil(t, LoadState(dir))
}

func TestClearState(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveState(dir, State{Objective: "x", LastPhase: PhasePlan}))
	require.NotNil(t, LoadState(dir))

	ClearState(dir)
	assert.Nil(t, LoadState(dir))

	// Clearing an already-clean workspace is a no-op.
	ClearState(dir)
}
