package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// StateFilename is the duo resume sidecar, written to the workspace
// after every recorded round and removed on approval.
const StateFilename = ".forge-duo-state.json"

// stateVersion guards the sidecar schema. A mismatch is treated the
// same as a missing file: the run starts fresh.
const stateVersion = 1

// State is the persisted snapshot of an interrupted duo run.
type State struct {
	Version    int          `json:"version"`
	Objective  string       `json:"objective"`
	Planner    string       `json:"planner"`
	Coder      string       `json:"coder"`
	LastPhase  Phase        `json:"last_phase"`
	PlanOutput string       `json:"plan_output"`
	Rounds     []StateRound `json:"rounds"`
}

// StateRound is the serialized form of a Round.
type StateRound struct {
	Number     int     `json:"round_number"`
	Phase      Phase   `json:"phase"`
	Agent      string  `json:"agent"`
	Prompt     string  `json:"prompt,omitempty"`
	Output     string  `json:"output"`
	Success    bool    `json:"success"`
	DurationMS int64   `json:"duration_ms"`
	CostUSD    float64 `json:"cost_usd"`
}

// SaveState writes the resume sidecar. Failures are the caller's to
// log; a build never stops because its bookkeeping could not be
// written.
func SaveState(dir string, st State) error {
	st.Version = stateVersion
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, StateFilename), data, 0o644)
}

// LoadState reads the resume sidecar. It returns nil when the file is
// missing, unreadable, corrupt, or from a different schema version;
// in every such case the run starts fresh.
func LoadState(dir string) *State {
	data, err := os.ReadFile(filepath.Join(dir, StateFilename))
	if err != nil {
		return nil
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil
	}
	if st.Version != stateVersion {
		return nil
	}
	return &st
}

// ClearState removes the resume sidecar. Missing files are fine.
func ClearState(dir string) {
	_ = os.Remove(filepath.Join(dir, StateFilename))
}

func toStateRounds(rounds []Round) []StateRound {
	out := make([]StateRound, 0, len(rounds))
	for _, r := range rounds {
		out = append(out, StateRound{
			Number:     r.Number,
			Phase:      r.Phase,
			Agent:      r.Agent,
			Prompt:     r.Prompt,
			Output:     r.Output,
			Success:    r.Success,
			DurationMS: r.Duration.Milliseconds(),
			CostUSD:    r.CostUSD,
		})
	}
	return out
}

func roundsFromState(rounds []StateRound) []Round {
	out := make([]Round, 0, len(rounds))
	for _, r := range rounds {
		out = append(out, Round{
			Number:   r.Number,
			Phase:    r.Phase,
			Agent:    r.Agent,
			Prompt:   r.Prompt,
			Output:   r.Output,
			Success:  r.Success,
			Duration: time.Duration(r.DurationMS) * time.Millisecond,
			CostUSD:  r.CostUSD,
		})
	}
	return out
}
