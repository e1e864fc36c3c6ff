// Package pipeline drives multi-phase build runs against the agent
// registry. Two pipelines live here: Duo pairs a read-only
// planner/reviewer with an agentic coder through a bounded
// plan/code/verify/review/fix loop, and Build drives a single agentic
// coder through verify-classify-retry iterations.
//
// Both pipelines share the same supporting cast: verification runs
// through the Verifier seam, dependency handling through DepResolver,
// workspace snapshots through git checkpoints, and escalation through
// the session memory's consecutive-failure counter. The seams exist so
// tests can script verification outcomes without shelling out.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/forge/internal/score"
	"github.com/fyrsmithlabs/forge/internal/verify"
)

// Phase names one step of the duo loop. Phases are recorded on every
// round and drive the resume logic: the phase a run stopped in decides
// which steps a resumed run may skip.
type Phase string

const (
	PhasePlan   Phase = "PLAN"
	PhaseCode   Phase = "CODE"
	PhaseVerify Phase = "VERIFY"
	PhaseReview Phase = "REVIEW"
	PhaseFix    Phase = "FIX"
)

// Round records one executed phase: who ran, what they were asked,
// what came back, and what it cost.
type Round struct {
	// Number is the 1-based position in the run, assigned on record.
	Number int

	// Phase is the loop step this round executed.
	Phase Phase

	// Agent is the registry name that ran the round. Verification
	// rounds carry "forge" since no agent is involved.
	Agent string

	// Prompt holds the leading part of the prompt, bounded for
	// display and state storage.
	Prompt string

	// Output is the full agent or verifier output.
	Output string

	// Success reports whether the phase completed normally. For
	// verification rounds it mirrors the verify result.
	Success bool

	// Duration is the wall time of the phase.
	Duration time.Duration

	// CostUSD is the agent spend attributed to the round.
	CostUSD float64

	// FilesCreated and FilesModified list workspace-relative paths an
	// agentic round touched.
	FilesCreated  []string
	FilesModified []string

	// RolledBack marks a verification round that detected a
	// regression and restored the previous checkpoint.
	RolledBack bool
}

// Result is the outcome of a completed duo run.
type Result struct {
	// Rounds holds every recorded phase in execution order.
	Rounds []Round

	// Approved reports whether the reviewer approved the build.
	Approved bool

	// TotalRounds is len(Rounds), stored for serialization.
	TotalRounds int

	// FilesCreated lists the workspace files present at finalization.
	FilesCreated []string

	// TotalCostUSD sums agent spend across all rounds.
	TotalCostUSD float64

	// TotalDuration sums per-round durations. The run's wall time is
	// recorded separately on the history record.
	TotalDuration time.Duration

	// Score is the structural quality assessment taken at
	// finalization.
	Score score.QualityScore
}

// Verifier runs the project's build/test suite. verify.Runner is the
// production implementation; tests substitute a scripted one.
type Verifier interface {
	Run(ctx context.Context) verify.Result
}

// DepResolver installs dependencies between agentic steps.
// deps.Resolver is the production implementation.
type DepResolver interface {
	// InstallManifest installs from the project manifest when one
	// exists, returning the tools that ran.
	InstallManifest(ctx context.Context) []string

	// Resolve parses error text for missing modules and installs
	// them, returning the resolved names.
	Resolve(ctx context.Context, errorText string) []string
}

// Prompter asks the operator a question between review rounds and
// returns their answer. ok is false when input is closed (EOF), which
// aborts the run.
type Prompter func(question string) (answer string, ok bool)

// retryDelay separates the two dispatch attempts of a phase. A
// variable so tests can skip the wait.
var retryDelay = 3 * time.Second

const (
	// promptKeep bounds the prompt excerpt stored on a round.
	promptKeep = 200

	// planSoftMax and planKeep bound the architecture plan when it is
	// embedded in the coder prompt.
	planSoftMax = 8000
	planKeep    = 7500

	// feedbackSoftMax and feedbackKeep bound review feedback when it
	// is embedded in the fix prompt.
	feedbackSoftMax = 3000
	feedbackKeep    = 2500

	// promptErrorsMax bounds verification error text in prompts.
	promptErrorsMax = 2000

	// approvalWindow is how many leading bytes of a review are
	// searched for the approval marker.
	approvalWindow = 100

	// outputDisplayMax bounds agent output echoed to the console.
	outputDisplayMax = 2000

	// keyFilesTotalMax and keyFileEachMax bound the file contents
	// embedded in review prompts.
	keyFilesTotalMax = 4000
	keyFileEachMax   = 1500

	// historyBudget bounds the previous-rounds digest in review
	// prompts.
	historyBudget = 800
)

// head returns at most n leading bytes of s.
func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// displayTrunc bounds text echoed to the console, noting how much was
// cut.
func displayTrunc(s string) string {
	if len(s) <= outputDisplayMax {
		return s
	}
	return fmt.Sprintf("%s\n\n... (%d more chars)", s[:outputDisplayMax], len(s)-outputDisplayMax)
}

// isApproved reports whether review output signals approval. Only the
// leading window is searched so that a review which merely discusses
// approval criteria later in the text does not count.
func isApproved(output string) bool {
	lead := head(strings.TrimSpace(output), approvalWindow)
	return strings.Contains(strings.ToUpper(lead), "APPROVED")
}
