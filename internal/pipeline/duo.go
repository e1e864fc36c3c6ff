package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/forge/internal/agent"
	"github.com/fyrsmithlabs/forge/internal/checkpoint"
	"github.com/fyrsmithlabs/forge/internal/classify"
	"github.com/fyrsmithlabs/forge/internal/console"
	"github.com/fyrsmithlabs/forge/internal/deps"
	"github.com/fyrsmithlabs/forge/internal/escalate"
	"github.com/fyrsmithlabs/forge/internal/logging"
	"github.com/fyrsmithlabs/forge/internal/memory"
	"github.com/fyrsmithlabs/forge/internal/scaffold"
	"github.com/fyrsmithlabs/forge/internal/verify"
	"github.com/fyrsmithlabs/forge/internal/workspace"
)

// Default pairing for duo runs: a fast read-only planner and an
// agentic coder.
const (
	DefaultPlanner   = "gemini"
	DefaultCoder     = "claude-sonnet"
	DefaultMaxRounds = 5

	// DefaultAgentTimeout bounds one agent invocation within a run.
	DefaultAgentTimeout = 5 * time.Minute
)

// Options configures a duo run. Zero values take the defaults above;
// nil seams take the production implementations.
type Options struct {
	// Planner reviews as well as plans. It is dispatched read-only.
	Planner string

	// Coder implements and fixes. It is dispatched agentically.
	Coder string

	// MaxRounds bounds the review/fix loop.
	MaxRounds int

	// Timeout bounds each individual agent invocation.
	Timeout time.Duration

	// AutoCommit makes a final git commit when the run ends.
	AutoCommit bool

	// Resume restores the previous run's state sidecar when it
	// matches the objective, skipping already-completed phases.
	Resume bool

	// EscalateAfter is the consecutive-failure count that triggers a
	// coder upgrade. Zero means the default threshold.
	EscalateAfter int

	// Prompter, when set, gates each unapproved review round on
	// operator input.
	Prompter Prompter

	// Verifier overrides the production verify runner (tests).
	Verifier Verifier

	// Deps overrides the production dependency resolver (tests).
	Deps DepResolver

	// Checkpoints overrides the production checkpoint manager.
	Checkpoints *checkpoint.Manager

	// Learnings overrides the cross-run memory store.
	Learnings *memory.Store
}

// Duo runs the paired-agent pipeline: the planner designs and reviews,
// the coder implements and fixes, and verification arbitrates between
// review rounds.
type Duo struct {
	reg  *agent.Registry
	dir  string
	sink console.Sink
	log  *logging.Logger

	planner       string
	coder         string
	maxRounds     int
	timeout       time.Duration
	autoCommit    bool
	resume        bool
	escalateAfter int
	prompter      Prompter

	verifier Verifier
	deps     DepResolver
	ckpt     *checkpoint.Manager
	store    *memory.Store
	session  *memory.Session

	mu        sync.Mutex
	objective string
	rounds    []Round
	totalCost float64
	totalDur  time.Duration

	planOutput   string
	classified   []classify.Result
	strategyNote string

	// lastRef is the checkpoint of the current workspace state,
	// prevRef the one before it. Rollback restores prevRef.
	lastRef *checkpoint.Ref
	prevRef *checkpoint.Ref

	lastVerifyPassed *bool
	escalatedTo      string
}

// New wires a duo pipeline against the registry and working
// directory.
func New(reg *agent.Registry, dir string, opts Options, sink console.Sink, log *logging.Logger) *Duo {
	if opts.Planner == "" {
		opts.Planner = DefaultPlanner
	}
	if opts.Coder == "" {
		opts.Coder = DefaultCoder
	}
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultAgentTimeout
	}
	if opts.EscalateAfter <= 0 {
		opts.EscalateAfter = memory.DefaultEscalationThreshold
	}
	if sink == nil {
		sink = console.NewNop()
	}
	if log == nil {
		log = logging.NewNop()
	}
	if opts.Verifier == nil {
		opts.Verifier = verify.NewRunner(dir, log)
	}
	if opts.Deps == nil {
		opts.Deps = deps.NewResolver(dir, log)
	}
	if opts.Checkpoints == nil {
		opts.Checkpoints = checkpoint.NewManager(dir, log)
	}
	if opts.Learnings == nil {
		opts.Learnings = memory.OpenStore(dir)
	}

	return &Duo{
		reg:           reg,
		dir:           dir,
		sink:          sink,
		log:           log.Named("duo"),
		planner:       opts.Planner,
		coder:         opts.Coder,
		maxRounds:     opts.MaxRounds,
		timeout:       opts.Timeout,
		autoCommit:    opts.AutoCommit,
		resume:        opts.Resume,
		escalateAfter: opts.EscalateAfter,
		prompter:      opts.Prompter,
		verifier:      opts.Verifier,
		deps:          opts.Deps,
		ckpt:          opts.Checkpoints,
		store:         opts.Learnings,
		session:       memory.NewSession(),
	}
}

// TotalCostUSD reports the running agent spend. Safe to call while
// Run is in flight.
func (d *Duo) TotalCostUSD() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.totalCost
}

// RoundsCompleted reports how many rounds have been recorded so far.
func (d *Duo) RoundsCompleted() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rounds)
}

// Coder reports the current coder, which escalation may have changed
// since construction.
func (d *Duo) Coder() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.coder
}

// Run executes the duo loop for one objective. The returned error is
// non-nil only when the context was canceled; agent and verification
// failures are encoded in the result's rounds instead.
func (d *Duo) Run(ctx context.Context, objective string) (*Result, error) {
	start := time.Now()
	d.mu.Lock()
	d.objective = objective
	d.mu.Unlock()

	d.sink.Panel("Forge Duo", fmt.Sprintf(
		"Objective: %s\nPlanner/Reviewer: %s\nCoder: %s\nMax review rounds: %d\nWorkspace: %s",
		objective, d.planner, d.coder, d.maxRounds, d.dir))

	if err := d.ckpt.EnsureRepo(); err != nil {
		d.log.Warn(ctx, "checkpoint repo unavailable", zap.Error(err))
	}

	skipPlan, skipCode := false, false
	if d.resume {
		skipPlan, skipCode = d.restoreState(objective)
	}

	if !skipCode {
		d.maybeScaffold(ctx, objective)
	}

	if !skipPlan {
		if ok := d.planPhase(ctx, objective); !ok {
			return d.finalize(ctx, objective, start, false, true), ctx.Err()
		}
	}

	var lastAgentic Round
	if !skipCode {
		round, ok := d.codePhase(ctx, objective)
		if !ok {
			return d.finalize(ctx, objective, start, false, true), ctx.Err()
		}
		lastAgentic = round
	}

	vres := d.verifyStep(ctx, orNil(!skipCode, &lastAgentic))

	approved := false
	for i := 1; i <= d.maxRounds; i++ {
		if ctx.Err() != nil {
			break
		}

		review := d.reviewPhase(ctx, objective, i, vres)
		if isApproved(review.Output) {
			d.sink.Success("APPROVED by %s on round %d", d.planner, i)
			approved = true
			break
		}
		d.sink.Panel("Review feedback", displayTrunc(review.Output))

		userFeedback := ""
		if d.prompter != nil {
			answer, ok := d.prompter("Continue? (Enter=continue, n=abort, or type feedback): ")
			if !ok || strings.EqualFold(strings.TrimSpace(answer), "n") {
				d.sink.Warn("Build aborted by user after review round %d.", i)
				break
			}
			userFeedback = strings.TrimSpace(answer)
		}

		if ctx.Err() != nil {
			break
		}

		fixRound := d.fixPhase(ctx, objective, i, review.Output, userFeedback, vres)

		if i < d.maxRounds {
			vres = d.verifyStep(ctx, &fixRound)
		}
	}

	result := d.finalize(ctx, objective, start, approved, false)
	return result, ctx.Err()
}

// maybeScaffold seeds an empty workspace from a template inferred
// from the objective. A populated workspace is never touched, and a
// failed scaffold never stops the run.
func (d *Duo) maybeScaffold(ctx context.Context, objective string) {
	if len(workspace.ListFiles(d.dir)) > 0 {
		return
	}
	name := scaffold.Detect(objective)
	if name == "" {
		return
	}
	files, err := scaffold.Materialize(name, d.dir)
	if err != nil {
		d.log.Warn(ctx, "scaffold failed", zap.String("template", name), zap.Error(err))
		return
	}
	d.sink.Info("Scaffolded %s template (%d files)", name, len(files))
}

func (d *Duo) planPhase(ctx context.Context, objective string) bool {
	d.sink.Blank()
	d.sink.Rule("PLAN — %s designing architecture", d.planner)

	existing := workspace.ListFiles(d.dir)
	learnings := d.store.PromptSection(objective)
	prompt := planPrompt(objective, existing, learnings)

	round := d.dispatch(ctx, d.planner, prompt, PhasePlan)
	if round.Success {
		d.planOutput = round.Output
	}
	d.record(ctx, &round)

	if !round.Success {
		d.sink.Error("Planning failed: %s", head(round.Output, 200))
		return false
	}
	d.sink.Panel("Architecture plan", displayTrunc(d.planOutput))
	d.progress(ctx)
	return true
}

func (d *Duo) codePhase(ctx context.Context, objective string) (Round, bool) {
	d.sink.Blank()
	d.sink.Rule("CODE — %s implementing", d.coder)

	prompt := codePrompt(objective, d.planOutput, d.dir)
	round := d.dispatchAgentic(ctx, d.coder, prompt, PhaseCode)
	d.record(ctx, &round)

	if !round.Success {
		d.sink.Error("Implementation failed: %s", head(round.Output, 200))
		return round, false
	}
	d.sink.Success("%s wrote %d file(s)", d.coder,
		len(round.FilesCreated)+len(round.FilesModified))
	d.progress(ctx)
	return round, true
}

func (d *Duo) reviewPhase(ctx context.Context, objective string, iteration int, vres verify.Result) Round {
	d.sink.Blank()
	d.sink.Rule("REVIEW %d/%d — %s", iteration, d.maxRounds, d.planner)

	compact := workspace.GatherCompact(d.dir)

	diffText := ""
	if iteration > 1 && d.prevRef != nil && d.lastRef != nil {
		if diff, err := d.ckpt.DiffSummary(*d.prevRef, *d.lastRef); err == nil {
			diffText = diff
		}
	}

	validation := ""
	if len(vres.Validation.Findings) > 0 {
		validation = vres.Validation.PromptSection()
	}

	prompt := reviewPrompt(reviewInputs{
		Objective:    objective,
		Iteration:    iteration,
		MaxRounds:    d.maxRounds,
		Compact:      compact.Prompt(),
		KeyFiles:     readKeyFiles(d.dir),
		VerifyErrors: vres.ErrorText,
		Validation:   validation,
		Diff:         diffText,
		History:      workspace.HistorySummary(d.roundDigests(), historyBudget),
		StrategyNote: d.strategyNote,
	})

	round := d.dispatch(ctx, d.planner, prompt, PhaseReview)
	d.record(ctx, &round)
	d.progress(ctx)
	return round
}

func (d *Duo) fixPhase(ctx context.Context, objective string, iteration int, feedback, userFeedback string, vres verify.Result) Round {
	d.sink.Blank()
	d.sink.Rule("FIX %d/%d — %s", iteration, d.maxRounds, d.coder)

	compact := workspace.GatherCompact(d.dir)
	prompt := fixPrompt(fixInputs{
		Objective:    objective,
		Feedback:     feedback,
		UserFeedback: userFeedback,
		VerifyErrors: vres.ErrorText,
		Compact:      compact.Prompt(),
		Dir:          d.dir,
		Iteration:    iteration,
		MaxRounds:    d.maxRounds,
	})

	round := d.dispatchAgentic(ctx, d.coder, prompt, PhaseFix)
	d.record(ctx, &round)
	if round.Success {
		d.sink.Success("%s touched %d file(s)", d.coder,
			len(round.FilesCreated)+len(round.FilesModified))
	} else {
		d.sink.Warn("Fix attempt failed: %s", head(round.Output, 200))
	}
	d.progress(ctx)
	return round
}

// verifyStep installs dependencies, runs the suite, resolves missing
// modules, handles regression rollback, feeds the session memory, and
// may escalate the coder. produced is the agentic round being
// verified, nil when nothing new ran.
func (d *Duo) verifyStep(ctx context.Context, produced *Round) verify.Result {
	start := time.Now()
	d.sink.Blank()
	d.sink.Info("VERIFY — running checks")

	manifest := d.deps.InstallManifest(ctx)
	res := d.verifier.Run(ctx)

	if !res.Passed {
		if names := d.deps.Resolve(ctx, res.ErrorText); len(names) > 0 {
			d.sink.Detail("Auto-installed: %s", strings.Join(names, ", "))
			res = d.verifier.Run(ctx)
		}
	}

	rolledBack := false
	if d.lastVerifyPassed != nil && *d.lastVerifyPassed && !res.Passed && d.prevRef != nil {
		if err := d.ckpt.Rollback(ctx, *d.prevRef); err != nil {
			d.log.Warn(ctx, "rollback failed",
				zap.String("label", d.prevRef.Label), zap.Error(err))
		} else {
			rolledBack = true
			d.sink.Warn("Regression detected — rolled back to checkpoint %s", d.prevRef.Label)
			d.lastRef, d.prevRef = d.prevRef, nil
		}
	}

	category := ""
	if !res.Passed {
		text := res.ErrorText
		if text == "" {
			text = res.Output
		}
		cls := classify.Classify(text)
		category = string(cls.Category)
		d.classified = append(d.classified, cls)
		d.sink.Warn("Failed: %s (%s)", cls.Category, cls.Severity)
		if cls.Summary != "" {
			d.sink.Detail("%s", head(cls.Summary, 120))
		}
		if rep := classify.ClassifyRepeated(d.classified); rep.Category == classify.CategoryArchitecture {
			d.strategyNote = "REPEATED FAILURES: " + rep.Summary +
				"\nSuggested: " + rep.SuggestedAction
			d.sink.Warn("%s", rep.SuggestedAction)
		}
	} else if res.Commands > 0 {
		d.sink.Success("Verification passed (%d command(s))", res.Commands)
	} else {
		d.sink.Success("Verification passed")
	}

	if produced != nil {
		d.session.Record(memory.IterationRecord{
			Iteration:     d.session.Count() + 1,
			Agent:         produced.Agent,
			PromptSummary: produced.Prompt,
			OutputSummary: produced.Output,
			FilesCreated:  produced.FilesCreated,
			FilesModified: produced.FilesModified,
			TestsPassed:   res.Passed,
			ErrorSummary:  res.ErrorText,
			ErrorCategory: category,
			CostUSD:       produced.CostUSD,
		})
	}

	if !res.Passed && d.session.ShouldEscalate(d.escalateAfter) {
		usable := func(name string) bool {
			a, ok := d.reg.Get(name)
			return ok && a.Available()
		}
		if next, ok := escalate.Next(d.coder, usable); ok {
			d.sink.Warn("Escalated coder to %s (%s)", next, d.session.EscalationReason())
			d.mu.Lock()
			d.coder = next
			d.mu.Unlock()
			d.escalatedTo = next
		}
	}

	passed := res.Passed
	d.lastVerifyPassed = &passed

	output := res.Output
	if len(manifest) > 0 {
		output = "Installed dependencies: " + strings.Join(manifest, ", ") + "\n" + output
	}
	if rolledBack && d.lastRef != nil {
		output += "\nRolled back to checkpoint " + d.lastRef.Label
	}

	round := Round{
		Phase:      PhaseVerify,
		Agent:      "forge",
		Output:     output,
		Success:    res.Passed,
		Duration:   time.Since(start),
		RolledBack: rolledBack,
	}
	d.record(ctx, &round)
	return res
}

// record assigns the round number, accumulates totals, and persists
// the resume sidecar.
func (d *Duo) record(ctx context.Context, r *Round) {
	d.mu.Lock()
	r.Number = len(d.rounds) + 1
	d.rounds = append(d.rounds, *r)
	d.totalCost += r.CostUSD
	d.totalDur += r.Duration
	d.mu.Unlock()

	d.saveState(ctx, r.Phase)
}

func (d *Duo) saveState(ctx context.Context, last Phase) {
	d.mu.Lock()
	st := State{
		Objective:  d.objective,
		Planner:    d.planner,
		Coder:      d.coder,
		LastPhase:  last,
		PlanOutput: d.planOutput,
		Rounds:     toStateRounds(d.rounds),
	}
	d.mu.Unlock()

	if err := SaveState(d.dir, st); err != nil {
		d.log.Warn(ctx, "resume state save failed", zap.Error(err))
	}
}

// restoreState loads the resume sidecar and reports which phases the
// run may skip. A sidecar for a different objective is ignored.
func (d *Duo) restoreState(objective string) (skipPlan, skipCode bool) {
	st := LoadState(d.dir)
	if st == nil {
		return false, false
	}
	if st.Objective != objective {
		d.sink.Warn("Resume state is for a different objective; starting fresh.")
		return false, false
	}

	d.mu.Lock()
	d.rounds = roundsFromState(st.Rounds)
	for _, r := range d.rounds {
		d.totalCost += r.CostUSD
		d.totalDur += r.Duration
	}
	d.planOutput = st.PlanOutput
	if st.Planner != "" {
		d.planner = st.Planner
	}
	if st.Coder != "" {
		d.coder = st.Coder
	}
	d.mu.Unlock()

	d.sink.Info("Resuming: %d round(s) recorded, last phase %s", len(st.Rounds), st.LastPhase)

	switch st.LastPhase {
	case PhasePlan:
		return st.PlanOutput != "", false
	case PhaseCode, PhaseVerify, PhaseReview, PhaseFix:
		return true, true
	default:
		return false, false
	}
}

func (d *Duo) roundDigests() []workspace.RoundDigest {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]workspace.RoundDigest, 0, len(d.rounds))
	for _, r := range d.rounds {
		out = append(out, workspace.RoundDigest{
			Agent:  r.Agent,
			Phase:  string(r.Phase),
			Output: r.Output,
		})
	}
	return out
}

// progress prints the running totals after each phase.
func (d *Duo) progress(ctx context.Context) {
	d.mu.Lock()
	cost, dur := d.totalCost, d.totalDur
	d.mu.Unlock()
	d.sink.Detail("Total: $%.2f · %.0fs", cost, dur.Seconds())
	d.log.Debug(ctx, "round totals",
		zap.Float64("cost_usd", cost), zap.Duration("elapsed", dur))
}

func orNil(ok bool, r *Round) *Round {
	if ok {
		return r
	}
	return nil
}
