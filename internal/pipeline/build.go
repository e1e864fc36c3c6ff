package pipeline

import (
	"context"
	"fmt"
	"strings"
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
	"github.com/fyrsmithlabs/forge/internal/verify"
	"github.com/fyrsmithlabs/forge/internal/workspace"
)

// DefaultMaxIterations bounds the single-agent build loop.
const DefaultMaxIterations = 10

// SuiteRunner executes an explicit verification suite. verify.Runner
// is the production implementation; tests substitute a scripted one.
type SuiteRunner interface {
	RunSuite(ctx context.Context, suite verify.Suite) verify.Result
}

// BuildOptions configures a single-agent build run.
type BuildOptions struct {
	// Agent is the coder driven each iteration.
	Agent string

	// MaxIterations bounds the loop.
	MaxIterations int

	// Commands overrides suite detection with explicit verification
	// commands.
	Commands []string

	// AutoCommit commits after a passing iteration.
	AutoCommit bool

	// EnableEscalation upgrades the agent after repeated failures.
	// On by default; DisableEscalation turns it off.
	DisableEscalation bool

	// EscalateAfter is the consecutive-failure threshold. Zero means
	// the default.
	EscalateAfter int

	// Timeout bounds each agent invocation.
	Timeout time.Duration

	// Suite overrides the production verify runner (tests).
	Suite SuiteRunner

	// Deps overrides the production dependency resolver (tests).
	Deps DepResolver

	// Checkpoints overrides the production checkpoint manager.
	Checkpoints *checkpoint.Manager
}

// Step records one iteration of the single-agent loop.
type Step struct {
	Iteration     int
	Agent         string
	Prompt        string
	Output        string
	VerifyOutput  string
	VerifyPassed  bool
	Succeeded     bool
	FilesCreated  []string
	FilesModified []string
	Classified    *classify.Result
	RolledBack    bool
	CostUSD       float64
	Duration      time.Duration
}

// BuildResult is the outcome of a single-agent build run.
type BuildResult struct {
	Steps        []Step
	Succeeded    bool
	TotalCostUSD float64
}

// Build drives one agentic coder through iterate-verify-classify
// cycles until verification passes or the iteration budget runs out.
type Build struct {
	reg  *agent.Registry
	dir  string
	sink console.Sink
	log  *logging.Logger

	agentName     string
	maxIterations int
	timeout       time.Duration
	autoCommit    bool
	escalation    bool
	escalateAfter int

	suiteRunner SuiteRunner
	deps        DepResolver
	ckpt        *checkpoint.Manager
	session     *memory.Session

	suite    verify.Suite
	steps    []Step
	totalUSD float64
}

// NewBuild wires a single-agent pipeline against the registry and
// working directory.
func NewBuild(reg *agent.Registry, dir string, opts BuildOptions, sink console.Sink, log *logging.Logger) *Build {
	if opts.Agent == "" {
		opts.Agent = DefaultCoder
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
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
	if opts.Suite == nil {
		opts.Suite = verify.NewRunner(dir, log)
	}
	if opts.Deps == nil {
		opts.Deps = deps.NewResolver(dir, log)
	}
	if opts.Checkpoints == nil {
		opts.Checkpoints = checkpoint.NewManager(dir, log)
	}

	b := &Build{
		reg:           reg,
		dir:           dir,
		sink:          sink,
		log:           log.Named("build"),
		agentName:     opts.Agent,
		maxIterations: opts.MaxIterations,
		timeout:       opts.Timeout,
		autoCommit:    opts.AutoCommit,
		escalation:    !opts.DisableEscalation,
		escalateAfter: opts.EscalateAfter,
		suiteRunner:   opts.Suite,
		deps:          opts.Deps,
		ckpt:          opts.Checkpoints,
		session:       memory.NewSession(),
	}
	if len(opts.Commands) > 0 {
		b.suite = verify.Suite{TestCommands: opts.Commands}
	}
	return b
}

// Agent reports the current coder, which escalation may have changed.
func (b *Build) Agent() string { return b.agentName }

// Run executes the build loop for one objective.
func (b *Build) Run(ctx context.Context, objective string) (*BuildResult, error) {
	b.sink.Headline("Autonomous build")
	b.sink.Detail("Objective: %s", objective)
	b.sink.Detail("Agent: %s", b.agentName)
	b.sink.Detail("Directory: %s", b.dir)
	b.sink.Detail("Max iterations: %d", b.maxIterations)

	if err := b.ckpt.EnsureRepo(); err != nil {
		b.log.Warn(ctx, "checkpoint repo unavailable", zap.Error(err))
	}

	if !b.suite.HasCommands() {
		if detected, ok := b.detectSuite(); ok {
			b.suite = detected
			b.sink.Detail("Auto-detected verification: %d command(s)", len(detected.AllCommands()))
		} else {
			b.sink.Detail("Verification: file activity check")
		}
	}
	b.sink.Blank()

	if _, err := b.ckpt.Checkpoint(ctx, "pre-build"); err != nil {
		b.log.Warn(ctx, "initial checkpoint failed", zap.Error(err))
	}

	succeeded := false
	for i := 1; i <= b.maxIterations; i++ {
		if ctx.Err() != nil {
			break
		}
		b.sink.Rule("Iteration %d/%d", i, b.maxIterations)

		step := b.runIteration(ctx, i, objective)
		b.steps = append(b.steps, step)
		b.totalUSD += step.CostUSD

		if step.Succeeded {
			succeeded = true
			b.sink.Success("Build succeeded on iteration %d ($%.2f total)", i, b.totalUSD)
			break
		}

		if b.escalation && b.session.ShouldEscalate(b.escalateAfter) {
			usable := func(name string) bool {
				a, ok := b.reg.Get(name)
				return ok && a.Available()
			}
			if next, ok := escalate.Next(b.agentName, usable); ok {
				b.sink.Warn("Escalated to %s (%s)", next, b.session.EscalationReason())
				b.agentName = next
			}
		}
	}

	if !succeeded && ctx.Err() == nil {
		b.sink.Warn("Build did not pass verification after %d iteration(s). Review manually.",
			len(b.steps))
	}

	return &BuildResult{
		Steps:        b.steps,
		Succeeded:    succeeded,
		TotalCostUSD: b.totalUSD,
	}, ctx.Err()
}

func (b *Build) runIteration(ctx context.Context, iteration int, objective string) Step {
	start := time.Now()
	prompt := b.buildPrompt(objective)

	step := Step{
		Iteration: iteration,
		Agent:     b.agentName,
		Prompt:    head(prompt, promptKeep),
	}

	iterRef, ckptErr := b.ckpt.Checkpoint(ctx, fmt.Sprintf("iter-%d", iteration))
	if ckptErr != nil {
		b.log.Warn(ctx, "iteration checkpoint failed", zap.Error(ckptErr))
	}

	a, ok := b.reg.Get(b.agentName)
	if !ok {
		step.Output = fmt.Sprintf("Agent %q not found", b.agentName)
		step.Duration = time.Since(start)
		b.sink.Error("%s", step.Output)
		return step
	}

	before := workspace.TakeSnapshot(b.dir)

	task := agent.Task{WorkingDir: b.dir, Prompt: prompt, Timeout: b.timeout}
	run := a.Execute
	if ag, agok := agent.Agentic(a); agok {
		run = ag.ExecuteAgentic
	}
	b.sink.Detail("Agent: %s", b.agentName)
	outcome := run(ctx, task)

	step.Output = outcome.Output
	step.CostUSD = outcome.CostUSD

	if !outcome.Success() {
		b.sink.Warn("Agent failed: %s", head(outcome.Detail, 200))
		b.session.Record(memory.IterationRecord{
			Iteration:     iteration,
			Agent:         b.agentName,
			PromptSummary: prompt,
			OutputSummary: outcome.Output,
			TestsPassed:   false,
			ErrorSummary:  outcome.Detail,
			ErrorCategory: "agent_failure",
			CostUSD:       outcome.CostUSD,
		})
		step.Duration = time.Since(start)
		return step
	}
	b.sink.Detail("Agent responded (%d chars)", len(outcome.Output))

	after := workspace.TakeSnapshot(b.dir)
	created, modified := before.Diff(after)
	step.FilesCreated = created
	step.FilesModified = modified
	b.reportChanges(created, modified)

	b.deps.InstallManifest(ctx)

	// Files from the first iteration often reveal the project type.
	if !b.suite.HasCommands() {
		if detected, ok := b.detectSuite(); ok {
			b.suite = detected
		}
	}

	if b.suite.HasCommands() {
		b.sink.Detail("Running verification...")
		res := b.suiteRunner.RunSuite(ctx, b.suite)
		step.VerifyOutput = res.Output
		step.VerifyPassed = res.Passed

		if res.Passed {
			step.Succeeded = true
			if b.autoCommit {
				if _, err := b.ckpt.CommitAll(ctx, fmt.Sprintf("forge: iteration %d passed", iteration)); err != nil {
					b.log.Warn(ctx, "commit failed", zap.Error(err))
				}
			}
		} else {
			errText := res.ErrorText
			if errText == "" {
				errText = res.Output
			}
			cls := classify.Classify(errText)
			step.Classified = &cls
			b.sink.Warn("Failed: %s (%s)", cls.Category, cls.Severity)
			b.sink.Detail("%s", head(cls.Summary, 120))

			if b.shouldRollback(step) && ckptErr == nil {
				if err := b.ckpt.Rollback(ctx, iterRef); err != nil {
					b.log.Warn(ctx, "rollback failed", zap.Error(err))
				} else {
					step.RolledBack = true
					b.sink.Warn("Rolled back to previous checkpoint")
				}
			}

			b.session.Record(memory.IterationRecord{
				Iteration:     iteration,
				Agent:         b.agentName,
				PromptSummary: prompt,
				OutputSummary: outcome.Output,
				FilesCreated:  created,
				FilesModified: modified,
				TestsPassed:   false,
				ErrorSummary:  errText,
				ErrorCategory: string(cls.Category),
				CostUSD:       outcome.CostUSD,
			})
		}
	} else if len(created)+len(modified) > 0 {
		// No suite to run; file activity is the success signal.
		step.Succeeded = true
		if b.autoCommit {
			if _, err := b.ckpt.CommitAll(ctx, fmt.Sprintf("forge: iteration %d", iteration)); err != nil {
				b.log.Warn(ctx, "commit failed", zap.Error(err))
			}
		}
	} else {
		b.sink.Warn("No files changed")
		b.session.Record(memory.IterationRecord{
			Iteration:     iteration,
			Agent:         b.agentName,
			PromptSummary: prompt,
			OutputSummary: outcome.Output,
			TestsPassed:   false,
			ErrorSummary:  "No files were created or modified.",
			CostUSD:       outcome.CostUSD,
		})
	}

	if step.Succeeded {
		b.session.Record(memory.IterationRecord{
			Iteration:     iteration,
			Agent:         b.agentName,
			PromptSummary: prompt,
			OutputSummary: outcome.Output,
			FilesCreated:  created,
			FilesModified: modified,
			TestsPassed:   true,
			CostUSD:       outcome.CostUSD,
		})
	}

	step.Duration = time.Since(start)
	return step
}

// detectSuite infers a verification suite from the project language.
// Projects with no recognized language report none, leaving file
// activity as the success signal.
func (b *Build) detectSuite() (verify.Suite, bool) {
	files := workspace.ListFiles(b.dir)
	info := workspace.DetectProject(b.dir, files)
	if info.Language == "" || info.Language == "unknown" {
		return verify.Suite{}, false
	}
	suite := verify.Detect(b.dir)
	return suite, suite.HasCommands()
}

// buildPrompt assembles the iteration prompt: objective, workspace
// context, session memory, and the latest classified error with its
// suggested action.
func (b *Build) buildPrompt(objective string) string {
	parts := []string{"OBJECTIVE: " + objective}

	wctx := workspace.Gather(b.dir)
	parts = append(parts, wctx.PromptSection())

	if section := b.session.PromptSection(); section != "" {
		parts = append(parts, section)
	}

	if last := b.lastClassified(); last != nil {
		parts = append(parts, fmt.Sprintf("LAST ERROR (%s): %s\nAction: %s",
			last.Category, head(last.Summary, 300), last.SuggestedAction))
	}

	parts = append(parts,
		"Create or modify files in the working directory to complete this objective. "+
			"Do not just describe what to do -- actually write the code files.")

	return strings.Join(parts, "\n\n")
}

// lastClassified returns the most recent classification from the last
// three steps, nil when none failed recently.
func (b *Build) lastClassified() *classify.Result {
	from := len(b.steps) - 3
	if from < 0 {
		from = 0
	}
	var last *classify.Result
	for _, s := range b.steps[from:] {
		if s.Classified != nil {
			last = s.Classified
		}
	}
	return last
}

// shouldRollback reports whether this iteration regressed a
// previously passing verification.
func (b *Build) shouldRollback(current Step) bool {
	if len(b.steps) == 0 {
		return false
	}
	prev := b.steps[len(b.steps)-1]
	return prev.VerifyPassed && !current.VerifyPassed
}

func (b *Build) reportChanges(created, modified []string) {
	total := len(created) + len(modified)
	if total == 0 {
		return
	}
	b.sink.Detail("Files changed: %d", total)
	shown := 0
	for _, f := range created {
		if shown >= 8 {
			break
		}
		b.sink.Detail("  + %s", f)
		shown++
	}
	for _, f := range modified {
		if shown >= 8 {
			break
		}
		b.sink.Detail("  ~ %s", f)
		shown++
	}
	if total > shown {
		b.sink.Detail("  ... and %d more", total-shown)
	}
}
