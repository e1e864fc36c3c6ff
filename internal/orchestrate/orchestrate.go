// Package orchestrate implements multi-agent collaboration patterns on
// top of the dispatch engine: chain (output feeds forward), review
// (produce, critique, refine), consensus (parallel production plus judge
// synthesis), and swarm (a planner decomposes the task into routed
// subtasks), alongside the plain single and parallel dispatches.
//
// Every pattern returns a Result carrying the full round log; prompts
// forwarded between agents carry only a bounded tail of the previous
// output to keep token cost in check.
package orchestrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/forge/internal/agent"
	"github.com/fyrsmithlabs/forge/internal/engine"
	"github.com/fyrsmithlabs/forge/internal/logging"
)

// Mode selects how agents collaborate on one prompt.
type Mode string

const (
	// ModeSingle runs one agent, one shot.
	ModeSingle Mode = "single"
	// ModeParallel runs every agent on the same prompt and keeps the best.
	ModeParallel Mode = "parallel"
	// ModeChain feeds each agent's output into the next.
	ModeChain Mode = "chain"
	// ModeReview has one agent produce, a second critique, a third refine.
	ModeReview Mode = "review"
	// ModeConsensus has all agents produce, then a judge synthesize.
	ModeConsensus Mode = "consensus"
	// ModeSwarm decomposes the task into subtasks routed by agent strength.
	ModeSwarm Mode = "swarm"
)

// Modes lists every orchestration mode in display order.
func Modes() []Mode {
	return []Mode{ModeSingle, ModeParallel, ModeChain, ModeReview, ModeConsensus, ModeSwarm}
}

// ParseMode maps a flag value onto a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown orchestration mode %q (valid: single, parallel, chain, review, consensus, swarm)", s)
}

// MultiAgent reports whether the mode needs at least two agents to be
// useful. Callers typically downgrade to ModeSingle otherwise.
func (m Mode) MultiAgent() bool {
	switch m {
	case ModeChain, ModeReview, ModeConsensus, ModeSwarm:
		return true
	}
	return false
}

// ProgressFunc observes orchestration progress. state is one of "queued",
// "running", "done", or "failed"; detail is a short human-readable note.
// Parallel phases may call it from multiple goroutines.
type ProgressFunc func(agent, state, detail string)

// Round records one agent invocation inside a session.
type Round struct {
	// Number groups rounds by phase: parallel production rounds share a
	// number, sequential steps increment it.
	Number int

	// Agent is the dispatched agent's name.
	Agent string

	// Role is the agent's part in the pattern: "producer", "initiator",
	// "improver", "reviewer", "refiner", "judge", "planner", or "worker".
	Role string

	// Prompt is the full prompt the agent received.
	Prompt string

	// Outcome is the dispatch result.
	Outcome agent.Outcome
}

// Result is the aggregate of one orchestration session.
type Result struct {
	Mode          Mode
	Rounds        []Round
	FinalOutput   string
	TotalCostUSD  float64
	TotalDuration time.Duration
	AgentsUsed    []string
}

// Request describes one orchestration session.
type Request struct {
	Mode   Mode
	Prompt string

	// SystemPrompt is prepended context for every dispatch; optional.
	SystemPrompt string

	// WorkingDir is the directory agents operate in.
	WorkingDir string

	// Agents are the participants; roles are positional (the first agent
	// produces or plans). Empty means every available agent, sorted.
	Agents []string

	// Timeout bounds each individual dispatch. Zero uses the agent
	// package default.
	Timeout time.Duration

	// MaxBudgetUSD caps spend per dispatch where the backend honors it.
	MaxBudgetUSD float64

	// Progress observes per-agent transitions; may be nil.
	Progress ProgressFunc
}

// Orchestrator runs collaboration sessions over the dispatch engine.
type Orchestrator struct {
	engine *engine.Engine
	log    *logging.Logger
}

// New returns an orchestrator over eng.
func New(eng *engine.Engine, log *logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.NewNop()
	}
	return &Orchestrator{engine: eng, log: log}
}

// Run executes one session. With no agents requested and none available,
// the result says so in its final output; an unknown mode is the only
// error path.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	agents := req.Agents
	if len(agents) == 0 {
		agents = o.engine.AvailableNames()
	}
	if len(agents) == 0 {
		return Result{Mode: req.Mode, FinalOutput: "No agents available."}, nil
	}

	o.log.Info(ctx, "orchestration session starting",
		zap.String("mode", string(req.Mode)),
		zap.Strings("agents", agents),
	)

	switch req.Mode {
	case ModeSingle:
		return o.single(ctx, req, agents), nil
	case ModeParallel:
		return o.parallel(ctx, req, agents), nil
	case ModeChain:
		return o.chain(ctx, req, agents), nil
	case ModeReview:
		return o.review(ctx, req, agents), nil
	case ModeConsensus:
		return o.consensus(ctx, req, agents), nil
	case ModeSwarm:
		return o.swarm(ctx, req, agents), nil
	}
	return Result{}, fmt.Errorf("unknown orchestration mode %q", req.Mode)
}

// single runs the first agent once. Review and swarm fall back here, so
// the result keeps ModeSingle regardless of what was requested.
func (o *Orchestrator) single(ctx context.Context, req Request, agents []string) Result {
	name := agents[0]
	report(req.Progress, name, "running", "Executing task...")

	out := o.engine.Dispatch(ctx, name, o.taskFor(req, req.Prompt), nil)

	return Result{
		Mode:          ModeSingle,
		Rounds:        []Round{{Number: 1, Agent: name, Role: "producer", Prompt: req.Prompt, Outcome: out}},
		FinalOutput:   out.Output,
		TotalCostUSD:  out.CostUSD,
		TotalDuration: out.Duration,
		AgentsUsed:    []string{name},
	}
}

// parallel fans the same prompt out to every requested agent and keeps
// the best-scoring output as the final one.
func (o *Orchestrator) parallel(ctx context.Context, req Request, agents []string) Result {
	for _, name := range agents {
		report(req.Progress, name, "queued", "Waiting to start...")
	}

	outs := o.engine.DispatchNamed(ctx, agents, o.taskFor(req, req.Prompt), nil)
	agg := Aggregate(outs)

	rounds := make([]Round, len(outs))
	for i, out := range outs {
		rounds[i] = Round{Number: 1, Agent: out.Agent, Role: "producer", Prompt: req.Prompt, Outcome: out}
	}

	var final string
	if best := agg.Best(); best != nil {
		final = best.Output
	}
	return Result{
		Mode:          ModeParallel,
		Rounds:        rounds,
		FinalOutput:   final,
		TotalCostUSD:  agg.TotalCostUSD(),
		TotalDuration: agg.TotalDuration(),
		AgentsUsed:    outcomeAgents(outs),
	}
}

func (o *Orchestrator) taskFor(req Request, prompt string) agent.Task {
	return agent.Task{
		WorkingDir:   req.WorkingDir,
		Prompt:       prompt,
		SystemPrompt: req.SystemPrompt,
		Timeout:      req.Timeout,
		MaxBudgetUSD: req.MaxBudgetUSD,
	}
}

func report(fn ProgressFunc, agentName, state, detail string) {
	if fn != nil {
		fn(agentName, state, detail)
	}
}

func outcomeAgents(outs []agent.Outcome) []string {
	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.Agent
	}
	return names
}

// appendUnique adds name if absent, preserving first-appearance order.
func appendUnique(names []string, name string) []string {
	for _, n := range names {
		if n == name {
			return names
		}
	}
	return append(names, name)
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// tail returns at most the last n bytes of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// head returns at most the first n bytes of s.
func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
