// Package engine fans tasks out across the configured agent registry.
//
// The build pipeline drives one agent at a time and talks to the registry
// directly; engine exists for the multi-agent paths (orchestration modes,
// ask-everyone dispatch, the agent doctor). Parallel fan-out is bounded by
// the configured max_parallel limit, and a broken backend is an Outcome,
// never an error.
package engine

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/forge/internal/agent"
	"github.com/fyrsmithlabs/forge/internal/logging"
)

// Progress states reported to dispatch observers.
const (
	StateRunning = "running"
	StateSuccess = "success"
	StateFailed  = "failed"
)

// ProgressFunc observes per-agent dispatch transitions. Fan-out paths call
// it from multiple goroutines, so implementations must be safe for
// concurrent use.
type ProgressFunc func(agent, state string)

// Engine dispatches tasks to registered agents, singly or fanned out.
type Engine struct {
	reg         *agent.Registry
	maxParallel int
	log         *logging.Logger
}

// New returns an engine over reg. maxParallel bounds concurrent dispatches
// in the fan-out paths; values below one are raised to one.
func New(reg *agent.Registry, maxParallel int, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.NewNop()
	}
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Engine{reg: reg, maxParallel: maxParallel, log: log}
}

// Registry returns the backing adapter registry.
func (e *Engine) Registry() *agent.Registry { return e.reg }

// MaxParallel is the concurrency bound applied to fan-out. Collaborators
// running their own heterogeneous fan-outs apply the same limit.
func (e *Engine) MaxParallel() int { return e.maxParallel }

// Available reports name to availability for every registered agent.
func (e *Engine) Available() map[string]bool { return e.reg.Availability() }

// AvailableNames returns the currently-available agents in sorted order.
func (e *Engine) AvailableNames() []string {
	var names []string
	for name, ok := range e.reg.Availability() {
		if ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Dispatch runs one task on one named agent. An unregistered name yields
// an unavailable outcome; progress fires only for registered agents.
func (e *Engine) Dispatch(ctx context.Context, name string, task agent.Task, progress ProgressFunc) agent.Outcome {
	adapter, ok := e.reg.Get(name)
	if !ok {
		return agent.Outcome{
			Agent:  name,
			Status: agent.StatusUnavailable,
			Detail: fmt.Sprintf("Agent %q is not configured", name),
		}
	}

	if progress != nil {
		progress(name, StateRunning)
	}
	out := adapter.Execute(ctx, task)
	if progress != nil {
		progress(name, stateFor(out))
	}

	e.log.Debug(ctx, "agent dispatch finished",
		zap.String("agent", name),
		zap.String("status", string(out.Status)),
		zap.Duration("duration", out.Duration),
	)
	return out
}

// DispatchAll fans the task out to every available agent. With none
// available it returns a single failed outcome saying so, so callers can
// always render a result list.
func (e *Engine) DispatchAll(ctx context.Context, task agent.Task, progress ProgressFunc) []agent.Outcome {
	names := e.AvailableNames()
	if len(names) == 0 {
		return []agent.Outcome{{
			Agent:  "forge",
			Status: agent.StatusFailed,
			Detail: "No agents are available. Check installation and configuration.",
		}}
	}
	return e.fanOut(ctx, names, task, progress)
}

// DispatchNamed runs the task on each named agent concurrently. Unknown
// names produce unavailable outcomes in place, preserving order.
func (e *Engine) DispatchNamed(ctx context.Context, names []string, task agent.Task, progress ProgressFunc) []agent.Outcome {
	return e.fanOut(ctx, names, task, progress)
}

// fanOut dispatches with at most maxParallel in flight. Each outcome lands
// at the index of its name, so results line up with the request order.
func (e *Engine) fanOut(ctx context.Context, names []string, task agent.Task, progress ProgressFunc) []agent.Outcome {
	outcomes := make([]agent.Outcome, len(names))
	g := new(errgroup.Group)
	g.SetLimit(e.maxParallel)
	for i, name := range names {
		g.Go(func() error {
			outcomes[i] = e.Dispatch(ctx, name, task, progress)
			return nil
		})
	}
	// Dispatch reports failures as outcomes, never as errors.
	_ = g.Wait()
	return outcomes
}

func stateFor(out agent.Outcome) string {
	if out.Success() {
		return StateSuccess
	}
	return StateFailed
}
