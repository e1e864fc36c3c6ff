package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/forge/internal/agent"
	"github.com/fyrsmithlabs/forge/internal/extract"
	"github.com/fyrsmithlabs/forge/internal/workspace"
)

// executeWithRetry runs one task and retries once after a short pause
// when the first attempt fails. Transient CLI hiccups (rate limits,
// flaky subprocess exits) resolve on the second try often enough to be
// worth the three seconds.
func (d *Duo) executeWithRetry(ctx context.Context, a agent.Adapter, task agent.Task, agentic bool) agent.Outcome {
	run := a.Execute
	if ag, ok := agent.Agentic(a); ok && agentic {
		run = ag.ExecuteAgentic
	}

	outcome := run(ctx, task)
	if outcome.Success() || ctx.Err() != nil {
		return outcome
	}

	d.sink.Warn("%s failed, retrying in %s...", strings.ToUpper(a.Name()), retryDelay)
	select {
	case <-ctx.Done():
		return outcome
	case <-time.After(retryDelay):
	}
	return run(ctx, task)
}

// dispatch sends a read-only prompt to the named agent and wraps the
// outcome as a Round. Planner and reviewer phases go this way: the
// agent answers with text and must not touch the workspace.
func (d *Duo) dispatch(ctx context.Context, name, prompt string, phase Phase) Round {
	a, ok := d.reg.Get(name)
	if !ok {
		return Round{
			Phase:   phase,
			Agent:   name,
			Prompt:  head(prompt, promptKeep),
			Output:  fmt.Sprintf("Agent %q not found", name),
			Success: false,
		}
	}

	outcome := d.executeWithRetry(ctx, a, agent.Task{
		WorkingDir: d.dir,
		Prompt:     prompt,
		Timeout:    d.timeout,
	}, false)

	return d.roundFrom(outcome, phase, name, prompt)
}

// dispatchAgentic sends a file-writing prompt to the named agent,
// measures what changed on disk, falls back to extracting file blocks
// from the output when the agent wrote nothing itself, and snapshots
// the result as a checkpoint.
func (d *Duo) dispatchAgentic(ctx context.Context, name, prompt string, phase Phase) Round {
	a, ok := d.reg.Get(name)
	if !ok {
		return Round{
			Phase:   phase,
			Agent:   name,
			Prompt:  head(prompt, promptKeep),
			Output:  fmt.Sprintf("Agent %q not found", name),
			Success: false,
		}
	}

	before := workspace.TakeSnapshot(d.dir)

	var touched []string
	watcher, err := workspace.NewWatcher(d.dir)
	if err == nil {
		if err := watcher.Start(); err != nil {
			watcher = nil
		}
	} else {
		watcher = nil
	}

	outcome := d.executeWithRetry(ctx, a, agent.Task{
		WorkingDir: d.dir,
		Prompt:     prompt,
		Timeout:    d.timeout,
	}, true)

	if watcher != nil {
		watcher.Stop()
		touched = watcher.Touched()
	}

	after := workspace.TakeSnapshot(d.dir)
	created, modified := before.Diff(after)
	created, modified = before.Merge(created, modified, touched, d.dir)

	// Read-only backends describe files instead of writing them; pull
	// any ```file blocks out of the transcript in that case.
	if outcome.Success() && len(created) == 0 && outcome.Output != "" {
		written, err := extract.Apply(d.dir, outcome.Output)
		if err != nil {
			d.log.Warn(ctx, "extract fallback failed", zap.Error(err))
		}
		if len(written) > 0 {
			d.sink.Detail("Extracted %d file(s) from output", len(written))
			outcome.Output = fmt.Sprintf("Extracted %d file(s): %s\n\n%s",
				len(written), strings.Join(written, ", "), outcome.Output)
			created = append(created, written...)
		}
	}

	label := fmt.Sprintf("%s-%d", strings.ToLower(string(phase)), len(d.rounds)+1)
	if ref, err := d.ckpt.Checkpoint(ctx, label); err != nil {
		d.log.Warn(ctx, "checkpoint failed", zap.String("label", label), zap.Error(err))
	} else {
		r := ref
		d.prevRef, d.lastRef = d.lastRef, &r
	}

	round := d.roundFrom(outcome, phase, name, prompt)
	round.FilesCreated = created
	round.FilesModified = modified
	return round
}

func (d *Duo) roundFrom(outcome agent.Outcome, phase Phase, name, prompt string) Round {
	output := outcome.Output
	if !outcome.Success() && outcome.Detail != "" {
		if output != "" {
			output += "\n"
		}
		output += outcome.Detail
	}
	return Round{
		Phase:    phase,
		Agent:    name,
		Prompt:   head(prompt, promptKeep),
		Output:   output,
		Success:  outcome.Success(),
		Duration: outcome.Duration,
		CostUSD:  outcome.CostUSD,
	}
}
