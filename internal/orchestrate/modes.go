package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/forge/internal/agent"
)

// Output windows forwarded between agents, in bytes. Full outputs stay in
// the round log; inter-agent prompts carry only the tail to bound token
// cost.
const (
	chainWindow     = 4000
	reviewWindow    = 4000
	refineWindow    = 2000
	consensusWindow = 2000
)

// chain runs agents sequentially, each refining the previous output. A
// failed step keeps the prior output, so the chain degrades instead of
// derailing.
func (o *Orchestrator) chain(ctx context.Context, req Request, agents []string) Result {
	var (
		rounds  []Round
		current string
		cost    float64
		elapsed time.Duration
	)

	for i, name := range agents {
		prompt := req.Prompt
		role := "initiator"
		if i > 0 {
			prompt = chainPrompt(req.Prompt, agents[i-1], current, i+1, len(agents))
			role = "improver"
		}

		report(req.Progress, name, "running", fmt.Sprintf("Chain step %d/%d", i+1, len(agents)))
		out := o.engine.Dispatch(ctx, name, o.taskFor(req, prompt), nil)
		rounds = append(rounds, Round{Number: i + 1, Agent: name, Role: role, Prompt: prompt, Outcome: out})

		if out.Success() {
			current = out.Output
		}
		cost += out.CostUSD
		elapsed += out.Duration

		state := "done"
		if !out.Success() {
			state = "failed"
		}
		report(req.Progress, name, state, fmt.Sprintf("Chain step %d complete", i+1))
	}

	return Result{
		Mode:          ModeChain,
		Rounds:        rounds,
		FinalOutput:   current,
		TotalCostUSD:  cost,
		TotalDuration: elapsed,
		AgentsUsed:    append([]string(nil), agents...),
	}
}

func chainPrompt(objective, prev, output string, step, total int) string {
	return fmt.Sprintf(
		"You are agent #%d in a chain of %d AI agents working together on a task.\n\n"+
			"ORIGINAL TASK: %s\n\n"+
			"PREVIOUS AGENT (%s) OUTPUT:\n```\n%s\n```\n\n"+
			"Your job: Review the previous agent's work, improve it, fix any issues, "+
			"and add anything that was missed. Produce the final improved version.",
		step, total, objective, strings.ToUpper(prev), tail(output, chainWindow),
	)
}

// review runs produce, critique, refine. With fewer than two agents it
// degrades to single mode. The refiner is a third agent when one was
// requested, otherwise the producer revisits its own work.
func (o *Orchestrator) review(ctx context.Context, req Request, agents []string) Result {
	if len(agents) < 2 {
		return o.single(ctx, req, agents)
	}

	producer, reviewer := agents[0], agents[1]
	var (
		rounds  []Round
		cost    float64
		elapsed time.Duration
	)

	report(req.Progress, producer, "running", "Producing initial work...")
	first := o.engine.Dispatch(ctx, producer, o.taskFor(req, req.Prompt), nil)
	rounds = append(rounds, Round{Number: 1, Agent: producer, Role: "producer", Prompt: req.Prompt, Outcome: first})
	cost += first.CostUSD
	elapsed += first.Duration

	// Nothing to review without an initial version.
	if !first.Success() {
		return Result{
			Mode:          ModeReview,
			Rounds:        rounds,
			FinalOutput:   first.Output,
			TotalCostUSD:  cost,
			TotalDuration: elapsed,
			AgentsUsed:    []string{producer},
		}
	}

	report(req.Progress, reviewer, "running", "Reviewing and improving...")
	critique := reviewCritiquePrompt(req.Prompt, producer, first.Output)
	second := o.engine.Dispatch(ctx, reviewer, o.taskFor(req, critique), nil)
	rounds = append(rounds, Round{Number: 2, Agent: reviewer, Role: "reviewer", Prompt: critique, Outcome: second})
	cost += second.CostUSD
	elapsed += second.Duration

	refiner := producer
	if len(agents) >= 3 {
		refiner = agents[2]
	}

	report(req.Progress, refiner, "running", "Final refinement...")
	refine := reviewRefinePrompt(req.Prompt, producer, reviewer, first.Output, second.Output)
	third := o.engine.Dispatch(ctx, refiner, o.taskFor(req, refine), nil)
	rounds = append(rounds, Round{Number: 3, Agent: refiner, Role: "refiner", Prompt: refine, Outcome: third})
	cost += third.CostUSD
	elapsed += third.Duration

	final := third.Output
	if !third.Success() {
		final = second.Output
	}

	used := appendUnique(appendUnique([]string{producer}, reviewer), refiner)
	return Result{
		Mode:          ModeReview,
		Rounds:        rounds,
		FinalOutput:   final,
		TotalCostUSD:  cost,
		TotalDuration: elapsed,
		AgentsUsed:    used,
	}
}

func reviewCritiquePrompt(objective, producer, output string) string {
	return fmt.Sprintf(
		"You are a senior code reviewer. Another AI agent (%s) produced the following work.\n\n"+
			"ORIGINAL TASK: %s\n\n"+
			"PRODUCED CODE/OUTPUT:\n```\n%s\n```\n\n"+
			"Please:\n"+
			"1. Identify any bugs, issues, or improvements\n"+
			"2. Produce an IMPROVED version that fixes all issues\n"+
			"3. Explain what you changed and why\n\n"+
			"Output the complete improved version.",
		strings.ToUpper(producer), objective, tail(output, reviewWindow),
	)
}

func reviewRefinePrompt(objective, producer, reviewer, firstOut, reviewedOut string) string {
	return fmt.Sprintf(
		"You are doing final refinement. Here is the task and two previous iterations.\n\n"+
			"ORIGINAL TASK: %s\n\n"+
			"FIRST VERSION (%s):\n```\n%s\n```\n\n"+
			"REVIEWED VERSION (%s):\n```\n%s\n```\n\n"+
			"Produce the FINAL, polished version incorporating the best of both. "+
			"Focus on correctness, clean code, and completeness.",
		objective,
		strings.ToUpper(producer), tail(firstOut, refineWindow),
		strings.ToUpper(reviewer), tail(reviewedOut, refineWindow),
	)
}

// consensus fans production out to every agent, then asks a judge to
// synthesize the successful solutions. The first successful producer
// doubles as judge to save cost. With one or zero successes there is
// nothing to judge and the best available output wins outright.
func (o *Orchestrator) consensus(ctx context.Context, req Request, agents []string) Result {
	for _, name := range agents {
		report(req.Progress, name, "running", "Phase 1: Independent production")
	}

	outs := o.engine.DispatchNamed(ctx, agents, o.taskFor(req, req.Prompt), nil)

	var (
		rounds  []Round
		cost    float64
		elapsed time.Duration
	)
	for _, out := range outs {
		rounds = append(rounds, Round{Number: 1, Agent: out.Agent, Role: "producer", Prompt: req.Prompt, Outcome: out})
		cost += out.CostUSD
		elapsed += out.Duration
	}

	var successful []agent.Outcome
	for _, out := range outs {
		if out.Success() {
			successful = append(successful, out)
		}
	}

	if len(successful) <= 1 {
		best := outs[0]
		if len(successful) == 1 {
			best = successful[0]
		}
		return Result{
			Mode:          ModeConsensus,
			Rounds:        rounds,
			FinalOutput:   best.Output,
			TotalCostUSD:  cost,
			TotalDuration: elapsed,
			AgentsUsed:    outcomeAgents(outs),
		}
	}

	judge := successful[0].Agent
	report(req.Progress, judge, "running", "Phase 2: Cross-critique & selection")

	judgePrompt := consensusJudgePrompt(req.Prompt, successful)
	verdict := o.engine.Dispatch(ctx, judge, o.taskFor(req, judgePrompt), nil)
	rounds = append(rounds, Round{Number: 2, Agent: judge, Role: "judge", Prompt: judgePrompt, Outcome: verdict})
	cost += verdict.CostUSD
	elapsed += verdict.Duration

	final := verdict.Output
	if !verdict.Success() {
		final = successful[0].Output
	}

	return Result{
		Mode:          ModeConsensus,
		Rounds:        rounds,
		FinalOutput:   final,
		TotalCostUSD:  cost,
		TotalDuration: elapsed,
		AgentsUsed:    appendUnique(outcomeAgents(outs), judge),
	}
}

func consensusJudgePrompt(objective string, solutions []agent.Outcome) string {
	var b strings.Builder
	for i, out := range solutions {
		fmt.Fprintf(&b, "\n--- SOLUTION %d (by %s) ---\n%s\n",
			i+1, strings.ToUpper(out.Agent), tail(out.Output, consensusWindow))
	}
	return fmt.Sprintf(
		"You are judging multiple AI-generated solutions to a task.\n\n"+
			"ORIGINAL TASK: %s\n\n"+
			"SOLUTIONS:%s\n\n"+
			"Please:\n"+
			"1. Analyze each solution's strengths and weaknesses\n"+
			"2. Pick the best elements from each\n"+
			"3. Produce a FINAL SYNTHESIZED solution that combines the best parts\n\n"+
			"Output only the final synthesized solution.",
		objective, b.String(),
	)
}

// subtask is one planner-assigned unit of work in swarm mode.
type subtask struct {
	Agent string
	Task  string
}

// swarm asks the first agent to decompose the task into routed subtasks,
// runs them with bounded parallelism, and stitches the successful outputs
// together. An unparseable plan degrades to single mode.
func (o *Orchestrator) swarm(ctx context.Context, req Request, agents []string) Result {
	planner := agents[0]
	report(req.Progress, planner, "running", "Phase 1: Planning subtasks")

	planPrompt := swarmPlanPrompt(req.Prompt, agents)
	plan := o.engine.Dispatch(ctx, planner, o.taskFor(req, planPrompt), nil)

	rounds := []Round{{Number: 1, Agent: planner, Role: "planner", Prompt: planPrompt, Outcome: plan}}
	cost := plan.CostUSD
	elapsed := plan.Duration

	subtasks := parseSubtasks(plan.Output, agents)
	if len(subtasks) == 0 {
		o.log.Warn(ctx, "swarm plan produced no parseable subtasks, falling back to single mode",
			zap.String("planner", planner),
		)
		return o.single(ctx, req, agents)
	}

	for _, st := range subtasks {
		report(req.Progress, st.Agent, "queued", fmt.Sprintf("Subtask: %s...", head(st.Task, 50)))
	}

	results := make([]agent.Outcome, len(subtasks))
	g := new(errgroup.Group)
	g.SetLimit(o.engine.MaxParallel())
	for i, st := range subtasks {
		g.Go(func() error {
			report(req.Progress, st.Agent, "running", fmt.Sprintf("Subtask %d", i+1))
			results[i] = o.engine.Dispatch(ctx, st.Agent, o.taskFor(req, st.Task), nil)
			return nil
		})
	}
	_ = g.Wait()

	var parts []string
	used := make([]string, 0, len(subtasks))
	for i, st := range subtasks {
		out := results[i]
		rounds = append(rounds, Round{Number: 2, Agent: st.Agent, Role: "worker", Prompt: st.Task, Outcome: out})
		cost += out.CostUSD
		elapsed += out.Duration

		used = appendUnique(used, st.Agent)
		if out.Success() {
			parts = append(parts, fmt.Sprintf("=== Subtask: %s (%s) ===\n%s",
				head(st.Task, 80), strings.ToUpper(st.Agent), out.Output))
		}
	}

	return Result{
		Mode:          ModeSwarm,
		Rounds:        rounds,
		FinalOutput:   strings.Join(parts, "\n\n"),
		TotalCostUSD:  cost,
		TotalDuration: elapsed,
		AgentsUsed:    used,
	}
}

func swarmPlanPrompt(objective string, agents []string) string {
	upper := make([]string, len(agents))
	for i, a := range agents {
		upper[i] = strings.ToUpper(a)
	}
	return fmt.Sprintf(
		"Break this task into subtasks. Each subtask should be independent.\n"+
			"Available agents: %s\n\n"+
			"Agent strengths:\n"+
			"- CLAUDE: Best at code generation, debugging, architecture, complex logic\n"+
			"- GEMINI: Best at explanation, documentation, web search, code review\n"+
			"- COPILOT: Best at shell commands, git operations, quick scripts\n\n"+
			"TASK: %s\n\n"+
			"Output a JSON array of subtasks, each with 'agent' and 'task' fields:\n"+
			`[{"agent": "claude", "task": "..."}, {"agent": "gemini", "task": "..."}]`+"\n\n"+
			"Output ONLY the JSON array, no other text.",
		strings.Join(upper, ", "), objective,
	)
}

// Planner output may wrap the array in prose; grab everything between the
// first [ and the last ].
var subtaskArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// parseSubtasks extracts the planner's JSON subtask array. Elements must
// be objects carrying both "agent" and "task"; an unknown agent name is
// reassigned to the first requested agent rather than dropped.
func parseSubtasks(output string, agents []string) []subtask {
	match := subtaskArrayPattern.FindString(output)
	if match == "" {
		return nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(match), &elems); err != nil {
		return nil
	}

	var tasks []subtask
	for _, elem := range elems {
		var st struct {
			Agent *string `json:"agent"`
			Task  *string `json:"task"`
		}
		if err := json.Unmarshal(elem, &st); err != nil || st.Agent == nil || st.Task == nil {
			continue
		}
		assigned := strings.ToLower(*st.Agent)
		if !containsString(agents, assigned) {
			assigned = agents[0]
		}
		tasks = append(tasks, subtask{Agent: assigned, Task: *st.Task})
	}
	return tasks
}
