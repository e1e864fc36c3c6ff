package agent

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/forge/internal/logging"
)

// Claude drives the Claude Code CLI.
//
// Read-only mode runs `claude --print --output-format json` for Q&A.
// Agentic mode runs `claude -p --output-format json
// --dangerously-skip-permissions`, letting the CLI create, edit, and
// delete files in the working directory on its own.
type Claude struct {
	name      string
	display   string
	command   string
	model     string
	maxBudget float64
	skipPerms bool
	extraArgs []string
	log       *logging.Logger
}

// ClaudeOptions configures a Claude adapter.
type ClaudeOptions struct {
	// Name is the registry key, e.g. "claude-sonnet".
	Name string

	// Command overrides the executable, default "claude".
	Command string

	// Model is passed via --model; empty uses the CLI default.
	Model string

	// MaxBudgetUSD is the default spend cap when the task has none.
	MaxBudgetUSD float64

	// SkipPermissions adds --dangerously-skip-permissions even in
	// read-only mode. Agentic mode always sets it.
	SkipPermissions bool

	// ExtraArgs are appended verbatim before the prompt.
	ExtraArgs []string
}

// NewClaude returns an adapter for the Claude Code CLI.
func NewClaude(opts ClaudeOptions, log *logging.Logger) *Claude {
	name := opts.Name
	if name == "" {
		name = "claude"
	}
	command := opts.Command
	if command == "" {
		command = "claude"
	}
	display := "Claude Code"
	if opts.Model != "" {
		display = "Claude Code (" + opts.Model + ")"
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Claude{
		name:      name,
		display:   display,
		command:   command,
		model:     opts.Model,
		maxBudget: opts.MaxBudgetUSD,
		skipPerms: opts.SkipPermissions,
		extraArgs: opts.ExtraArgs,
		log:       log,
	}
}

func (c *Claude) Name() string        { return c.name }
func (c *Claude) DisplayName() string { return c.display }

func (c *Claude) Available() bool {
	return cliInstalled(c.command)
}

// Execute runs one prompt in read-only print mode.
func (c *Claude) Execute(ctx context.Context, task Task) Outcome {
	return c.run(ctx, task, false)
}

// ExecuteAgentic runs one prompt with full file-write capability.
func (c *Claude) ExecuteAgentic(ctx context.Context, task Task) Outcome {
	return c.run(ctx, task, true)
}

func (c *Claude) argv(task Task, agentic bool) []string {
	var args []string
	if agentic {
		args = []string{c.command, "-p", "--output-format", "json", "--dangerously-skip-permissions"}
	} else {
		args = []string{c.command, "--print", "--output-format", "json"}
	}

	if c.model != "" {
		args = append(args, "--model", c.model)
	}

	budget := task.MaxBudgetUSD
	if budget == 0 {
		budget = c.maxBudget
	}
	if budget > 0 {
		args = append(args, "--max-budget-usd", strconv.FormatFloat(budget, 'f', -1, 64))
	}

	if !agentic && c.skipPerms {
		args = append(args, "--dangerously-skip-permissions")
	}

	if task.SystemPrompt != "" {
		args = append(args, "--system-prompt", task.SystemPrompt)
	}

	args = append(args, c.extraArgs...)
	args = append(args, task.Prompt)
	return args
}

func (c *Claude) run(ctx context.Context, task Task, agentic bool) Outcome {
	if !c.Available() {
		return unavailableOutcome(c.name, c.display)
	}

	limit := task.Deadline()
	c.log.Debug(ctx, "dispatching claude",
		zap.String("agent", c.name),
		zap.Bool("agentic", agentic),
		zap.Int("prompt_chars", len(task.Prompt)),
		zap.Duration("timeout", limit),
	)

	res, err := runCLI(ctx, task.WorkingDir, nil, limit, c.argv(task, agentic)...)
	if err != nil {
		return failedOutcome(c.name, err.Error(), res.elapsed)
	}
	if res.timedOut {
		return timeoutOutcome(c.name, limit, res.elapsed)
	}
	if res.exitCode != 0 {
		return failedOutcome(c.name, exitDetail(res.stderr, res.exitCode), res.elapsed)
	}

	return c.parse(res)
}

// claudeResponse mirrors the CLI's --output-format json envelope.
type claudeResponse struct {
	Result       string                     `json:"result"`
	IsError      bool                       `json:"is_error"`
	DurationMS   int64                      `json:"duration_ms"`
	TotalCostUSD float64                    `json:"total_cost_usd"`
	Usage        claudeUsage                `json:"usage"`
	ModelUsage   map[string]json.RawMessage `json:"modelUsage"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (c *Claude) parse(res execResult) Outcome {
	raw := strings.TrimSpace(stripANSI(res.stdout))

	var data claudeResponse
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		// Not an envelope; treat the whole output as the answer.
		return Outcome{
			Agent:    c.name,
			Output:   raw,
			Status:   StatusSuccess,
			Duration: res.elapsed,
			Model:    c.model,
		}
	}

	text := data.Result
	if text == "" {
		text = raw
	}

	out := Outcome{
		Agent:        c.name,
		Output:       text,
		Status:       StatusSuccess,
		Duration:     res.elapsed,
		CostUSD:      data.TotalCostUSD,
		Model:        firstModel(data.ModelUsage),
		InputTokens:  data.Usage.InputTokens,
		OutputTokens: data.Usage.OutputTokens,
	}
	if data.DurationMS > 0 {
		out.Duration = time.Duration(data.DurationMS) * time.Millisecond
	}
	if data.IsError {
		out.Status = StatusFailed
		out.Detail = text
	}
	return out
}

// firstModel picks a deterministic model name from the usage map.
func firstModel(usage map[string]json.RawMessage) string {
	if len(usage) == 0 {
		return ""
	}
	keys := make([]string, 0, len(usage))
	for k := range usage {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0]
}
