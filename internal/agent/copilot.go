package agent

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/forge/internal/logging"
)

// copilotHelpTimeout bounds the `gh copilot --help` availability probe.
const copilotHelpTimeout = 5 * time.Second

// explainKeywords route a prompt to `gh copilot explain` instead of
// `gh copilot suggest`.
var explainKeywords = []string{
	"explain", "what does", "how does", "why does",
	"what is", "describe", "understand", "meaning",
}

// Copilot drives GitHub Copilot through the gh CLI extension. Suggest
// mode generates shell commands; explain mode answers questions about
// existing code or commands.
type Copilot struct {
	name      string
	command   string
	extraArgs []string
	log       *logging.Logger
}

// CopilotOptions configures a Copilot adapter.
type CopilotOptions struct {
	Name      string
	Command   string
	ExtraArgs []string
}

// NewCopilot returns an adapter for the gh copilot extension.
func NewCopilot(opts CopilotOptions, log *logging.Logger) *Copilot {
	name := opts.Name
	if name == "" {
		name = "copilot"
	}
	command := opts.Command
	if command == "" {
		command = "gh"
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Copilot{name: name, command: command, extraArgs: opts.ExtraArgs, log: log}
}

func (c *Copilot) Name() string        { return c.name }
func (c *Copilot) DisplayName() string { return "GitHub Copilot" }

// Available requires gh on PATH with the copilot extension installed.
func (c *Copilot) Available() bool {
	if !cliInstalled(c.command) {
		return false
	}
	res, err := runCLI(context.Background(), "", nil, copilotHelpTimeout, c.command, "copilot", "--help")
	return err == nil && !res.timedOut && res.exitCode == 0
}

// mode picks explain or suggest from the prompt wording.
func (c *Copilot) mode(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, kw := range explainKeywords {
		if strings.Contains(lower, kw) {
			return "explain"
		}
	}
	return "suggest"
}

func (c *Copilot) argv(task Task, mode string) []string {
	args := []string{c.command, "copilot"}
	if mode == "explain" {
		args = append(args, "explain")
	} else {
		args = append(args, "suggest", "-t", "shell")
	}
	args = append(args, c.extraArgs...)
	args = append(args, task.Prompt)
	return args
}

// Execute runs one prompt through suggest or explain.
func (c *Copilot) Execute(ctx context.Context, task Task) Outcome {
	if !c.Available() {
		return unavailableOutcome(c.name, c.DisplayName())
	}

	limit := task.Deadline()
	mode := c.mode(task.Prompt)
	c.log.Debug(ctx, "dispatching copilot",
		zap.String("agent", c.name),
		zap.String("mode", mode),
		zap.Duration("timeout", limit),
	)

	env := []string{"GH_PROMPT_DISABLED=1", "NO_COLOR=1"}
	res, err := runCLI(ctx, task.WorkingDir, env, limit, c.argv(task, mode)...)
	if err != nil {
		return failedOutcome(c.name, err.Error(), res.elapsed)
	}
	if res.timedOut {
		return timeoutOutcome(c.name, limit, res.elapsed)
	}
	if res.exitCode != 0 {
		return failedOutcome(c.name, exitDetail(stripANSI(res.stderr), res.exitCode), res.elapsed)
	}

	return Outcome{
		Agent:    c.name,
		Output:   strings.TrimSpace(stripANSI(res.stdout)),
		Status:   StatusSuccess,
		Duration: res.elapsed,
		Model:    "copilot",
	}
}
