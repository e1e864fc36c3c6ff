package agent

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/forge/internal/logging"
)

// Gemini drives the Gemini CLI (@google/gemini-cli) in headless mode via
// the -p flag. The CLI has no native file-write contract forge can rely
// on, so it stays read-only; the engine turns its answers into files.
//
// With a fallback delegate set, prompts are routed to the Gemini API
// when the CLI is not installed.
type Gemini struct {
	name      string
	display   string
	command   string
	model     string
	extraArgs []string
	fallback  Adapter
	log       *logging.Logger
}

// GeminiOptions configures a Gemini CLI adapter.
type GeminiOptions struct {
	Name      string
	Command   string
	Model     string
	ExtraArgs []string
}

// NewGemini returns an adapter for the Gemini CLI.
func NewGemini(opts GeminiOptions, log *logging.Logger) *Gemini {
	name := opts.Name
	if name == "" {
		name = "gemini"
	}
	command := opts.Command
	if command == "" {
		command = "gemini"
	}
	display := "Gemini"
	if opts.Model != "" {
		display = "Gemini (" + opts.Model + ")"
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Gemini{
		name:      name,
		display:   display,
		command:   command,
		model:     opts.Model,
		extraArgs: opts.ExtraArgs,
		log:       log,
	}
}

// WithFallback sets an API-backed delegate used when the CLI is absent.
func (g *Gemini) WithFallback(delegate Adapter) *Gemini {
	g.fallback = delegate
	return g
}

func (g *Gemini) Name() string        { return g.name }
func (g *Gemini) DisplayName() string { return g.display }

func (g *Gemini) cliInstalled() bool {
	return cliInstalled(g.command)
}

func (g *Gemini) Available() bool {
	if g.cliInstalled() {
		return true
	}
	return g.fallback != nil && g.fallback.Available()
}

func (g *Gemini) argv(task Task) []string {
	args := []string{g.command}
	if g.model != "" {
		args = append(args, "-m", g.model)
	}
	args = append(args, g.extraArgs...)
	args = append(args, "-p", task.Prompt)
	return args
}

// Execute runs one prompt headless and returns the cleaned text answer.
func (g *Gemini) Execute(ctx context.Context, task Task) Outcome {
	if !g.cliInstalled() {
		if g.fallback != nil && g.fallback.Available() {
			g.log.Debug(ctx, "gemini CLI missing, using API fallback",
				zap.String("agent", g.name))
			out := g.fallback.Execute(ctx, task)
			out.Agent = g.name
			return out
		}
		return unavailableOutcome(g.name, g.display)
	}

	limit := task.Deadline()
	g.log.Debug(ctx, "dispatching gemini",
		zap.String("agent", g.name),
		zap.Int("prompt_chars", len(task.Prompt)),
		zap.Duration("timeout", limit),
	)

	// TERM=dumb and NO_COLOR keep the CLI from emitting spinner frames.
	env := []string{"TERM=dumb", "NO_COLOR=1"}
	res, err := runCLI(ctx, task.WorkingDir, env, limit, g.argv(task)...)
	if err != nil {
		return failedOutcome(g.name, err.Error(), res.elapsed)
	}
	if res.timedOut {
		return timeoutOutcome(g.name, limit, res.elapsed)
	}
	if res.exitCode != 0 {
		return failedOutcome(g.name, exitDetail(stripANSI(res.stderr), res.exitCode), res.elapsed)
	}

	clean := strings.TrimSpace(stripANSI(res.stdout))

	// Some CLI modes emit a structured envelope.
	var data struct {
		Response string `json:"response"`
		Text     string `json:"text"`
		Model    string `json:"model"`
	}
	if err := json.Unmarshal([]byte(clean), &data); err == nil {
		text := data.Response
		if text == "" {
			text = data.Text
		}
		if text != "" {
			model := data.Model
			if model == "" {
				model = g.model
			}
			return Outcome{
				Agent:    g.name,
				Output:   text,
				Status:   StatusSuccess,
				Duration: res.elapsed,
				Model:    model,
			}
		}
	}

	model := g.model
	if model == "" {
		model = "gemini"
	}
	return Outcome{
		Agent:    g.name,
		Output:   clean,
		Status:   StatusSuccess,
		Duration: res.elapsed,
		Model:    model,
	}
}
