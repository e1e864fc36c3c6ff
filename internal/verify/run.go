package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/forge/internal/logging"
	"github.com/fyrsmithlabs/forge/internal/validate"
)

const (
	defaultSyntaxTimeout  = 30 * time.Second
	defaultCommandTimeout = 60 * time.Second

	// captureMax caps each command's captured output.
	captureMax = 1 << 20

	// errorOutputMax bounds per-command output in the error blob so
	// verification failures cannot blow up downstream prompts.
	errorOutputMax   = 2000
	failExcerptMax   = 500
	passExcerptMax   = 200
	syntaxExcerptMax = 300
)

// Result is the outcome of one verification pass.
type Result struct {
	// Passed is true iff every executed command exited zero and the
	// structural gate (when applied) found nothing critical.
	Passed bool

	// Output is the human-readable transcript recorded with the round.
	Output string

	// ErrorText concatenates one blob per failed check: the command
	// line, exit code, and bounded output. Empty when Passed.
	ErrorText string

	// Commands is the number of commands executed. Zero means no suite
	// could be inferred, a weak success the orchestrator treats as
	// "fall back to file-activity signals".
	Commands int

	// Validation is the structural gate outcome folded into ErrorText
	// by Run. Zero value when only RunSuite was used.
	Validation validate.Result
}

// Runner executes verification suites against one working directory.
type Runner struct {
	dir string
	log *logging.Logger

	syntaxTimeout  time.Duration
	commandTimeout time.Duration
}

// NewRunner returns a Runner for dir. A nil logger disables logging.
func NewRunner(dir string, log *logging.Logger) *Runner {
	if log == nil {
		log = logging.NewNop()
	}
	return &Runner{
		dir:            dir,
		log:            log,
		syntaxTimeout:  defaultSyntaxTimeout,
		commandTimeout: defaultCommandTimeout,
	}
}

// Run detects the project's suite, executes it, and folds the structural
// validation gate into the result: critical findings become error blob
// entries so the reviewer sees runtime and structural gaps together.
func (r *Runner) Run(ctx context.Context) Result {
	errs, parts, n := r.execute(ctx, Detect(r.dir))

	v := validate.Check(r.dir)
	if !v.Passed() {
		parts = append(parts, "\n"+v.PromptSection())
		for _, f := range v.Findings {
			if f.Severity != validate.SeverityCritical {
				continue
			}
			msg := "VALIDATION: " + f.Message
			if f.File != "" {
				msg += " (" + f.File + ")"
			}
			errs = append(errs, msg)
		}
	}

	res := assemble(errs, parts, n)
	res.Validation = v
	return res
}

// RunSuite executes the given suite without detection or the structural
// gate. Used when the caller supplies explicit verification commands.
func (r *Runner) RunSuite(ctx context.Context, suite Suite) Result {
	return assemble(r.execute(ctx, suite))
}

func (r *Runner) execute(ctx context.Context, suite Suite) (errs, parts []string, commands int) {
	if !suite.HasCommands() {
		return nil, []string{"No verification commands detected for this project type."}, 0
	}

	if suite.SyntaxCheck != "" {
		commands++
		sr := r.shell(ctx, suite.SyntaxCheck, r.syntaxTimeout)
		switch {
		case sr.timedOut:
			parts = append(parts, fmt.Sprintf("TIMEOUT SYNTAX (after %s)", r.syntaxTimeout))
			r.log.Warn(ctx, "syntax check timed out", zap.String("command", suite.SyntaxCheck))
		case sr.err != nil:
			parts = append(parts, fmt.Sprintf("FAIL SYNTAX (%v)", sr.err))
			r.log.Warn(ctx, "syntax check could not run", zap.Error(sr.err))
		case sr.exitCode != 0:
			errs = append(errs, "SYNTAX CHECK:\n"+clip(sr.combined, errorOutputMax))
			parts = append(parts, "FAIL SYNTAX: "+clip(sr.combined, syntaxExcerptMax))
		default:
			parts = append(parts, "ok SYNTAX")
		}
	}

	categories := []struct {
		name string
		cmds []string
	}{
		{"BUILD", suite.BuildCommands},
		{"LINT", suite.LintCommands},
		{"TESTS", suite.TestCommands},
	}

	for _, cat := range categories {
		for _, cmd := range cat.cmds {
			commands++
			sr := r.shell(ctx, cmd, r.commandTimeout)
			switch {
			case sr.timedOut:
				errs = append(errs, fmt.Sprintf("%s:\n$ %s\nTIMEOUT after %s", cat.name, cmd, r.commandTimeout))
				parts = append(parts, fmt.Sprintf("TIMEOUT %s: %s", cat.name, cmd))
			case sr.err != nil:
				errs = append(errs, fmt.Sprintf("%s:\n$ %s\nOS ERROR: %v", cat.name, cmd, sr.err))
				parts = append(parts, fmt.Sprintf("FAIL %s: %s (%v)", cat.name, cmd, sr.err))
			case sr.exitCode != 0:
				errs = append(errs, fmt.Sprintf("%s:\n$ %s\nExit code: %d\n%s",
					cat.name, cmd, sr.exitCode, clip(sr.combined, errorOutputMax)))
				parts = append(parts, fmt.Sprintf("FAIL %s: %s\n%s", cat.name, cmd, clip(sr.combined, failExcerptMax)))
			default:
				parts = append(parts, fmt.Sprintf("ok %s: %s", cat.name, cmd))
				if sr.combined != "" {
					parts = append(parts, "   "+clip(sr.combined, passExcerptMax))
				}
			}
		}
	}

	return errs, parts, commands
}

// assemble prepends the verdict header and joins the collected pieces.
func assemble(errs, parts []string, commands int) Result {
	header := "All checks passed"
	if len(errs) > 0 {
		header = fmt.Sprintf("%d check(s) failed", len(errs))
	}
	return Result{
		Passed:    len(errs) == 0,
		Output:    strings.Join(append([]string{header}, parts...), "\n"),
		ErrorText: strings.Join(errs, "\n\n"),
		Commands:  commands,
	}
}

type shellResult struct {
	combined string
	exitCode int
	timedOut bool
	err      error
}

// shell runs one command line through sh -c in the working directory,
// returning trimmed stdout+stderr. The process is killed at timeout.
func (r *Runner) shell(ctx context.Context, command string, timeout time.Duration) shellResult {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "sh", "-c", command)
	cmd.Dir = r.dir
	cmd.WaitDelay = 5 * time.Second

	stdout := &cappedBuffer{limit: captureMax}
	stderr := &cappedBuffer{limit: captureMax}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	runErr := cmd.Run()

	res := shellResult{
		combined: strings.TrimSpace(strings.TrimSpace(stdout.String()) + "\n" + strings.TrimSpace(stderr.String())),
	}

	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		res.timedOut = true
		res.exitCode = -1
		return res
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.exitCode = exitErr.ExitCode()
			return res
		}
		res.exitCode = -1
		res.err = runErr
	}
	return res
}

// cappedBuffer discards writes past limit so runaway command output
// cannot exhaust memory.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if remaining := b.limit - b.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			p = p[:remaining]
		}
		b.buf.Write(p)
	}
	return n, nil
}

func (b *cappedBuffer) String() string { return b.buf.String() }

func clip(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
