package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// maxCaptureBytes caps each captured stream. Agents can be extremely
// chatty; anything past the cap is discarded, not buffered.
const maxCaptureBytes = 4 << 20

// lookPath is swapped in tests to fake CLI availability.
var lookPath = exec.LookPath

func cliInstalled(name string) bool {
	_, err := lookPath(name)
	return err == nil
}

// execResult captures one finished subprocess.
type execResult struct {
	stdout   string
	stderr   string
	exitCode int
	timedOut bool
	elapsed  time.Duration
}

// runCLI executes argv in dir with the given timeout. extraEnv entries
// are appended to the inherited environment. The process is killed when
// the timeout or ctx expires; runCLI itself never hangs.
func runCLI(ctx context.Context, dir string, extraEnv []string, timeout time.Duration, argv ...string) (execResult, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}
	// Unblocks Wait when a grandchild inherits our pipes past the kill.
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdout, limit: maxCaptureBytes}
	cmd.Stderr = &limitedWriter{w: &stderr, limit: maxCaptureBytes}

	start := time.Now()
	runErr := cmd.Run()
	res := execResult{
		stdout:  stdout.String(),
		stderr:  stderr.String(),
		elapsed: time.Since(start),
	}

	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		res.timedOut = true
		res.exitCode = -1
		return res, nil
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.exitCode = exitErr.ExitCode()
			return res, nil
		}
		res.exitCode = -1
		return res, runErr
	}

	return res, nil
}

// limitedWriter drops writes past limit so runaway agent output cannot
// exhaust memory. It reports the full length to keep io.Copy happy.
type limitedWriter struct {
	w       io.Writer
	limit   int
	written int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.written >= lw.limit {
		return len(p), nil
	}
	chunk := p
	if remaining := lw.limit - lw.written; len(chunk) > remaining {
		chunk = chunk[:remaining]
	}
	n, err := lw.w.Write(chunk)
	lw.written += n
	if err != nil {
		return n, err
	}
	return len(p), nil
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// stripANSI removes terminal escape codes from CLI output.
func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// exitDetail prefers stderr text over a bare exit code.
func exitDetail(stderr string, code int) string {
	if msg := strings.TrimSpace(stderr); msg != "" {
		return msg
	}
	return fmt.Sprintf("exit code %d", code)
}
