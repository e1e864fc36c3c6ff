package console

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalWritesAllEventKinds(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.Headline("Autonomous Build")
	term.Rule("Round %d/%d", 1, 5)
	term.Info("dispatching %s", "claude")
	term.Detail("Directory: %s", "/tmp/project")
	term.Success("verification passed")
	term.Warn("no files changed")
	term.Error("planning failed")
	term.Panel("Summary", "3 files created")
	term.Blank()

	out := buf.String()
	assert.Contains(t, out, "Autonomous Build")
	assert.Contains(t, out, "Round 1/5")
	assert.Contains(t, out, "dispatching claude")
	assert.Contains(t, out, "Directory: /tmp/project")
	assert.Contains(t, out, "verification passed")
	assert.Contains(t, out, "no files changed")
	assert.Contains(t, out, "planning failed")
	assert.Contains(t, out, "3 files created")
}

func TestTerminalConcurrentUse(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				term.Info("agent progress line")
			}
		}()
	}
	wg.Wait()

	lines := strings.Count(buf.String(), "\n")
	assert.Equal(t, 160, lines)
}

func TestCaptureRecordsKinds(t *testing.T) {
	cap := NewCapture()
	cap.Headline("build started")
	cap.Success("round approved")
	cap.Error("agent failed: %s", "timeout")

	events := cap.Events()
	require.Len(t, events, 3)
	assert.Equal(t, KindHeadline, events[0].Kind)
	assert.Equal(t, KindSuccess, events[1].Kind)
	assert.Equal(t, "agent failed: timeout", events[2].Text)

	assert.True(t, cap.Contains(KindError, "timeout"))
	assert.True(t, cap.Contains("", "approved"))
	assert.False(t, cap.Contains(KindSuccess, "timeout"))
}

func TestCaptureJoinedAndReset(t *testing.T) {
	cap := NewCapture()
	cap.Info("one")
	cap.Info("two")
	assert.Equal(t, "one\ntwo", cap.Joined())

	cap.Reset()
	assert.Empty(t, cap.Events())
}

func TestSinkInterfaceSatisfied(t *testing.T) {
	var _ Sink = (*Terminal)(nil)
	var _ Sink = (*Capture)(nil)
	var _ Sink = Nop{}
}
