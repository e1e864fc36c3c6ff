package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/forge/internal/agent"
)

type progressLog struct {
	mu     sync.Mutex
	events []string
}

func (p *progressLog) record(name, state string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, name+":"+state)
}

func (p *progressLog) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	copy(out, p.events)
	return out
}

func TestDispatchUnknownAgent(t *testing.T) {
	e := New(agent.RegistryOf(), 2, nil)

	out := e.Dispatch(context.Background(), "ghost", agent.Task{Prompt: "hi"}, nil)

	require.Equal(t, agent.StatusUnavailable, out.Status)
	assert.Equal(t, "ghost", out.Agent)
	assert.Equal(t, `Agent "ghost" is not configured`, out.Detail)
}

func TestDispatchReportsProgress(t *testing.T) {
	mock := agent.NewMock("claude", agent.Outcome{Status: agent.StatusSuccess, Output: "done"})
	e := New(agent.RegistryOf(mock), 2, nil)
	var log progressLog

	out := e.Dispatch(context.Background(), "claude", agent.Task{Prompt: "hi"}, log.record)

	require.True(t, out.Success())
	assert.Equal(t, []string{"claude:running", "claude:success"}, log.all())
}

func TestDispatchReportsFailure(t *testing.T) {
	mock := agent.NewMock("claude", agent.Outcome{Status: agent.StatusFailed, Detail: "boom"})
	e := New(agent.RegistryOf(mock), 2, nil)
	var log progressLog

	out := e.Dispatch(context.Background(), "claude", agent.Task{Prompt: "hi"}, log.record)

	require.False(t, out.Success())
	assert.Equal(t, []string{"claude:running", "claude:failed"}, log.all())
}

func TestDispatchSkipsProgressForUnknownAgent(t *testing.T) {
	e := New(agent.RegistryOf(), 2, nil)
	var log progressLog

	e.Dispatch(context.Background(), "ghost", agent.Task{}, log.record)

	assert.Empty(t, log.all())
}

func TestDispatchAllNoAgentsAvailable(t *testing.T) {
	offline := agent.NewMock("claude")
	offline.Availability = false
	e := New(agent.RegistryOf(offline), 2, nil)

	outs := e.DispatchAll(context.Background(), agent.Task{Prompt: "hi"}, nil)

	require.Len(t, outs, 1)
	assert.Equal(t, "forge", outs[0].Agent)
	assert.Equal(t, agent.StatusFailed, outs[0].Status)
	assert.Equal(t, "No agents are available. Check installation and configuration.", outs[0].Detail)
}

func TestDispatchAllFansOutToAvailableAgents(t *testing.T) {
	a := agent.NewMock("alpha", agent.Outcome{Status: agent.StatusSuccess, Output: "from alpha"})
	b := agent.NewMock("beta", agent.Outcome{Status: agent.StatusSuccess, Output: "from beta"})
	offline := agent.NewMock("gamma")
	offline.Availability = false
	e := New(agent.RegistryOf(a, b, offline), 2, nil)

	outs := e.DispatchAll(context.Background(), agent.Task{Prompt: "hi"}, nil)

	require.Len(t, outs, 2)
	assert.Equal(t, "alpha", outs[0].Agent)
	assert.Equal(t, "from alpha", outs[0].Output)
	assert.Equal(t, "beta", outs[1].Agent)
	assert.Equal(t, "from beta", outs[1].Output)
	assert.Equal(t, 1, a.CallCount())
	assert.Equal(t, 1, b.CallCount())
	assert.Equal(t, 0, offline.CallCount())
}

func TestDispatchNamedPreservesRequestOrder(t *testing.T) {
	a := agent.NewMock("alpha", agent.Outcome{Status: agent.StatusSuccess, Output: "A"})
	b := agent.NewMock("beta", agent.Outcome{Status: agent.StatusSuccess, Output: "B"})
	e := New(agent.RegistryOf(a, b), 2, nil)

	outs := e.DispatchNamed(context.Background(), []string{"beta", "ghost", "alpha"}, agent.Task{}, nil)

	require.Len(t, outs, 3)
	assert.Equal(t, "beta", outs[0].Agent)
	assert.Equal(t, "B", outs[0].Output)
	assert.Equal(t, agent.StatusUnavailable, outs[1].Status)
	assert.Equal(t, "ghost", outs[1].Agent)
	assert.Equal(t, "alpha", outs[2].Agent)
	assert.Equal(t, "A", outs[2].Output)
}

func TestFanOutBoundsParallelism(t *testing.T) {
	var active, peak atomic.Int32
	handler := func(ctx context.Context, task agent.Task) agent.Outcome {
		cur := active.Add(1)
		for {
			prev := peak.Load()
			if cur <= prev || peak.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return agent.Outcome{Status: agent.StatusSuccess, Output: "ok"}
	}

	mocks := make([]agent.Adapter, 0, 6)
	names := make([]string, 0, 6)
	for _, name := range []string{"a1", "a2", "a3", "a4", "a5", "a6"} {
		m := agent.NewMock(name)
		m.Handler = handler
		mocks = append(mocks, m)
		names = append(names, name)
	}
	e := New(agent.RegistryOf(mocks...), 2, nil)

	outs := e.DispatchNamed(context.Background(), names, agent.Task{}, nil)

	require.Len(t, outs, 6)
	for _, out := range outs {
		assert.True(t, out.Success())
	}
	assert.LessOrEqual(t, peak.Load(), int32(2), "no more than max_parallel dispatches in flight")
}

func TestNewClampsMaxParallel(t *testing.T) {
	mock := agent.NewMock("solo")
	e := New(agent.RegistryOf(mock), 0, nil)

	outs := e.DispatchNamed(context.Background(), []string{"solo"}, agent.Task{}, nil)

	require.Len(t, outs, 1)
	assert.True(t, outs[0].Success())
}

func TestAvailableNames(t *testing.T) {
	a := agent.NewMock("zeta")
	b := agent.NewMock("alpha")
	offline := agent.NewMock("mid")
	offline.Availability = false
	e := New(agent.RegistryOf(a, b, offline), 2, nil)

	assert.Equal(t, []string{"alpha", "zeta"}, e.AvailableNames())
	assert.Equal(t, map[string]bool{"alpha": true, "mid": false, "zeta": true}, e.Available())
}
