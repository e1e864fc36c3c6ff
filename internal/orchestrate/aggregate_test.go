package orchestrate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/forge/internal/agent"
)

func TestAggregateSplitsBySuccess(t *testing.T) {
	outs := []agent.Outcome{
		{Agent: "a", Status: agent.StatusSuccess},
		{Agent: "b", Status: agent.StatusFailed},
		{Agent: "c", Status: agent.StatusTimeout},
		{Agent: "d", Status: agent.StatusSuccess},
	}

	agg := Aggregate(outs)

	require.Len(t, agg.Successful, 2)
	require.Len(t, agg.Failed, 2)
	assert.Equal(t, "a", agg.Successful[0].Agent)
	assert.Equal(t, "d", agg.Successful[1].Agent)
}

func TestAggregateTotals(t *testing.T) {
	outs := []agent.Outcome{
		{Agent: "a", Status: agent.StatusSuccess, CostUSD: 0.10, Duration: 3 * time.Second},
		{Agent: "b", Status: agent.StatusFailed, CostUSD: 0.02, Duration: 9 * time.Second},
		{Agent: "c", Status: agent.StatusSuccess, CostUSD: 0.05, Duration: 5 * time.Second},
	}

	agg := Aggregate(outs)

	assert.InDelta(t, 0.17, agg.TotalCostUSD(), 1e-9, "failures still cost money")
	assert.Equal(t, 9*time.Second, agg.TotalDuration(), "parallel wall time is the longest leg")
}

func TestAggregateFastest(t *testing.T) {
	outs := []agent.Outcome{
		{Agent: "slow", Status: agent.StatusSuccess, Duration: 8 * time.Second},
		{Agent: "quick", Status: agent.StatusSuccess, Duration: 2 * time.Second},
		{Agent: "instant-but-failed", Status: agent.StatusFailed, Duration: time.Millisecond},
	}

	fastest := Aggregate(outs).Fastest()

	require.NotNil(t, fastest)
	assert.Equal(t, "quick", fastest.Agent)
}

func TestAggregateFastestNoSuccesses(t *testing.T) {
	agg := Aggregate([]agent.Outcome{{Agent: "a", Status: agent.StatusFailed}})

	assert.Nil(t, agg.Fastest())
	assert.Nil(t, agg.Best())
}

func TestAggregateCheapest(t *testing.T) {
	outs := []agent.Outcome{
		{Agent: "pricey", Status: agent.StatusSuccess, CostUSD: 0.50, Duration: time.Second},
		{Agent: "bargain", Status: agent.StatusSuccess, CostUSD: 0.01, Duration: 5 * time.Second},
	}

	cheapest := Aggregate(outs).Cheapest()

	require.NotNil(t, cheapest)
	assert.Equal(t, "bargain", cheapest.Agent)
}

func TestAggregateCheapestFallsBackToFastest(t *testing.T) {
	outs := []agent.Outcome{
		{Agent: "slow", Status: agent.StatusSuccess, Duration: 5 * time.Second},
		{Agent: "quick", Status: agent.StatusSuccess, Duration: time.Second},
	}

	cheapest := Aggregate(outs).Cheapest()

	require.NotNil(t, cheapest)
	assert.Equal(t, "quick", cheapest.Agent, "no cost data means the fastest wins")
}

func TestBestSingleSuccessWinsOutright(t *testing.T) {
	outs := []agent.Outcome{
		{Agent: "only", Status: agent.StatusSuccess, Output: "x"},
		{Agent: "broken", Status: agent.StatusFailed, Output: strings.Repeat("y", 1000)},
	}

	best := Aggregate(outs).Best()

	require.NotNil(t, best)
	assert.Equal(t, "only", best.Agent)
}

func TestBestPrefersLongerOutputAllElseEqual(t *testing.T) {
	outs := []agent.Outcome{
		{Agent: "terse", Status: agent.StatusSuccess, Output: "short", Duration: time.Second, CostUSD: 0.01},
		{Agent: "thorough", Status: agent.StatusSuccess, Output: strings.Repeat("detail ", 50), Duration: time.Second, CostUSD: 0.01},
	}

	best := Aggregate(outs).Best()

	require.NotNil(t, best)
	assert.Equal(t, "thorough", best.Agent)
}

func TestBestWeighsSpeedAndCostAgainstLength(t *testing.T) {
	// The long answer maxes length but is slowest and priciest (0.4).
	// The short one scores 0.5*0.4 + 0.5*0.3 + 0.8*0.3 = 0.59.
	outs := []agent.Outcome{
		{Agent: "long", Status: agent.StatusSuccess, Output: strings.Repeat("a", 100), Duration: 10 * time.Second, CostUSD: 0.05},
		{Agent: "lean", Status: agent.StatusSuccess, Output: strings.Repeat("b", 50), Duration: 5 * time.Second, CostUSD: 0.01},
	}

	best := Aggregate(outs).Best()

	require.NotNil(t, best)
	assert.Equal(t, "lean", best.Agent)
}

func TestSummarize(t *testing.T) {
	// Best is "a": 0.4 (max length, slowest, priciest) vs "b" at
	// 0.005*0.4 + 0.333*0.3 + 0.5*0.3 = 0.252.
	outs := []agent.Outcome{
		{Agent: "a", Status: agent.StatusSuccess, Output: strings.Repeat("x", 200), Duration: 1500 * time.Millisecond, CostUSD: 0.04},
		{Agent: "b", Status: agent.StatusSuccess, Output: "y", Duration: time.Second, CostUSD: 0.02},
		{Agent: "c", Status: agent.StatusFailed, Duration: 4 * time.Second},
	}

	s := Aggregate(outs).Summarize()

	assert.Equal(t, 3, s.TotalAgents)
	assert.Equal(t, 2, s.Successful)
	assert.Equal(t, 1, s.Failed)
	assert.InDelta(t, 0.06, s.TotalCostUSD, 1e-9)
	assert.Equal(t, 4*time.Second, s.TotalDuration)
	assert.Equal(t, "b", s.FastestAgent)
	assert.Equal(t, "b", s.CheapestAgent)
	assert.Equal(t, "a", s.BestAgent)
}
