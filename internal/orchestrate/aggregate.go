package orchestrate

import (
	"time"

	"github.com/fyrsmithlabs/forge/internal/agent"
)

// Aggregator compares outcomes from a multi-agent fan-out. A CostUSD of
// zero is treated as "cost unreported" throughout.
type Aggregator struct {
	All        []agent.Outcome
	Successful []agent.Outcome
	Failed     []agent.Outcome
}

// Aggregate splits outcomes by success for comparison.
func Aggregate(outs []agent.Outcome) *Aggregator {
	agg := &Aggregator{All: outs}
	for _, out := range outs {
		if out.Success() {
			agg.Successful = append(agg.Successful, out)
		} else {
			agg.Failed = append(agg.Failed, out)
		}
	}
	return agg
}

// TotalCostUSD sums cost across every outcome, failures included.
func (a *Aggregator) TotalCostUSD() float64 {
	var total float64
	for _, out := range a.All {
		total += out.CostUSD
	}
	return total
}

// TotalDuration is the longest single duration, since fan-outs run in
// parallel.
func (a *Aggregator) TotalDuration() time.Duration {
	var longest time.Duration
	for _, out := range a.All {
		longest = max(longest, out.Duration)
	}
	return longest
}

// Fastest returns the quickest successful outcome, or nil without one.
func (a *Aggregator) Fastest() *agent.Outcome {
	var fastest *agent.Outcome
	for i := range a.Successful {
		out := &a.Successful[i]
		if fastest == nil || out.Duration < fastest.Duration {
			fastest = out
		}
	}
	return fastest
}

// Cheapest returns the lowest-cost successful outcome. When no outcome
// reported a cost it falls back to the fastest.
func (a *Aggregator) Cheapest() *agent.Outcome {
	var cheapest *agent.Outcome
	for i := range a.Successful {
		out := &a.Successful[i]
		if out.CostUSD <= 0 {
			continue
		}
		if cheapest == nil || out.CostUSD < cheapest.CostUSD {
			cheapest = out
		}
	}
	if cheapest == nil {
		return a.Fastest()
	}
	return cheapest
}

// Best picks the strongest successful outcome by a weighted heuristic:
// output length 40%, speed 30%, cost 30%. Ties keep the earlier outcome.
func (a *Aggregator) Best() *agent.Outcome {
	if len(a.Successful) == 0 {
		return nil
	}
	if len(a.Successful) == 1 {
		return &a.Successful[0]
	}

	var (
		maxLen  int
		maxDur  time.Duration
		maxCost float64
	)
	for _, out := range a.Successful {
		maxLen = max(maxLen, len(out.Output))
		cost := out.CostUSD
		if cost <= 0 {
			cost = 0.01
		}
		maxCost = max(maxCost, cost)
		maxDur = max(maxDur, out.Duration)
	}
	if maxLen == 0 {
		maxLen = 1
	}
	if maxDur == 0 {
		maxDur = 1
	}

	best := &a.Successful[0]
	bestScore := -1.0
	for i := range a.Successful {
		out := &a.Successful[i]
		lengthScore := float64(len(out.Output)) / float64(maxLen)
		speedScore := 1.0 - float64(out.Duration)/float64(maxDur)
		costScore := 1.0 - out.CostUSD/maxCost
		score := lengthScore*0.4 + speedScore*0.3 + costScore*0.3
		if score > bestScore {
			best = out
			bestScore = score
		}
	}
	return best
}

// Summary is a display-ready digest of a fan-out.
type Summary struct {
	TotalAgents   int
	Successful    int
	Failed        int
	TotalCostUSD  float64
	TotalDuration time.Duration
	FastestAgent  string
	CheapestAgent string
	BestAgent     string
}

// Summarize returns the digest for display.
func (a *Aggregator) Summarize() Summary {
	s := Summary{
		TotalAgents:   len(a.All),
		Successful:    len(a.Successful),
		Failed:        len(a.Failed),
		TotalCostUSD:  a.TotalCostUSD(),
		TotalDuration: a.TotalDuration(),
	}
	if out := a.Fastest(); out != nil {
		s.FastestAgent = out.Agent
	}
	if out := a.Cheapest(); out != nil {
		s.CheapestAgent = out.Agent
	}
	if out := a.Best(); out != nil {
		s.BestAgent = out.Agent
	}
	return s
}
