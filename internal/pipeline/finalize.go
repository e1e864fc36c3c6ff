package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/forge/internal/history"
	"github.com/fyrsmithlabs/forge/internal/memory"
	"github.com/fyrsmithlabs/forge/internal/score"
	"github.com/fyrsmithlabs/forge/internal/workspace"
)

// finalize closes out a run regardless of how it ended: summary,
// quality score, run record, learnings, and the optional commit.
// fatal marks runs that died in PLAN or CODE; those still score and
// record history, but extract no learnings and never commit.
func (d *Duo) finalize(ctx context.Context, objective string, start time.Time, approved, fatal bool) *Result {
	d.mu.Lock()
	rounds := make([]Round, len(d.rounds))
	copy(rounds, d.rounds)
	totalCost := d.totalCost
	totalDur := d.totalDur
	planner, coder := d.planner, d.coder
	d.mu.Unlock()

	files := workspace.ListFiles(d.dir)
	sc := score.Project(d.dir)

	result := &Result{
		Rounds:        rounds,
		Approved:      approved,
		TotalRounds:   len(rounds),
		FilesCreated:  files,
		TotalCostUSD:  totalCost,
		TotalDuration: totalDur,
		Score:         sc,
	}

	d.sink.Blank()
	d.sink.Panel("Build summary", summaryBody(rounds, totalCost, totalDur))
	d.sink.Info("Quality score: %d/100 (%s)", sc.Total, sc.Grade())

	switch {
	case approved:
		d.sink.Success("Build approved and complete.")
	case !fatal:
		d.sink.Warn("Max review rounds reached without approval.")
	}

	if len(files) > 0 {
		shown := files
		if len(shown) > 20 {
			shown = shown[:20]
		}
		d.sink.Detail("Files: %s", strings.Join(shown, ", "))
		if len(files) > len(shown) {
			d.sink.Detail("... and %d more", len(files)-len(shown))
		}
	}

	if err := history.Append(d.dir, history.RunRecord{
		Objective:    objective,
		Planner:      planner,
		Coder:        coder,
		QualityScore: sc.Total,
		Grade:        sc.Grade(),
		DurationSecs: time.Since(start).Seconds(),
		CostUSD:      totalCost,
		TotalRounds:  len(rounds),
		Approved:     approved,
		FilesCreated: len(files),
		Errors:       d.distinctCategories(),
	}); err != nil {
		d.log.Warn(ctx, "run record append failed", zap.Error(err))
	}

	if !fatal {
		d.extractLearnings(ctx, objective, rounds, approved)

		if d.autoCommit {
			msg := fmt.Sprintf(
				"v1.0: %s\n\nBuilt collaboratively:\n  Planner/Reviewer: %s\n  Coder: %s\n  Rounds: %d",
				head(objective, 80), planner, coder, len(rounds))
			if hash, err := d.ckpt.CommitAll(ctx, msg); err != nil {
				d.log.Warn(ctx, "final commit failed", zap.Error(err))
			} else if hash != "" {
				d.sink.Detail("Committed %s", head(hash, 8))
			}
		}
	}

	if approved {
		ClearState(d.dir)
	}

	d.log.Info(ctx, "duo run finished",
		zap.Bool("approved", approved),
		zap.Int("rounds", len(rounds)),
		zap.Float64("cost_usd", totalCost),
		zap.Int("score", sc.Total))
	return result
}

// extractLearnings distills the run into at most two cross-run memory
// entries: how it ended, and whether escalation was needed.
func (d *Duo) extractLearnings(ctx context.Context, objective string, rounds []Round, approved bool) {
	lang := workspace.GatherCompact(d.dir).Language
	if lang == "" || lang == "unknown" {
		lang = "project"
	}

	reviews, fixes := 0, 0
	for _, r := range rounds {
		switch r.Phase {
		case PhaseReview:
			reviews++
		case PhaseFix:
			fixes++
		}
	}

	if approved {
		pattern := fmt.Sprintf("%s: planner %s + coder %s approved in %d round(s)",
			lang, d.planner, d.coder, reviews)
		if err := d.store.Add(pattern, memory.CategorySuccess, objective, d.coder, 0.6); err != nil {
			d.log.Warn(ctx, "learning save failed", zap.Error(err))
		}
	} else if cat := d.dominantCategory(); cat != "" {
		pattern := fmt.Sprintf("%s: %s failures persisted after %d fix round(s)", lang, cat, fixes)
		if err := d.store.Add(pattern, memory.CategoryFailure, objective, d.coder, 0.5); err != nil {
			d.log.Warn(ctx, "learning save failed", zap.Error(err))
		}
	}

	if d.escalatedTo != "" {
		cat := d.dominantCategory()
		if cat == "" {
			cat = "verification"
		}
		pattern := fmt.Sprintf("escalating coder to %s after repeated %s failures", d.escalatedTo, cat)
		if err := d.store.Add(pattern, memory.CategoryStrategy, objective, d.escalatedTo, 0.5); err != nil {
			d.log.Warn(ctx, "learning save failed", zap.Error(err))
		}
	}
}

// dominantCategory returns the most frequent failure category seen by
// the classifier this run, empty when nothing failed.
func (d *Duo) dominantCategory() string {
	counts := make(map[string]int)
	for _, c := range d.classified {
		counts[string(c.Category)]++
	}
	best, bestN := "", 0
	for cat, n := range counts {
		if n > bestN || (n == bestN && cat < best) {
			best, bestN = cat, n
		}
	}
	return best
}

// distinctCategories lists each failure category once, in first-seen
// order, for the run record.
func (d *Duo) distinctCategories() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, c := range d.classified {
		cat := string(c.Category)
		if _, ok := seen[cat]; ok {
			continue
		}
		seen[cat] = struct{}{}
		out = append(out, cat)
	}
	return out
}

func summaryBody(rounds []Round, totalCost float64, totalDur time.Duration) string {
	var b strings.Builder
	for _, r := range rounds {
		mark := "ok"
		if !r.Success {
			mark = "FAIL"
		}
		if r.RolledBack {
			mark += " (rolled back)"
		}
		fmt.Fprintf(&b, "%2d. %-7s %-20s $%.2f %5.0fs  %s\n",
			r.Number, r.Phase, r.Agent, r.CostUSD, r.Duration.Seconds(), mark)
	}
	fmt.Fprintf(&b, "TOTAL: $%.2f · %.0fs across %d round(s)",
		totalCost, totalDur.Seconds(), len(rounds))
	return b.String()
}
