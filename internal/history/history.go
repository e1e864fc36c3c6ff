// Package history persists one run record per completed build into an
// append-only JSON sidecar, the data source for the dashboard and the
// history browser.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Filename is the history sidecar kept in each working directory.
const Filename = ".forge-history.json"

// RunRecord summarizes one completed pipeline run.
type RunRecord struct {
	// ID uniquely identifies the record across the file's lifetime.
	// Assigned on append when empty.
	ID string `json:"id"`

	Objective    string  `json:"objective"`
	Planner      string  `json:"planner"`
	Coder        string  `json:"coder"`
	QualityScore int     `json:"quality_score"`
	Grade        string  `json:"grade"`
	DurationSecs float64 `json:"duration_secs"`
	CostUSD      float64 `json:"cost_usd"`
	TotalRounds  int     `json:"total_rounds"`
	Approved     bool    `json:"approved"`

	// Timestamp is RFC 3339 UTC, assigned on append when empty.
	Timestamp string `json:"timestamp"`

	// FilesCreated counts files present in the project at completion.
	FilesCreated int `json:"files_created"`

	// Errors lists the distinct failure categories seen during the run.
	Errors []string `json:"errors,omitempty"`
}

// Load returns the run records for a working directory, oldest first.
// A missing or unreadable history file yields an empty slice, never an
// error: history is advisory and must not block a build.
func Load(dir string) []RunRecord {
	data, err := os.ReadFile(filepath.Join(dir, Filename))
	if err != nil {
		return nil
	}
	var records []RunRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil
	}
	return records
}

// Append adds one record to the directory's history, filling in the ID
// and timestamp when the caller left them empty.
func Append(dir string, rec RunRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp == "" {
		rec.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	records := append(Load(dir), rec)
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, Filename), data, 0o644)
}

// Stats aggregates a record list for the dashboard header.
type Stats struct {
	Runs         int
	AvgScore     float64
	TotalCostUSD float64

	// ApprovalRate is the approved fraction in percent, 0-100.
	ApprovalRate float64

	// Best points at the highest-scoring run, nil when empty.
	Best *RunRecord
}

// Summarize computes aggregate stats over the given records.
func Summarize(records []RunRecord) Stats {
	s := Stats{Runs: len(records)}
	if len(records) == 0 {
		return s
	}

	var scoreSum, approved int
	for i := range records {
		r := &records[i]
		scoreSum += r.QualityScore
		s.TotalCostUSD += r.CostUSD
		if r.Approved {
			approved++
		}
		if s.Best == nil || r.QualityScore > s.Best.QualityScore {
			s.Best = r
		}
	}
	s.AvgScore = float64(scoreSum) / float64(len(records))
	s.ApprovalRate = float64(approved) / float64(len(records)) * 100
	return s
}
