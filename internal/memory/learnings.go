package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// LearningsFilename is the per-workspace sidecar that carries learnings
// across runs.
const LearningsFilename = ".forge-memory.json"

// learningsVersion is bumped whenever the sidecar format changes; a
// mismatch on load discards the stored entries.
const learningsVersion = 1

// DefaultRelevantLimit is how many learnings Relevant returns when the
// caller passes no explicit limit.
const DefaultRelevantLimit = 5

// Learning categories.
const (
	CategorySuccess  = "success"
	CategoryFailure  = "failure"
	CategoryStrategy = "strategy"
)

// confidenceBump is added to an existing entry's confidence when the
// same pattern is observed again.
const confidenceBump = 0.1

// Learning is a durable cross-run fact: something a past run figured
// out that future runs in the same workspace should know up front.
type Learning struct {
	// Pattern is the free-text lesson (e.g. "Flask apps need a pinned
	// Flask version"). Entries are deduplicated by exact pattern text.
	Pattern string `json:"pattern"`

	// Category is success, failure, or strategy.
	Category string `json:"category"`

	// ObjectiveHint holds keywords from the objective that produced
	// the learning, used for retrieval scoring.
	ObjectiveHint string `json:"objective_hint"`

	// Agent is the name of the agent the learning originated from.
	Agent string `json:"agent"`

	// Confidence is a reliability score in [0, 1]. Repeated
	// observations of the same pattern raise it, capped at 1.0.
	Confidence float64 `json:"confidence"`

	// Uses counts how many times the pattern has been re-observed.
	Uses int `json:"uses"`
}

type learningsFile struct {
	Version   int        `json:"version"`
	Learnings []Learning `json:"learnings"`
}

// Store is the persistent learnings collection for one workspace.
//
// The sidecar is loaded once at open and rewritten after every
// mutation, so separate pipeline invocations in the same directory see
// each other's lessons. A missing, unreadable, or version-mismatched
// sidecar opens as an empty store rather than failing the run.
type Store struct {
	path string

	mu        sync.Mutex
	learnings []Learning
}

// OpenStore loads the learnings sidecar under dir, starting empty when
// no usable sidecar exists.
func OpenStore(dir string) *Store {
	s := &Store{path: filepath.Join(dir, LearningsFilename)}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return s
	}
	var file learningsFile
	if err := json.Unmarshal(data, &file); err != nil || file.Version != learningsVersion {
		return s
	}
	s.learnings = file.Learnings
	return s
}

// Count returns the number of stored learnings.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.learnings)
}

// Path returns the sidecar location.
func (s *Store) Path() string {
	return s.path
}

// Add records a learning and persists the store. An entry with the
// same exact pattern text is not duplicated: its confidence is bumped
// (capped at 1.0) and its use count incremented instead.
func (s *Store) Add(pattern, category, objectiveHint, agent string, confidence float64) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return fmt.Errorf("learning pattern cannot be empty")
	}
	confidence = clampConfidence(confidence)

	s.mu.Lock()
	for i := range s.learnings {
		if s.learnings[i].Pattern != pattern {
			continue
		}
		s.learnings[i].Confidence = clampConfidence(s.learnings[i].Confidence + confidenceBump)
		s.learnings[i].Uses++
		s.mu.Unlock()
		return s.Save()
	}
	s.learnings = append(s.learnings, Learning{
		Pattern:       pattern,
		Category:      category,
		ObjectiveHint: objectiveHint,
		Agent:         agent,
		Confidence:    confidence,
	})
	s.mu.Unlock()
	return s.Save()
}

// Relevant returns up to limit learnings ranked for the given
// objective. Ranking favors keyword overlap between the objective and
// each entry's hint and pattern, then confidence, then how often the
// entry has been re-observed. Pass limit <= 0 for
// DefaultRelevantLimit.
func (s *Store) Relevant(objective string, limit int) []Learning {
	if limit <= 0 {
		limit = DefaultRelevantLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.learnings) == 0 {
		return nil
	}

	objectiveWords := keywords(objective)

	type scored struct {
		entry Learning
		score float64
	}
	ranked := make([]scored, 0, len(s.learnings))
	for _, l := range s.learnings {
		overlap := wordOverlap(keywords(l.ObjectiveHint+" "+l.Pattern), objectiveWords)
		score := float64(overlap) + l.Confidence + 0.1*float64(l.Uses)
		ranked = append(ranked, scored{entry: l, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]Learning, len(ranked))
	for i, r := range ranked {
		out[i] = r.entry
	}
	return out
}

// PromptSection renders the learnings relevant to the objective as a
// short bulleted list for prompt injection. Returns "" when the store
// is empty.
func (s *Store) PromptSection(objective string) string {
	relevant := s.Relevant(objective, DefaultRelevantLimit)
	if len(relevant) == 0 {
		return ""
	}

	parts := []string{"LEARNINGS FROM PREVIOUS RUNS:"}
	for _, l := range relevant {
		parts = append(parts, fmt.Sprintf("  - [%s] %s", l.Category, l.Pattern))
	}
	return strings.Join(parts, "\n")
}

// Save rewrites the sidecar with the current entries.
func (s *Store) Save() error {
	s.mu.Lock()
	file := learningsFile{Version: learningsVersion, Learnings: s.learnings}
	data, err := json.MarshalIndent(file, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal learnings: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write learnings: %w", err)
	}
	return nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// keywords lowercases and splits text into words of 3+ characters,
// dropping punctuation.
func keywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 3 {
			out = append(out, f)
		}
	}
	return out
}

// wordOverlap counts hint words that match an objective word exactly
// or by prefix in either direction, so "testing" still matches
// "tests".
func wordOverlap(hintWords, objectiveWords []string) int {
	count := 0
	for _, h := range hintWords {
		for _, o := range objectiveWords {
			if h == o || strings.HasPrefix(h, o) || strings.HasPrefix(o, h) {
				count++
				break
			}
		}
	}
	return count
}
