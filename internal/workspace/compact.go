package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Bounds for the compact digest. The compact path exists to keep
// inter-round context in the low hundreds of tokens.
const (
	compactFileListMax = 30
	compactFilesShown  = 20
	compactDepScanMax  = 1000

	// DefaultRoundSummaryMax bounds one summarized round.
	DefaultRoundSummaryMax = 500

	// DefaultHistoryBudget bounds the whole multi-round history
	// summary.
	DefaultHistoryBudget = 1000
)

// Compact is the minimal project digest used between agent rounds
// where the full Context would waste tokens.
type Compact struct {
	WorkingDir string
	Language   string
	Framework  string
	FileCount  int
	FileList   []string
	Done       []string
	Issues     []string
}

var compactMarkers = []struct{ file, language string }{
	{"pyproject.toml", "python"},
	{"setup.py", "python"},
	{"requirements.txt", "python"},
	{"package.json", "javascript"},
	{"tsconfig.json", "typescript"},
	{"go.mod", "go"},
	{"Cargo.toml", "rust"},
}

// GatherCompact collects the minimal digest: file names only, a quick
// marker-file language probe, and a shallow framework scan of the
// dependency manifest. No git state, no file contents.
func GatherCompact(dir string) *Compact {
	c := &Compact{WorkingDir: dir, Language: "unknown"}

	files := ListFiles(dir)
	c.FileCount = len(files)
	if len(files) > compactFileListMax {
		files = files[:compactFileListMax]
	}
	c.FileList = files

	for _, m := range compactMarkers {
		if _, err := os.Stat(filepath.Join(dir, m.file)); err == nil {
			c.Language = m.language
			break
		}
	}

	switch c.Language {
	case "python":
		for _, dep := range []string{"requirements.txt", "pyproject.toml"} {
			content := strings.ToLower(readTruncated(filepath.Join(dir, dep), compactDepScanMax))
			if content == "" {
				continue
			}
			for _, fw := range []string{"flask", "fastapi", "django"} {
				if strings.Contains(content, fw) {
					c.Framework = fw
					break
				}
			}
			break
		}
	case "javascript", "typescript":
		content := strings.ToLower(readTruncated(filepath.Join(dir, "package.json"), compactDepScanMax))
		for _, fw := range []string{"next", "express", "react", "vue"} {
			if strings.Contains(content, fw) {
				c.Framework = fw
				break
			}
		}
	}

	return c
}

// Prompt renders the digest in a handful of lines.
func (c *Compact) Prompt() string {
	parts := []string{"Dir: " + c.WorkingDir}

	if c.Language != "unknown" && c.Language != "" {
		tech := c.Language
		if c.Framework != "" {
			tech += "/" + c.Framework
		}
		parts = append(parts, "Stack: "+tech)
	}

	if len(c.FileList) > 0 {
		shown := c.FileList
		if len(shown) > compactFilesShown {
			shown = shown[:compactFilesShown]
		}
		parts = append(parts, fmt.Sprintf("Files (%d): %s", c.FileCount, strings.Join(shown, ", ")))
	}

	if len(c.Done) > 0 {
		parts = append(parts, "Done: "+strings.Join(tailOf(c.Done, 5), "; "))
	}
	if len(c.Issues) > 0 {
		parts = append(parts, "Open issues: "+strings.Join(tailOf(c.Issues, 5), "; "))
	}

	return strings.Join(parts, "\n")
}

// SummarizeRound compresses one round's output to its key lines:
// bullets, numbered items, headings, approval markers, and lines
// mentioning errors or concrete actions. Falls back to head+tail
// excerpting, then hard-truncates to maxChars.
func SummarizeRound(agentName, phase, output string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultRoundSummaryMax
	}
	if strings.TrimSpace(output) == "" {
		return fmt.Sprintf("%s (%s): no output", agentName, phase)
	}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	var key []string
	for _, line := range lines {
		if isKeyLine(strings.TrimSpace(line)) {
			key = append(key, strings.TrimSpace(line))
		}
	}

	var summary string
	switch {
	case len(key) > 0:
		if len(key) > 15 {
			key = key[:15]
		}
		summary = strings.Join(key, "\n")
	case len(lines) <= 5:
		summary = strings.TrimSpace(output)
	default:
		summary = strings.Join(lines[:3], "\n") + "\n...\n" + strings.Join(lines[len(lines)-2:], "\n")
	}

	if len(summary) > maxChars {
		summary = summary[:maxChars] + "..."
	}
	return summary
}

func isKeyLine(line string) bool {
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "•") {
		return true
	}
	if line[0] >= '0' && line[0] <= '9' {
		return true
	}
	if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "APPROVED") {
		return true
	}
	lower := strings.ToLower(line)
	for _, marker := range []string{"error", "fix", "missing", "create", "add", "bug"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// RoundDigest is one prior round as seen by HistorySummary.
type RoundDigest struct {
	Agent  string
	Phase  string
	Output string
}

// HistorySummary renders previous rounds within a total character
// budget, splitting the budget evenly across rounds with a 100-char
// floor per round. Pass budget <= 0 for DefaultHistoryBudget.
func HistorySummary(rounds []RoundDigest, budget int) string {
	if len(rounds) == 0 {
		return ""
	}
	if budget <= 0 {
		budget = DefaultHistoryBudget
	}

	perRound := budget / len(rounds)
	if perRound < 100 {
		perRound = 100
	}

	parts := make([]string, 0, len(rounds))
	for _, r := range rounds {
		summary := SummarizeRound(r.Agent, r.Phase, r.Output, perRound)
		parts = append(parts, fmt.Sprintf("[%s] %s", r.Phase, summary))
	}

	result := strings.Join(parts, "\n\n")
	if len(result) > budget {
		result = result[:budget] + "\n..."
	}
	return result
}

func tailOf(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
