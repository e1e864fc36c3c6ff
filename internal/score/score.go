// Package score rates a generated project from 0-100.
//
// Four categories worth 25 points each: structural completeness, code
// quality signals, test coverage, and documentation. The breakdown is
// shown after a build finishes and recorded with the run so projects can
// be compared across runs and agent pairings.
package score

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// QualityScore is the scored breakdown for one project.
type QualityScore struct {
	Total     int // 0-100
	Structure int // 0-25
	Code      int // 0-25
	Tests     int // 0-25
	Docs      int // 0-25
	// Details are human-readable notes explaining each earned or missed
	// allocation, in scoring order.
	Details []string
}

// Grade maps the total to a letter grade.
func (s QualityScore) Grade() string {
	switch {
	case s.Total >= 90:
		return "A"
	case s.Total >= 80:
		return "B"
	case s.Total >= 70:
		return "C"
	case s.Total >= 60:
		return "D"
	}
	return "F"
}

// skipDirs are pruned from the scoring walk. Unlike the validation gate
// this list is exact: dot-directories such as .github still count.
var skipDirs = map[string]struct{}{
	".git": {}, "__pycache__": {}, "node_modules": {},
	".venv": {}, "venv": {}, ".mypy_cache": {},
}

var srcExts = map[string]struct{}{
	".py": {}, ".js": {}, ".ts": {}, ".go": {},
	".rs": {}, ".java": {}, ".rb": {},
}

var manifestNames = []string{"pyproject.toml", "package.json", "Cargo.toml", "go.mod", "setup.py"}

var initNames = map[string]struct{}{
	"__init__.py": {}, "index.js": {}, "index.ts": {}, "mod.rs": {}, "main.go": {},
}

var testDirNames = map[string]struct{}{
	"tests": {}, "test": {}, "__tests__": {},
}

// Project scores the project rooted at dir.
func Project(dir string) QualityScore {
	var details []string

	files := listFiles(dir)

	var sources []string
	for _, f := range files {
		if _, ok := srcExts[path.Ext(f)]; ok {
			sources = append(sources, f)
		}
	}
	var tests []string
	for _, f := range sources {
		if isTestFile(f) {
			tests = append(tests, f)
		}
	}

	// Structure: 25 points.
	structure := 0

	if anyExists(dir, manifestNames) {
		structure += 8
		details = append(details, "Package manifest found")
	} else {
		details = append(details, "No package manifest (pyproject.toml, package.json, etc.)")
	}

	if _, err := os.Stat(filepath.Join(dir, ".gitignore")); err == nil {
		structure += 4
		details = append(details, ".gitignore present")
	} else {
		details = append(details, "Missing .gitignore")
	}

	dirs := map[string]struct{}{}
	for _, f := range sources {
		if parent := path.Dir(f); parent != "." {
			dirs[parent] = struct{}{}
		}
	}
	if len(dirs) >= 1 {
		structure += 4
		details = append(details, fmt.Sprintf("Organized in %d directory(ies)", len(dirs)))
	}
	if len(dirs) >= 2 {
		structure += 4
	}

	for _, f := range sources {
		if _, ok := initNames[path.Base(f)]; ok {
			structure += 5
			details = append(details, "Entry point/init file found")
			break
		}
	}

	// Code quality: 25 points.
	code := 0

	if len(sources) > 0 {
		code += min(10, len(sources)*2)
		details = append(details, fmt.Sprintf("%d source file(s)", len(sources)))
	} else {
		details = append(details, "No source files found")
	}

	totalLines := 0
	for _, f := range headOf(sources, 20) {
		totalLines += strings.Count(readFile(dir, f), "\n")
	}
	switch {
	case totalLines > 200:
		code += 10
		details = append(details, fmt.Sprintf("%d lines of code", totalLines))
	case totalLines > 50:
		code += 5
		details = append(details, fmt.Sprintf("Only %d lines of code", totalLines))
	case totalLines > 0:
		code += 2
		details = append(details, fmt.Sprintf("Very little code (%d lines)", totalLines))
	}

	placeholders := 0
	for _, f := range headOf(sources, 10) {
		content := strings.ToLower(readFile(dir, f))
		if strings.Contains(content, "todo") || strings.Contains(content, "pass  # placeholder") {
			placeholders++
		}
	}
	if placeholders == 0 {
		code += 5
		details = append(details, "No TODO/placeholder code")
	} else {
		details = append(details, fmt.Sprintf("%d file(s) with TODO/placeholders", placeholders))
	}

	// Tests: 25 points.
	testPts := 0

	if len(tests) > 0 {
		testPts += min(10, len(tests)*5)
		details = append(details, fmt.Sprintf("%d test file(s)", len(tests)))
	} else {
		details = append(details, "No test files found")
	}

	hasAssertions := false
	for _, f := range headOf(tests, 5) {
		content := readFile(dir, f)
		if strings.Contains(content, "assert") || strings.Contains(content, "expect(") || strings.Contains(content, "should") {
			hasAssertions = true
			break
		}
	}
	if hasAssertions {
		testPts += 10
		details = append(details, "Tests contain assertions")
	} else if len(tests) > 0 {
		details = append(details, "Test files exist but no assertions found")
	}

	nonTest := len(sources) - len(tests)
	if nonTest > 0 && len(tests) > 0 {
		ratio := float64(len(tests)) / float64(nonTest)
		if ratio >= 0.3 {
			testPts += 5
			details = append(details, fmt.Sprintf("Good test ratio (%.0f%%)", ratio*100))
		} else if ratio >= 0.1 {
			testPts += 2
			details = append(details, fmt.Sprintf("Low test ratio (%.0f%%)", ratio*100))
		}
	}

	// Documentation: 25 points.
	docs := 0

	readme := readFile(dir, "README.md")
	if _, err := os.Stat(filepath.Join(dir, "README.md")); err == nil {
		docs += 5
		readmeLines := strings.Count(readme, "\n")
		if readmeLines >= 20 {
			docs += 5
			details = append(details, fmt.Sprintf("README.md (%d lines)", readmeLines))
		} else {
			details = append(details, fmt.Sprintf("README.md is short (%d lines)", readmeLines))
		}

		lower := strings.ToLower(readme)
		if strings.Contains(lower, "install") {
			docs += 5
			details = append(details, "Install instructions in README")
		}
		if strings.Contains(readme, "```") || strings.Contains(lower, "usage") {
			docs += 5
			details = append(details, "Usage examples in README")
		}
	} else {
		details = append(details, "No README.md")
	}

	hasDocstrings := false
	for _, f := range headOf(sources, 5) {
		content := readFile(dir, f)
		if strings.Contains(content, `"""`) || strings.Contains(content, "'''") || strings.Contains(content, "/**") {
			hasDocstrings = true
			break
		}
	}
	if hasDocstrings {
		docs += 5
		details = append(details, "Code has docstrings/comments")
	}

	return QualityScore{
		Total:     structure + code + testPts + docs,
		Structure: structure,
		Code:      code,
		Tests:     testPts,
		Docs:      docs,
		Details:   details,
	}
}

// isTestFile matches files named like tests or living in a test directory.
func isTestFile(rel string) bool {
	base := path.Base(rel)
	stem := strings.TrimSuffix(base, path.Ext(base))
	if strings.Contains(strings.ToLower(stem), "test") {
		return true
	}
	_, ok := testDirNames[path.Base(path.Dir(rel))]
	return ok
}

// listFiles walks dir and returns sorted relative paths, pruning only the
// exact skipDirs entries.
func listFiles(dir string) []string {
	var files []string
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(dir, p)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		files = append(files, rel)
		return nil
	})
	return files
}

func anyExists(dir string, names []string) bool {
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

func readFile(dir, rel string) string {
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		return ""
	}
	return string(data)
}

func headOf(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
