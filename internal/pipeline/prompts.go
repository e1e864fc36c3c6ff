package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/forge/internal/workspace"
)

// planPrompt asks the planner for a full project design. existing
// lists files already in the workspace (a scaffold or a resumed run)
// so the plan builds on them instead of recreating them; learnings is
// the cross-run memory section, empty when the store has nothing
// relevant.
func planPrompt(objective string, existing []string, learnings string) string {
	var b strings.Builder
	b.WriteString("You are a senior software architect designing a production-ready project.\n\n")
	fmt.Fprintf(&b, "OBJECTIVE: %s\n\n", objective)
	b.WriteString("Create a detailed project plan with these sections:\n\n")
	b.WriteString("## 1. README.md Content\n")
	b.WriteString("Write the FULL README.md including:\n")
	b.WriteString("- Project name and one-line description\n")
	b.WriteString("- Features list (bullet points)\n")
	b.WriteString("- Installation instructions (exact commands)\n")
	b.WriteString("- Usage examples with code blocks\n")
	b.WriteString("- Configuration options (if any)\n\n")
	b.WriteString("## 2. File Structure\n")
	b.WriteString("List EVERY file to create with:\n")
	b.WriteString("- Full relative path\n")
	b.WriteString("- One-line purpose description\n")
	b.WriteString("- Key classes/functions it should contain\n\n")
	b.WriteString("## 3. Tech Stack\n")
	b.WriteString("- Language and version requirements\n")
	b.WriteString("- Dependencies with version constraints (e.g. click>=8.0)\n")
	b.WriteString("- Dev dependencies (pytest, ruff, etc.)\n\n")
	b.WriteString("## 4. Architecture\n")
	b.WriteString("- Data flow between modules\n")
	b.WriteString("- Key design patterns (e.g. factory, strategy, plugin)\n")
	b.WriteString("- Error handling strategy\n")
	b.WriteString("- Testing strategy (what to test, how)\n\n")
	b.WriteString("Be precise with file paths and function signatures. ")
	b.WriteString("Another AI agent will implement this — ambiguity causes poor code.")

	if len(existing) > 0 {
		sample := existing
		if len(sample) > 10 {
			sample = sample[:10]
		}
		fmt.Fprintf(&b,
			"\n\nNOTE: The project already has a scaffold with these files: %s\n"+
				"Build on this foundation. Don't recreate files that already exist — extend them.",
			strings.Join(sample, ", "))
	}

	if learnings != "" {
		b.WriteString("\n\n")
		b.WriteString(learnings)
	}
	return b.String()
}

// codePrompt asks the coder to implement the full plan. The plan is
// passed nearly whole; it is the blueprint and summarizing it loses
// the detail the coder needs.
func codePrompt(objective, plan, dir string) string {
	planText := plan
	if len(plan) > planSoftMax {
		planText = plan[:planKeep] + "\n\n... (plan truncated for length)"
	}

	var b strings.Builder
	b.WriteString("You are a senior software engineer. Implement this project completely.\n\n")
	fmt.Fprintf(&b, "OBJECTIVE: %s\n\n", objective)
	fmt.Fprintf(&b, "PROJECT PLAN:\n%s\n\n", planText)
	fmt.Fprintf(&b, "Working directory: %s\n\n", dir)
	b.WriteString("QUALITY STANDARDS:\n")
	b.WriteString("- Create ALL files from the plan — missing files = failed build\n")
	b.WriteString("- Write COMPLETE code — no TODOs, no placeholders, no 'implement later'\n")
	b.WriteString("- Include proper type hints, docstrings, and error handling\n")
	b.WriteString("- Add __init__.py files for all packages\n")
	b.WriteString("- Create pyproject.toml (or package.json) with all dependencies\n")
	b.WriteString("- Write at least one test file with real test cases\n")
	b.WriteString("- Create a proper .gitignore\n")
	b.WriteString("- The README.md should match what the plan specified\n\n")
	b.WriteString("Write production-ready code that works out of the box after install.")
	return b.String()
}

// reviewInputs carries everything the review prompt embeds.
type reviewInputs struct {
	Objective    string
	Iteration    int
	MaxRounds    int
	Compact      string
	KeyFiles     string
	VerifyErrors string
	Validation   string
	Diff         string
	History      string
	StrategyNote string
}

// reviewPrompt asks the reviewer for an audit of the current
// workspace. Verification errors, structural findings, the diff since
// the previous round, and the round history are each optional
// sections.
func reviewPrompt(in reviewInputs) string {
	var b strings.Builder
	b.WriteString("You are a senior code reviewer performing a thorough quality audit.\n\n")
	fmt.Fprintf(&b, "OBJECTIVE: %s\n", in.Objective)
	fmt.Fprintf(&b, "Review round: %d/%d\n\n", in.Iteration, in.MaxRounds)
	fmt.Fprintf(&b, "PROJECT FILES: %s\n\n", in.Compact)

	if in.KeyFiles != "" {
		fmt.Fprintf(&b, "KEY FILE CONTENTS:\n%s\n\n", in.KeyFiles)
	}
	if in.VerifyErrors != "" {
		fmt.Fprintf(&b,
			"BUILD/TEST ERRORS (these are REAL errors from running the code):\n%s\n\n",
			head(in.VerifyErrors, promptErrorsMax))
	}
	if in.Validation != "" {
		fmt.Fprintf(&b, "%s\n\n", in.Validation)
	}
	if in.StrategyNote != "" {
		fmt.Fprintf(&b, "%s\n\n", in.StrategyNote)
	}
	if in.Diff != "" && in.Iteration > 1 {
		fmt.Fprintf(&b, "CHANGES SINCE LAST ROUND:\n%s\n\n", in.Diff)
	}
	if in.History != "" {
		fmt.Fprintf(&b, "PREVIOUS ROUNDS:\n%s\n\n", in.History)
	}

	b.WriteString("REVIEW CRITERIA (check each):\n")
	b.WriteString("1. COMPLETENESS — Does the code fully implement the objective?\n")
	b.WriteString("2. CORRECTNESS — Are there bugs, logic errors, or crashes?\n")
	b.WriteString("3. STRUCTURE — Is the code well-organized with proper separation?\n")
	b.WriteString("4. QUALITY — Type hints, docstrings, error handling present?\n")
	b.WriteString("5. TESTS — Do test files exist with meaningful test cases?\n")
	b.WriteString("6. PACKAGING — Is there pyproject.toml/package.json with deps?\n")
	b.WriteString("7. DOCS — Does README have install + usage instructions?\n\n")
	b.WriteString("RESPONSE FORMAT:\n")
	b.WriteString("If the project is COMPLETE and PRODUCTION-READY, respond:\n")
	b.WriteString("APPROVED\n")
	b.WriteString("[brief summary of what's good]\n\n")
	b.WriteString("If NOT ready, respond with:\n")
	b.WriteString("ISSUES:\n")
	b.WriteString("- [CRITICAL] file.py: description of critical bug\n")
	b.WriteString("- [MISSING] description of missing feature\n")
	b.WriteString("- [QUALITY] file.py: quality improvement needed\n\n")
	b.WriteString("List max 7 issues, prioritized by severity. Be specific with file names.")
	return b.String()
}

// fixInputs carries everything the fix prompt embeds.
type fixInputs struct {
	Objective    string
	Feedback     string
	UserFeedback string
	VerifyErrors string
	Compact      string
	Dir          string
	Iteration    int
	MaxRounds    int
}

// fixPrompt asks the coder to address the review feedback. Operator
// feedback from an interactive gate rides along as its own section so
// that truncating long review text never drops it.
func fixPrompt(in fixInputs) string {
	feedback := in.Feedback
	if len(feedback) > feedbackSoftMax {
		feedback = feedback[:feedbackKeep] + "\n\n... (truncated)"
	}

	var b strings.Builder
	b.WriteString("You are a senior software engineer fixing issues from a code review.\n\n")
	fmt.Fprintf(&b, "OBJECTIVE: %s\n\n", in.Objective)
	fmt.Fprintf(&b, "REVIEW FEEDBACK — fix ALL of these:\n%s\n\n", feedback)

	if in.UserFeedback != "" {
		fmt.Fprintf(&b, "USER FEEDBACK (address this too):\n%s\n\n", in.UserFeedback)
	}
	if in.VerifyErrors != "" {
		fmt.Fprintf(&b,
			"ACTUAL BUILD/TEST ERRORS (fix these first!):\n%s\n\n",
			head(in.VerifyErrors, promptErrorsMax))
	}

	fmt.Fprintf(&b, "CURRENT PROJECT: %s\n", in.Compact)
	fmt.Fprintf(&b, "Working directory: %s\n\n", in.Dir)
	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString("- Fix every issue listed in the review\n")
	b.WriteString("- Fix ALL build/test errors shown above\n")
	b.WriteString("- Create any missing files mentioned\n")
	b.WriteString("- Do NOT rewrite files that are already working correctly\n")
	b.WriteString("- Only modify files that have issues\n")
	b.WriteString("- After fixing, verify the project still runs/imports correctly\n\n")
	fmt.Fprintf(&b, "Fix iteration: %d/%d", in.Iteration, in.MaxRounds)
	return b.String()
}

// keyFilePriority names the files a reviewer always wants to see
// first when they exist.
var keyFilePriority = []string{
	"README.md", "pyproject.toml", "package.json", "setup.py", "requirements.txt",
}

var keySourceExts = map[string]struct{}{
	".py": {}, ".js": {}, ".ts": {}, ".go": {}, ".rs": {}, ".java": {},
}

// readKeyFiles samples workspace contents for the review prompt:
// manifest and README first, then the smallest source files, within a
// total budget. Small files are favored because they fit whole and
// tend to be the glue the reviewer needs to trace.
func readKeyFiles(dir string) string {
	var candidates []string
	seen := make(map[string]struct{})
	for _, name := range keyFilePriority {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			candidates = append(candidates, name)
			seen[name] = struct{}{}
		}
	}

	type sized struct {
		rel  string
		size int64
	}
	var sources []sized
	for _, rel := range workspace.ListFiles(dir) {
		if _, ok := seen[rel]; ok {
			continue
		}
		if _, ok := keySourceExts[strings.ToLower(filepath.Ext(rel))]; !ok {
			continue
		}
		info, err := os.Stat(filepath.Join(dir, rel))
		if err != nil {
			continue
		}
		sources = append(sources, sized{rel: rel, size: info.Size()})
	}
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].size != sources[j].size {
			return sources[i].size < sources[j].size
		}
		return sources[i].rel < sources[j].rel
	})
	for i, s := range sources {
		if i >= 10 {
			break
		}
		candidates = append(candidates, s.rel)
	}

	var blocks []string
	remaining := keyFilesTotalMax
	for _, rel := range candidates {
		if remaining <= 0 {
			break
		}
		data, err := os.ReadFile(filepath.Join(dir, rel))
		if err != nil {
			continue
		}
		budget := min(len(data), remaining, keyFileEachMax)
		snippet := string(data[:budget])
		if budget < len(data) {
			snippet += fmt.Sprintf("\n... (%d more chars)", len(data)-budget)
		}
		blocks = append(blocks, fmt.Sprintf("--- %s ---\n%s", rel, snippet))
		remaining -= budget
	}
	return strings.Join(blocks, "\n\n")
}
