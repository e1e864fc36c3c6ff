// Package verify infers and runs build, lint, and test commands for a
// generated project.
//
// A command suite is detected from project markers, refined by declared
// dependencies (pytest, ruff, package.json scripts), and run through the
// shell with per-command timeouts. Results carry a human-readable
// transcript plus an error blob sized for reinjection into review and
// fix prompts.
package verify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/forge/internal/workspace"
)

// Suite is the set of verification commands for one project type.
type Suite struct {
	TestCommands  []string
	LintCommands  []string
	BuildCommands []string

	// SyntaxCheck is a cheap parse-only pre-check run before the full
	// suite. Empty when the language has none. Failures surface in the
	// error blob but infrastructure problems running the check itself
	// (missing interpreter, timeout) are soft.
	SyntaxCheck string
}

// AllCommands returns every command in execution order: syntax check,
// build, lint, then tests.
func (s Suite) AllCommands() []string {
	var cmds []string
	if s.SyntaxCheck != "" {
		cmds = append(cmds, s.SyntaxCheck)
	}
	cmds = append(cmds, s.BuildCommands...)
	cmds = append(cmds, s.LintCommands...)
	cmds = append(cmds, s.TestCommands...)
	return cmds
}

// HasCommands reports whether the suite would run anything.
func (s Suite) HasCommands() bool {
	return len(s.AllCommands()) > 0
}

var languageSuites = map[string]Suite{
	"python": {
		SyntaxCheck:  `python3 -m py_compile $(find . -name '*.py' -not -path './.venv/*' -not -path './venv/*' | head -20) 2>&1 || true`,
		TestCommands: []string{`python3 -m pytest -x --tb=short 2>&1 || python3 -m unittest discover -s . -p 'test_*.py' 2>&1`},
	},
	"javascript": {
		SyntaxCheck:   `node --check $(find . -name '*.js' -not -path './node_modules/*' | head -10) 2>&1 || true`,
		TestCommands:  []string{`npm test 2>&1 || true`},
		BuildCommands: []string{`npm run build 2>&1 || true`},
	},
	"typescript": {
		TestCommands:  []string{`npm test 2>&1 || true`},
		BuildCommands: []string{`npx tsc --noEmit 2>&1 || npm run build 2>&1 || true`},
	},
	"go": {
		BuildCommands: []string{`go build ./... 2>&1`},
		TestCommands:  []string{`go test ./... 2>&1`},
		LintCommands:  []string{`go vet ./... 2>&1`},
	},
	"rust": {
		BuildCommands: []string{`cargo build 2>&1`},
		TestCommands:  []string{`cargo test 2>&1`},
		LintCommands:  []string{`cargo clippy 2>&1 || true`},
	},
}

const astParseCommand = `python3 -c "import ast; import sys; [ast.parse(open(f).read()) for f in sys.argv[1:]]" ` +
	`$(find . -name '*.py' -not -path './.venv/*' -not -path './venv/*' | head -20)`

// Detect infers the verification suite for the project in dir.
//
// Projects with no recognizable language fall back to a bare file
// existence check so verification still produces a signal.
func Detect(dir string) Suite {
	files := workspace.ListFiles(dir)
	info := workspace.DetectProject(dir, files)

	base, ok := languageSuites[info.Language]
	if !ok {
		return Suite{TestCommands: []string{fileCheckCommand(files)}}
	}
	return refine(base, dir, info.Language, files)
}

// refine adjusts the base suite to the specific project: python projects
// without a test setup get a parse-only check, declared linters are
// enabled, and node scripts that do not exist are not invoked.
func refine(base Suite, dir, language string, files []string) Suite {
	suite := Suite{
		TestCommands:  append([]string(nil), base.TestCommands...),
		LintCommands:  append([]string(nil), base.LintCommands...),
		BuildCommands: append([]string(nil), base.BuildCommands...),
		SyntaxCheck:   base.SyntaxCheck,
	}

	switch language {
	case "python":
		hasTests := false
		for _, f := range files {
			if strings.Contains(strings.ToLower(f), "test") {
				hasTests = true
				break
			}
		}
		if !depFileContains(dir, "pytest") && !hasTests {
			suite.TestCommands = []string{astParseCommand}
		}
		if depFileContains(dir, "ruff") {
			suite.LintCommands = []string{`python3 -m ruff check . 2>&1 || true`}
		}
		if depFileContains(dir, "mypy") {
			suite.LintCommands = append(suite.LintCommands, `python3 -m mypy . 2>&1 || true`)
		}

	case "javascript", "typescript":
		scripts, err := packageScripts(dir)
		if err != nil {
			break
		}
		if _, ok := scripts["test"]; !ok {
			suite.TestCommands = nil
		}
		if _, ok := scripts["build"]; !ok {
			suite.BuildCommands = nil
		}
	}

	return suite
}

// depFileContains reports whether any dependency manifest mentions the
// package.
func depFileContains(dir, pkg string) bool {
	for _, name := range []string{"requirements.txt", "pyproject.toml", "Pipfile", "package.json"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(string(data)), pkg) {
			return true
		}
	}
	return false
}

func packageScripts(dir string) (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, err
	}
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	return pkg.Scripts, nil
}

func fileCheckCommand(files []string) string {
	if len(files) == 0 {
		return `test -f *.* 2>&1 || echo 'No files found'`
	}
	first := files[0]
	return fmt.Sprintf("test -f '%s' && echo 'OK: %s exists'", first, first)
}
