// Package scaffold materializes starter project skeletons.
//
// A template gives the coder agent a working foundation instead of an
// empty directory: a manifest, an entry point, and a passing test. The
// orchestrator applies one automatically when the objective names a
// known stack and the target directory is empty; `forge init` applies
// one explicitly.
package scaffold

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

//go:embed all:templates
var templateFS embed.FS

// Info describes one available template.
type Info struct {
	Name        string
	Description string
}

// templates lists every built-in template in display order.
var templates = []Info{
	{"flask-api", "Flask REST API with config, routes, and tests"},
	{"fastapi", "FastAPI application with async routes and tests"},
	{"cli-tool", "Python CLI application with Click"},
	{"nextjs", "Next.js application (manual setup required)"},
	{"python-lib", "Python library with src-layout, pyproject.toml, tests"},
	{"mcp-server", "MCP server with tool definitions and httpx"},
	{"express-api", "Express.js REST API with tests"},
}

// List returns the available templates.
func List() []Info {
	return append([]Info(nil), templates...)
}

// Names returns the template names in display order.
func Names() []string {
	names := make([]string, len(templates))
	for i, t := range templates {
		names[i] = t.Name
	}
	return names
}

func known(name string) bool {
	for _, t := range templates {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Materialize writes the template's files into dir, creating parent
// directories as needed. Files that already exist are left untouched.
// Returns the relative paths actually written.
func Materialize(name, dir string) ([]string, error) {
	if !known(name) {
		return nil, fmt.Errorf("unknown template %q (available: %s)", name, strings.Join(Names(), ", "))
	}

	root := "templates/" + name
	var created []string

	err := fs.WalkDir(templateFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		rel := strings.TrimPrefix(p, root+"/")
		target := filepath.Join(dir, filepath.FromSlash(rel))
		if _, statErr := os.Stat(target); statErr == nil {
			return nil
		}

		data, readErr := fs.ReadFile(templateFS, p)
		if readErr != nil {
			return readErr
		}
		if mkErr := os.MkdirAll(filepath.Dir(target), 0o755); mkErr != nil {
			return mkErr
		}
		if writeErr := os.WriteFile(target, data, 0o644); writeErr != nil {
			return writeErr
		}

		created = append(created, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("materialize template %s: %w", name, err)
	}
	return created, nil
}

// keywordTemplates maps objective keywords to templates, most specific
// first.
var keywordTemplates = []struct {
	keywords []string
	name     string
}{
	{[]string{"mcp", "model context protocol"}, "mcp-server"},
	{[]string{"flask", "flask api"}, "flask-api"},
	{[]string{"fastapi", "fast api"}, "fastapi"},
	{[]string{"express", "node api", "node.js api"}, "express-api"},
	{[]string{"next.js", "nextjs", "next js"}, "nextjs"},
	{[]string{"cli", "command-line", "command line", "terminal tool"}, "cli-tool"},
	{[]string{"library", "package", "sdk", "pip install"}, "python-lib"},
}

// Detect picks the best template for an objective, or "" when none of
// the keywords match.
func Detect(objective string) string {
	lower := strings.ToLower(objective)

	for _, entry := range keywordTemplates {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.name
			}
		}
	}

	for _, kw := range []string{"python", "py ", ".py"} {
		if strings.Contains(lower, kw) {
			return "python-lib"
		}
	}
	for _, kw := range []string{"javascript", "node", "npm"} {
		if strings.Contains(lower, kw) {
			return "express-api"
		}
	}
	return ""
}
