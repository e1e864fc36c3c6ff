package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListTemplates(t *testing.T) {
	infos := List()

	require.Len(t, infos, 7)
	require.Equal(t, "flask-api", infos[0].Name)
	require.Equal(t, "express-api", infos[6].Name)
	for _, info := range infos {
		require.NotEmpty(t, info.Description, info.Name)
	}
}

func TestMaterializeFlaskAPI(t *testing.T) {
	dir := t.TempDir()

	created, err := Materialize("flask-api", dir)
	require.NoError(t, err)

	require.ElementsMatch(t, []string{
		".gitignore", "app.py", "requirements.txt",
		"tests/__init__.py", "tests/test_app.py",
	}, created)

	app, err := os.ReadFile(filepath.Join(dir, "app.py"))
	require.NoError(t, err)
	require.Contains(t, string(app), "def create_app():")

	reqs, err := os.ReadFile(filepath.Join(dir, "requirements.txt"))
	require.NoError(t, err)
	require.Contains(t, string(reqs), "flask>=3.0")
}

func TestMaterializeNestedLayout(t *testing.T) {
	dir := t.TempDir()

	created, err := Materialize("python-lib", dir)
	require.NoError(t, err)

	require.Contains(t, created, "src/mylib/core.py")
	require.FileExists(t, filepath.Join(dir, "src", "mylib", "core.py"))
	require.FileExists(t, filepath.Join(dir, "pyproject.toml"))
}

func TestMaterializeSkipsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	custom := []byte("# my own app\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), custom, 0o644))

	created, err := Materialize("flask-api", dir)
	require.NoError(t, err)

	require.NotContains(t, created, "app.py")
	require.Contains(t, created, "requirements.txt")

	kept, err := os.ReadFile(filepath.Join(dir, "app.py"))
	require.NoError(t, err)
	require.Equal(t, custom, kept)
}

func TestMaterializeUnknownTemplate(t *testing.T) {
	_, err := Materialize("rails", t.TempDir())

	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown template "rails"`)
	require.Contains(t, err.Error(), "flask-api")
}

func TestDetect(t *testing.T) {
	cases := []struct {
		objective string
		want      string
	}{
		{"Build a Flask API for managing todos", "flask-api"},
		{"An MCP server exposing weather tools", "mcp-server"},
		{"Create a FastAPI backend", "fastapi"},
		{"REST service with Express", "express-api"},
		{"A nextjs dashboard", "nextjs"},
		{"A cli that converts CSV to JSON", "cli-tool"},
		{"A library for parsing config files", "python-lib"},
		{"Write a python script that scrapes pages", "python-lib"},
		{"A node service that resizes images", "express-api"},
		{"Model Context Protocol bridge for GitHub", "mcp-server"},
		{"command-line utility for renaming photos", "cli-tool"},
		{"Reverse a linked list", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Detect(tc.objective), tc.objective)
	}
}

func TestDetectPrecedence(t *testing.T) {
	// Flask outranks the cli keyword: ordering is most specific first.
	require.Equal(t, "flask-api", Detect("a flask cli hybrid"))
	// mcp outranks everything else.
	require.Equal(t, "mcp-server", Detect("mcp server with express transport"))
}
