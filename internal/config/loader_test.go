package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
global:
  timeout: 300s
  max_parallel: 2
build:
  max_rounds: 7
  auto_commit: true
agents:
  gemini:
    enabled: true
    kind: gemini
    model: gemini-2.5-pro
`)

	cfg, err := Load(path, dir)
	require.NoError(t, err)

	assert.Equal(t, 300*time.Second, cfg.Global.Timeout.Duration())
	assert.Equal(t, 2, cfg.Global.MaxParallel)
	assert.Equal(t, 7, cfg.Build.MaxRounds)
	assert.True(t, cfg.Build.AutoCommit)
	assert.Equal(t, "gemini-2.5-pro", cfg.Agents["gemini"].Model)
	// Defaults still fill in the gaps.
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.True(t, cfg.Agents["claude-sonnet"].Enabled)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, FileName), dir)
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, cfg.Global.Timeout.Duration())
	assert.Equal(t, 10, cfg.Build.MaxRounds)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
global:
  max_parallel: 2
logging:
  level: info
`)

	t.Setenv("FORGE_GLOBAL_MAX_PARALLEL", "9")
	t.Setenv("FORGE_LOGGING_LEVEL", "debug")

	cfg, err := Load(path, dir)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Global.MaxParallel)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "global: [not: a: mapping")

	_, err := Load(path, dir)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
logging:
  format: xml
`)

	_, err := Load(path, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestFindFileWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "global:\n  max_parallel: 3\n")

	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0755))

	found := FindFile(nested)
	assert.Equal(t, filepath.Join(root, FileName), found)
}

func TestFindFileMissing(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	assert.Equal(t, "", FindFile(dir))
}
