package memory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAddAndRetrieve(t *testing.T) {
	dir := t.TempDir()
	store := OpenStore(dir)

	err := store.Add("Flask apps need flask>=3.0", CategorySuccess, "flask api rest", "claude-sonnet", 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Count())

	relevant := store.Relevant("build a flask rest api", 0)
	require.NotEmpty(t, relevant)
	assert.Equal(t, "Flask apps need flask>=3.0", relevant[0].Pattern)
}

func TestStorePersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()

	first := OpenStore(dir)
	require.NoError(t, first.Add("Use pytest", CategoryStrategy, "testing", "claude-sonnet", 0.5))

	second := OpenStore(dir)
	assert.Equal(t, 1, second.Count())

	relevant := second.Relevant("run tests", 0)
	require.NotEmpty(t, relevant)
	assert.Equal(t, "Use pytest", relevant[0].Pattern)
}

func TestStoreDeduplicatesByPattern(t *testing.T) {
	store := OpenStore(t.TempDir())

	require.NoError(t, store.Add("Tip A", CategoryStrategy, "hint", "claude-sonnet", 0.5))
	require.NoError(t, store.Add("Tip A", CategoryStrategy, "hint", "claude-sonnet", 0.5))

	assert.Equal(t, 1, store.Count())

	relevant := store.Relevant("hint", 0)
	require.NotEmpty(t, relevant)
	assert.Greater(t, relevant[0].Confidence, 0.5, "repeat observation bumps confidence")
	assert.Equal(t, 1, relevant[0].Uses)
}

func TestStoreConfidenceCappedAtOne(t *testing.T) {
	store := OpenStore(t.TempDir())

	for i := 0; i < 10; i++ {
		require.NoError(t, store.Add("Tip A", CategoryStrategy, "hint", "claude-sonnet", 0.9))
	}

	relevant := store.Relevant("hint", 0)
	require.NotEmpty(t, relevant)
	assert.LessOrEqual(t, relevant[0].Confidence, 1.0)
	assert.Equal(t, 9, relevant[0].Uses)
}

func TestStoreRejectsEmptyPattern(t *testing.T) {
	store := OpenStore(t.TempDir())

	assert.Error(t, store.Add("   ", CategoryStrategy, "hint", "claude-sonnet", 0.5))
	assert.Equal(t, 0, store.Count())
}

func TestRelevantRanksKeywordOverlapFirst(t *testing.T) {
	store := OpenStore(t.TempDir())
	require.NoError(t, store.Add("Pin the Flask version", CategorySuccess, "flask api", "claude-sonnet", 0.3))
	require.NoError(t, store.Add("Prefer table-driven tests", CategoryStrategy, "go testing", "gemini", 0.9))

	relevant := store.Relevant("build a flask json api", 0)
	require.Len(t, relevant, 2)
	assert.Equal(t, "Pin the Flask version", relevant[0].Pattern,
		"objective overlap outranks raw confidence")
}

func TestRelevantHonorsLimit(t *testing.T) {
	store := OpenStore(t.TempDir())
	require.NoError(t, store.Add("A", CategoryStrategy, "x", "claude-sonnet", 0.5))
	require.NoError(t, store.Add("B", CategoryStrategy, "y", "claude-sonnet", 0.5))
	require.NoError(t, store.Add("C", CategoryStrategy, "z", "claude-sonnet", 0.5))

	assert.Len(t, store.Relevant("anything", 2), 2)
}

func TestPromptSectionListsLearnings(t *testing.T) {
	store := OpenStore(t.TempDir())
	require.NoError(t, store.Add("Flask tip", CategorySuccess, "flask api", "claude-sonnet", 0.5))

	section := store.PromptSection("build a flask api")
	assert.Contains(t, section, "LEARNINGS")
	assert.Contains(t, section, "Flask tip")
	assert.Contains(t, section, "[success]")
}

func TestPromptSectionEmptyStore(t *testing.T) {
	assert.Empty(t, OpenStore(t.TempDir()).PromptSection("anything"))
}

func TestOpenStoreCorruptSidecar(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, LearningsFilename), []byte("{not json"), 0o644))

	store := OpenStore(dir)
	assert.Equal(t, 0, store.Count())
}

func TestOpenStoreVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	stale := `{"version": 99, "learnings": [{"pattern": "old", "category": "strategy"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, LearningsFilename), []byte(stale), 0o644))

	store := OpenStore(dir)
	assert.Equal(t, 0, store.Count(), "version mismatch discards stored entries")
}

func TestStoreSidecarWrittenOnAdd(t *testing.T) {
	dir := t.TempDir()
	store := OpenStore(dir)
	require.NoError(t, store.Add("Tip", CategoryStrategy, "hint", "claude-sonnet", 0.5))

	data, err := os.ReadFile(filepath.Join(dir, LearningsFilename))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": 1`)
	assert.Contains(t, string(data), `"pattern": "Tip"`)
}

func TestKeywordsDropShortWords(t *testing.T) {
	words := keywords("Go to a REST API!")
	assert.Contains(t, words, "rest")
	assert.Contains(t, words, "api")
	assert.NotContains(t, words, "go")
	assert.NotContains(t, words, "to")
}
