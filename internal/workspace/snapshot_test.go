package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotDiffCreatedAndModified(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "one\n")
	writeFile(t, dir, "b.txt", "two\n")

	before := TakeSnapshot(dir)

	writeFile(t, dir, "a.txt", "one plus more\n")
	writeFile(t, dir, "c/new.txt", "fresh\n")

	created, modified := before.Diff(TakeSnapshot(dir))
	assert.Equal(t, []string{"c/new.txt"}, created)
	assert.Equal(t, []string{"a.txt"}, modified)
}

func TestSnapshotDiffIgnoresDeletions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "one\n")
	before := TakeSnapshot(dir)

	require.NoError(t, os.Remove(filepath.Join(dir, "a.txt")))

	created, modified := before.Diff(TakeSnapshot(dir))
	assert.Empty(t, created)
	assert.Empty(t, modified)
}

func TestSnapshotSkipsNoiseDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "node_modules/x/index.js", "x\n")

	snap := TakeSnapshot(dir)
	assert.Contains(t, snap, "main.go")
	assert.NotContains(t, snap, "node_modules/x/index.js")
}

func TestSnapshotMergeAttributesTouchedPaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "one\n")
	before := TakeSnapshot(dir)

	// b.txt appears after the snapshot; a.txt predates it. The
	// watcher reports both plus a path that no longer exists.
	writeFile(t, dir, "b.txt", "two\n")

	created, modified := before.Merge(nil, nil, []string{"a.txt", "b.txt", "gone.txt"}, dir)
	assert.Equal(t, []string{"b.txt"}, created)
	assert.Equal(t, []string{"a.txt"}, modified)
}

func TestSnapshotMergeKeepsExistingAttribution(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "one\n")
	before := TakeSnapshot(dir)

	created, modified := before.Merge([]string{"a.txt"}, nil, []string{"a.txt"}, dir)
	assert.Equal(t, []string{"a.txt"}, created)
	assert.Empty(t, modified)
}

func TestWatcherRecordsWrites(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sub/existing.txt", "x\n")

	w, err := NewWatcher(dir)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	writeFile(t, dir, "sub/touched.txt", "new\n")

	require.Eventually(t, func() bool {
		for _, p := range w.Touched() {
			if p == "sub/touched.txt" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherIgnoresSkippedDirs(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	writeFile(t, dir, "kept.txt", "x\n")
	writeFile(t, dir, ".hidden", "x\n")

	require.Eventually(t, func() bool {
		for _, p := range w.Touched() {
			if p == "kept.txt" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	assert.NotContains(t, w.Touched(), ".hidden")
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, w.Start())

	w.Stop()
	w.Stop()
}
