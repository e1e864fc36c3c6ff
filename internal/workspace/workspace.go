// Package workspace reads project state for prompt construction: file
// listings, language/framework detection, key-file excerpts, compact
// context digests, and before/after snapshots of a directory tree.
package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
)

// skipDirs are directory names excluded from all file listings, along
// with anything dot-prefixed.
var skipDirs = map[string]struct{}{
	".git":          {},
	"__pycache__":   {},
	"node_modules":  {},
	".venv":         {},
	"venv":          {},
	".tox":          {},
	".mypy_cache":   {},
	".pytest_cache": {},
	".ruff_cache":   {},
}

// skipPath reports whether a relative slash path contains a skipped or
// hidden component.
func skipPath(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if _, ok := skipDirs[part]; ok {
			return true
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// ListFiles returns the project's files as sorted slash-separated
// relative paths, excluding VCS, virtualenv, and cache directories and
// all hidden entries. A missing directory lists as empty.
func ListFiles(dir string) []string {
	var files []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if skipPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			files = append(files, rel)
		}
		return nil
	})
	sort.Strings(files)
	return files
}

// Branch returns the checked-out branch name, or "" when the directory
// is not a repository or HEAD is detached.
func Branch(dir string) string {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	if head.Name().IsBranch() {
		return head.Name().Short()
	}
	return ""
}

// gitStatusShort renders the repository's short-format status with
// deterministic path ordering, or "" for a clean tree or non-repo.
func gitStatusShort(dir string) string {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return ""
	}
	wt, err := repo.Worktree()
	if err != nil {
		return ""
	}
	status, err := wt.Status()
	if err != nil {
		return ""
	}

	paths := make([]string, 0, len(status))
	for path, st := range status {
		if st.Staging == git.Unmodified && st.Worktree == git.Unmodified {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, path := range paths {
		st := status.File(path)
		fmt.Fprintf(&b, "%c%c %s\n", st.Staging, st.Worktree, path)
	}
	return strings.TrimRight(b.String(), "\n")
}

// readTruncated returns up to max bytes of the file, or "" when it
// cannot be read.
func readTruncated(path string, max int) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if len(data) > max {
		data = data[:max]
	}
	return string(data)
}
