package workspace

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Content bounds for the full-context prompt section.
const (
	fileTreeMax    = 50
	diffExcerptMax = 2000
	configFileMax  = 3000
	readmeMax      = 2000
)

var readmeNames = []string{"README.md", "README.rst", "README.txt"}

// Context is the full workspace picture fed to agents at the start of
// an iteration.
type Context struct {
	WorkingDir string
	FileTree   []string
	GitStatus  string

	// GitDiff carries "changes since the last checkpoint" when the
	// caller has one; Gather leaves it empty.
	GitDiff string

	Project  ProjectInfo
	KeyFiles map[string]string

	// keyFileOrder preserves insertion order for deterministic prompts.
	keyFileOrder []string
}

// Gather collects the full context for a working directory.
func Gather(dir string) *Context {
	files := ListFiles(dir)
	info := DetectProject(dir, files)

	ctx := &Context{
		WorkingDir: dir,
		FileTree:   files,
		GitStatus:  gitStatusShort(dir),
		Project:    info,
		KeyFiles:   make(map[string]string),
	}

	for _, cf := range info.ConfigFiles {
		ctx.addKeyFile(cf, readTruncated(filepath.Join(dir, cf), configFileMax))
	}
	if info.EntryPoint != "" {
		ctx.addKeyFile(info.EntryPoint, readTruncated(filepath.Join(dir, info.EntryPoint), configFileMax))
	}
	for _, name := range readmeNames {
		if content := readTruncated(filepath.Join(dir, name), readmeMax); content != "" {
			ctx.addKeyFile(name, content)
			break
		}
	}

	return ctx
}

func (c *Context) addKeyFile(name, content string) {
	if content == "" {
		return
	}
	if _, ok := c.KeyFiles[name]; ok {
		return
	}
	c.KeyFiles[name] = content
	c.keyFileOrder = append(c.keyFileOrder, name)
}

// PromptSection renders the context for prompt injection: working
// directory, detected stack, a bounded file tree, git state, and
// key-file excerpts.
func (c *Context) PromptSection() string {
	parts := []string{"Working directory: " + c.WorkingDir}

	if c.Project.Language != "unknown" && c.Project.Language != "" {
		info := "Language: " + c.Project.Language
		if c.Project.Framework != "" {
			info += ", Framework: " + c.Project.Framework
		}
		if c.Project.PackageManager != "" {
			info += ", Package manager: " + c.Project.PackageManager
		}
		parts = append(parts, info)
	}

	if len(c.FileTree) > 0 {
		shown := c.FileTree
		if len(shown) > fileTreeMax {
			shown = shown[:fileTreeMax]
		}
		var tree strings.Builder
		for i, f := range shown {
			if i > 0 {
				tree.WriteByte('\n')
			}
			tree.WriteString("  " + f)
		}
		parts = append(parts, fmt.Sprintf("Project files (%d total):\n%s", len(c.FileTree), tree.String()))
		if len(c.FileTree) > fileTreeMax {
			parts = append(parts, fmt.Sprintf("  ... and %d more files", len(c.FileTree)-fileTreeMax))
		}
	}

	if strings.TrimSpace(c.GitStatus) != "" {
		parts = append(parts, "Git status:\n"+c.GitStatus)
	}

	if strings.TrimSpace(c.GitDiff) != "" {
		diff := c.GitDiff
		if len(diff) > diffExcerptMax {
			diff = diff[:diffExcerptMax]
		}
		parts = append(parts, "Recent changes:\n"+diff)
		if len(c.GitDiff) > diffExcerptMax {
			parts = append(parts, fmt.Sprintf("  ... diff truncated (%d chars total)", len(c.GitDiff)))
		}
	}

	for _, name := range c.keyFileOrder {
		parts = append(parts, fmt.Sprintf("--- %s ---\n%s", name, c.KeyFiles[name]))
	}

	return strings.Join(parts, "\n\n")
}
