// Package extract parses file blocks out of agent text output.
//
// Backends without native file-write tooling answer with their files
// inlined in the response text. Parse recognizes three block formats, in
// priority order:
//
//	=== FILE: path === ... === END FILE ===
//	```path (fenced block whose info string is a path)
//	--- path ---
//
// The first format that matches anything wins; formats are never mixed
// within one response. Parsing is pure; Write materializes blocks on
// disk as a separate step.
package extract

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Instructions is prepended to prompts for backends that answer with
// inline file blocks. It pins the exact format Parse recognizes first.
const Instructions = "For EACH file you create or modify, output it in this exact format:\n\n" +
	"=== FILE: <relative/path/to/file> ===\n" +
	"<complete file contents>\n" +
	"=== END FILE ===\n\n" +
	"Output ALL files needed with complete contents.\n"

// FileBlock is one file parsed from agent output.
type FileBlock struct {
	Path    string
	Content string
}

// noiseMarkers identify transcript lines that agent CLIs interleave with
// real output. Any line containing one is dropped before parsing.
var noiseMarkers = []string{
	"Error executing tool",
	"Tool execution denied",
	"Hook registry initialized",
	"Loaded cached credentials",
	"Did you mean one of:",
}

var (
	fileHeaderRe = regexp.MustCompile(`=== FILE:[ \t]*([^\n]+?)[ \t]*===[ \t]*\n`)
	fencedRe     = regexp.MustCompile("(?s)```" + `(\S+/\S+\.\w+)\n(.*?)` + "```")
	dashHeaderRe = regexp.MustCompile(`---[ \t]*(\S+/\S+\.\w+)[ \t]*---[ \t]*\n`)
	dashDelimRe  = regexp.MustCompile(`\n---\s`)
)

// Parse extracts file blocks from raw agent output. Blocks with unsafe
// or implausible paths are dropped. Parse never touches the filesystem.
func Parse(output string) []FileBlock {
	clean := stripNoise(output)

	raw := parseMarkedBlocks(clean)
	if len(raw) == 0 {
		raw = parseFencedBlocks(clean)
	}
	if len(raw) == 0 {
		raw = parseDashBlocks(clean)
	}

	blocks := make([]FileBlock, 0, len(raw))
	for _, b := range raw {
		path := strings.TrimSpace(b.Path)
		if !SafePath(path) {
			continue
		}
		blocks = append(blocks, FileBlock{
			Path:    path,
			Content: strings.TrimRight(b.Content, "\n") + "\n",
		})
	}
	return blocks
}

// SafePath reports whether a parsed path may be written relative to a
// project root. Traversal segments and absolute paths are rejected, as
// are bare tokens with neither a separator nor an extension, which are
// almost always prose fragments rather than file names.
func SafePath(path string) bool {
	if path == "" {
		return false
	}
	if strings.Contains(path, "..") || strings.HasPrefix(path, "/") {
		return false
	}
	if !strings.Contains(path, "/") && !strings.Contains(path, ".") {
		return false
	}
	return filepath.IsLocal(filepath.FromSlash(path))
}

func stripNoise(output string) string {
	lines := strings.Split(output, "\n")
	kept := lines[:0]
	for _, line := range lines {
		noisy := false
		for _, marker := range noiseMarkers {
			if strings.Contains(line, marker) {
				noisy = true
				break
			}
		}
		if !noisy {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// parseMarkedBlocks handles the primary === FILE: === format. A block
// runs from its header to the next END marker, the next header, or the
// end of output, whichever comes first.
func parseMarkedBlocks(clean string) []FileBlock {
	headers := fileHeaderRe.FindAllStringSubmatchIndex(clean, -1)
	if len(headers) == 0 {
		return nil
	}

	blocks := make([]FileBlock, 0, len(headers))
	for _, h := range headers {
		path := clean[h[2]:h[3]]
		rest := clean[h[1]:]

		end := len(rest)
		if i := strings.Index(rest, "\n=== END FILE ==="); i >= 0 && i < end {
			end = i
		}
		if i := strings.Index(rest, "\n=== FILE:"); i >= 0 && i < end {
			end = i
		}
		blocks = append(blocks, FileBlock{Path: path, Content: rest[:end]})
	}
	return blocks
}

// parseFencedBlocks handles ```dir/file.ext fences. The info string must
// look like a path, so ordinary ```python blocks never match.
func parseFencedBlocks(clean string) []FileBlock {
	matches := fencedRe.FindAllStringSubmatch(clean, -1)
	if len(matches) == 0 {
		return nil
	}
	blocks := make([]FileBlock, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, FileBlock{Path: m[1], Content: m[2]})
	}
	return blocks
}

// parseDashBlocks handles --- path --- headers. A block runs to the next
// dashed line or the end of output.
func parseDashBlocks(clean string) []FileBlock {
	headers := dashHeaderRe.FindAllStringSubmatchIndex(clean, -1)
	if len(headers) == 0 {
		return nil
	}

	blocks := make([]FileBlock, 0, len(headers))
	for _, h := range headers {
		path := clean[h[2]:h[3]]
		rest := clean[h[1]:]

		end := len(rest)
		if loc := dashDelimRe.FindStringIndex(rest); loc != nil && loc[0] < end {
			end = loc[0]
		}
		blocks = append(blocks, FileBlock{Path: path, Content: rest[:end]})
	}
	return blocks
}
