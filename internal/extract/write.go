package extract

import (
	"os"
	"path/filepath"
)

// Write materializes blocks beneath root, creating parent directories as
// needed. Paths are re-validated here so a hand-built block can never
// escape the root. Returns the relative paths written, in block order.
func Write(root string, blocks []FileBlock) ([]string, error) {
	written := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if !SafePath(b.Path) {
			continue
		}
		dest := filepath.Join(root, filepath.FromSlash(b.Path))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return written, err
		}
		if err := os.WriteFile(dest, []byte(b.Content), 0o644); err != nil {
			return written, err
		}
		written = append(written, b.Path)
	}
	return written, nil
}

// Apply parses output and writes whatever it finds under root. It is the
// one-call path used after a prompt-and-extract dispatch.
func Apply(root, output string) ([]string, error) {
	return Write(root, Parse(output))
}
