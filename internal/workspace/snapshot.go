package workspace

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Stamp is the change-detection fingerprint of one file.
type Stamp struct {
	Size    int64
	ModTime time.Time
}

// Snapshot fingerprints every listed file in the directory. Taken
// before and after an agentic step to attribute file changes to it.
type Snapshot map[string]Stamp

// TakeSnapshot records size and mtime for each project file.
func TakeSnapshot(dir string) Snapshot {
	snap := make(Snapshot)
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == dir {
			return nil
		}
		rel, rerr := filepath.Rel(dir, path)
		if rerr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if skipPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, ierr := d.Info()
		if ierr != nil {
			return nil
		}
		snap[rel] = Stamp{Size: info.Size(), ModTime: info.ModTime()}
		return nil
	})
	return snap
}

// Diff compares two snapshots and returns the created and modified
// paths, both sorted. A path present in before but not after is
// treated as neither (deletions are not attributed to the agent).
func (before Snapshot) Diff(after Snapshot) (created, modified []string) {
	for path, stamp := range after {
		prev, existed := before[path]
		switch {
		case !existed:
			created = append(created, path)
		case prev != stamp:
			modified = append(modified, path)
		}
	}
	sort.Strings(created)
	sort.Strings(modified)
	return created, modified
}

// Merge folds watcher-observed paths into the created/modified split:
// a touched path that exists now and predates the snapshot counts as
// modified, a new one as created. Already-attributed paths are left
// alone.
func (before Snapshot) Merge(created, modified, touched []string, dir string) (allCreated, allModified []string) {
	createdSet := toSet(created)
	modifiedSet := toSet(modified)

	for _, path := range touched {
		if _, ok := createdSet[path]; ok {
			continue
		}
		if _, ok := modifiedSet[path]; ok {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(path))); err != nil {
			continue
		}
		if _, existed := before[path]; existed {
			modifiedSet[path] = struct{}{}
		} else {
			createdSet[path] = struct{}{}
		}
	}

	return sortedKeys(createdSet), sortedKeys(modifiedSet)
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
