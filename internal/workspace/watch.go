package workspace

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher records which project files are created or written while an
// agentic subprocess runs. It is best-effort: the caller merges its
// observations with a before/after snapshot diff, so missed events
// cost nothing.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	stop    chan struct{}
	done    chan struct{}

	mu      sync.Mutex
	touched map[string]struct{}
}

// NewWatcher creates a watcher rooted at dir. Call Start to begin
// observing and Stop to release resources.
func NewWatcher(dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		dir:     dir,
		watcher: fsw,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		touched: make(map[string]struct{}),
	}, nil
}

// Start begins watching the directory tree. New subdirectories created
// during the run are added to the watch as they appear.
func (w *Watcher) Start() error {
	if err := w.addTree(w.dir); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Stop ends observation and waits for the event loop to exit.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
	<-w.done
}

// Touched returns the sorted relative paths seen created or written
// since Start.
func (w *Watcher) Touched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.touched))
	for p := range w.touched {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	rel, err := filepath.Rel(w.dir, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)
	if skipPath(rel) {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		// A new directory needs its own watch; a new file is a touch.
		if isDir(event.Name) {
			_ = w.addTree(event.Name)
			return
		}
	}

	w.mu.Lock()
	w.touched[rel] = struct{}{}
	w.mu.Unlock()
}

// addTree registers watches for dir and every non-skipped subdirectory.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.dir {
			rel, rerr := filepath.Rel(w.dir, path)
			if rerr == nil && skipPath(filepath.ToSlash(rel)) {
				return filepath.SkipDir
			}
		}
		_ = w.watcher.Add(path)
		return nil
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
