package deps

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/forge/internal/logging"
)

const (
	installTimeout    = 60 * time.Second
	npmInstallTimeout = 120 * time.Second
)

// commandFunc runs one install command; swapped in tests.
type commandFunc func(ctx context.Context, dir string, timeout time.Duration, argv ...string) error

// Resolver installs missing packages into one working directory.
type Resolver struct {
	dir string
	log *logging.Logger
	run commandFunc
}

// NewResolver returns a Resolver for dir. A nil logger disables logging.
func NewResolver(dir string, log *logging.Logger) *Resolver {
	if log == nil {
		log = logging.NewNop()
	}
	return &Resolver{dir: dir, log: log, run: runCommand}
}

// Resolve extracts missing modules from error text and installs them
// with the project's package manager. Returns the packages that
// installed cleanly; failures are logged and skipped, never fatal.
func (r *Resolver) Resolve(ctx context.Context, errorText string) []string {
	modules := MissingModules(errorText)
	if len(modules) == 0 {
		return nil
	}

	isPython := r.anyExists("pyproject.toml", "setup.py", "requirements.txt") || r.hasTopLevelPython()
	isNode := r.anyExists("package.json")

	var installed []string
	for _, module := range modules {
		pkg := packageFor(module)

		var err error
		switch {
		case isPython:
			err = r.run(ctx, r.dir, installTimeout, "pip", "install", pkg, "-q")
		case isNode:
			err = r.run(ctx, r.dir, installTimeout, "npm", "install", pkg, "--save")
		default:
			continue
		}

		if err != nil {
			r.log.Debug(ctx, "dependency install failed", zap.String("package", pkg), zap.Error(err))
			continue
		}
		installed = append(installed, pkg)
	}
	return installed
}

// InstallManifest installs the project's declared dependencies: pip for
// requirements.txt, npm when package.json exists without node_modules.
// Returns the manifests that installed cleanly.
func (r *Resolver) InstallManifest(ctx context.Context) []string {
	var done []string

	if r.anyExists("requirements.txt") {
		err := r.run(ctx, r.dir, installTimeout, "pip", "install", "-r", "requirements.txt", "-q")
		if err != nil {
			err = r.run(ctx, r.dir, installTimeout, "python3", "-m", "pip", "install", "-r", "requirements.txt", "-q")
		}
		if err != nil {
			r.log.Debug(ctx, "pip install failed", zap.Error(err))
		} else {
			done = append(done, "requirements.txt")
		}
	}

	if r.anyExists("package.json") && !r.anyExists("node_modules") {
		if err := r.run(ctx, r.dir, npmInstallTimeout, "npm", "install"); err != nil {
			r.log.Debug(ctx, "npm install failed", zap.Error(err))
		} else {
			done = append(done, "package.json")
		}
	}

	return done
}

func (r *Resolver) anyExists(names ...string) bool {
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(r.dir, name)); err == nil {
			return true
		}
	}
	return false
}

func (r *Resolver) hasTopLevelPython() bool {
	matches, err := filepath.Glob(filepath.Join(r.dir, "*.py"))
	return err == nil && len(matches) > 0
}

func runCommand(ctx context.Context, dir string, timeout time.Duration, argv ...string) error {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	cmd.WaitDelay = 5 * time.Second
	return cmd.Run()
}
