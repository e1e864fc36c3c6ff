package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/forge/internal/logging"
)

// Commit identity used for checkpoint and finalize commits. Checkpoint
// commits must not depend on the user's git config being present.
const (
	authorName  = "forge"
	authorEmail = "forge@localhost"
)

// ErrNoCheckpoint is returned by Rollback when no checkpoint has been
// taken yet.
var ErrNoCheckpoint = errors.New("no checkpoint recorded")

// Ref identifies one taken checkpoint.
type Ref struct {
	// Label is the caller-supplied name (e.g. "round-2").
	Label string

	// Hash is the commit hash holding the snapshot.
	Hash string

	// TakenAt is when the snapshot was committed.
	TakenAt time.Time
}

// Manager snapshots one working directory into its git history.
//
// The zero policy decisions live with the caller: the Manager takes a
// snapshot when asked and restores one when asked, nothing more. It
// initializes a repository on first use when the directory has none.
type Manager struct {
	dir  string
	log  *logging.Logger
	repo *git.Repository
	last *Ref
}

// NewManager returns a manager for the given working directory.
func NewManager(dir string, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.NewNop()
	}
	return &Manager{dir: dir, log: log}
}

// EnsureRepo opens the directory's git repository, initializing one if
// none exists. Safe to call more than once.
func (m *Manager) EnsureRepo() error {
	if m.repo != nil {
		return nil
	}

	repo, err := git.PlainOpen(m.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(m.dir, false)
	}
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	m.repo = repo
	return nil
}

// Checkpoint stages the entire tree and commits it under the given
// label, returning a Ref for later rollback. An unchanged tree still
// produces a checkpoint (empty commits are allowed) so every risky
// step has a restore point.
func (m *Manager) Checkpoint(ctx context.Context, label string) (Ref, error) {
	if err := m.EnsureRepo(); err != nil {
		return Ref{}, err
	}

	wt, err := m.repo.Worktree()
	if err != nil {
		return Ref{}, fmt.Errorf("worktree: %w", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return Ref{}, fmt.Errorf("stage tree: %w", err)
	}

	hash, err := wt.Commit("forge checkpoint: "+label, &git.CommitOptions{
		Author:            m.signature(),
		AllowEmptyCommits: true,
	})
	if err != nil {
		return Ref{}, fmt.Errorf("commit checkpoint: %w", err)
	}

	ref := Ref{Label: label, Hash: hash.String(), TakenAt: time.Now()}
	m.last = &ref

	m.log.Debug(ctx, "checkpoint taken",
		zap.String("label", label),
		zap.String("hash", ref.Hash),
	)
	return ref, nil
}

// Last returns the most recent checkpoint taken by this manager.
func (m *Manager) Last() (Ref, bool) {
	if m.last == nil {
		return Ref{}, false
	}
	return *m.last, true
}

// Rollback restores the tree to the given checkpoint: hard reset to
// its commit, then removal of untracked files and directories left
// behind by the discarded iteration.
func (m *Manager) Rollback(ctx context.Context, ref Ref) error {
	if ref.Hash == "" {
		return ErrNoCheckpoint
	}
	if err := m.EnsureRepo(); err != nil {
		return err
	}

	wt, err := m.repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	if err := wt.Reset(&git.ResetOptions{
		Commit: plumbing.NewHash(ref.Hash),
		Mode:   git.HardReset,
	}); err != nil {
		return fmt.Errorf("reset to checkpoint: %w", err)
	}
	if err := wt.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return fmt.Errorf("clean untracked: %w", err)
	}

	m.log.Info(ctx, "rolled back to checkpoint",
		zap.String("label", ref.Label),
		zap.String("hash", ref.Hash),
	)
	return nil
}

// CommitAll stages and commits the whole tree with the given message,
// for the finalize step. Returns the commit hash.
func (m *Manager) CommitAll(ctx context.Context, message string) (string, error) {
	if err := m.EnsureRepo(); err != nil {
		return "", err
	}

	wt, err := m.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("worktree: %w", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("stage tree: %w", err)
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author:            m.signature(),
		AllowEmptyCommits: true,
	})
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	m.log.Info(ctx, "committed working tree", zap.String("hash", hash.String()))
	return hash.String(), nil
}

// DiffSummary renders per-file change stats between two checkpoints,
// one "path | +adds -dels" line per file. Returns "" when the two
// snapshots are identical.
func (m *Manager) DiffSummary(from, to Ref) (string, error) {
	if err := m.EnsureRepo(); err != nil {
		return "", err
	}

	fromCommit, err := m.repo.CommitObject(plumbing.NewHash(from.Hash))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", from.Label, err)
	}
	toCommit, err := m.repo.CommitObject(plumbing.NewHash(to.Hash))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", to.Label, err)
	}

	patch, err := fromCommit.Patch(toCommit)
	if err != nil {
		return "", fmt.Errorf("diff checkpoints: %w", err)
	}

	var b strings.Builder
	for _, stat := range patch.Stats() {
		fmt.Fprintf(&b, "%s | +%d -%d\n", stat.Name, stat.Addition, stat.Deletion)
	}
	return b.String(), nil
}

func (m *Manager) signature() *object.Signature {
	return &object.Signature{
		Name:  authorName,
		Email: authorEmail,
		When:  time.Now(),
	}
}
