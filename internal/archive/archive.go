// Package archive keeps a local git history of exported files.
package archive

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Archive commits exported files into a git repository on local disk.
type Archive struct {
	dir    string
	author string
	email  string
	now    func() time.Time
}

// New returns an archive rooted at dir. The repository is created on the
// first Commit if it does not exist.
func New(dir string) *Archive {
	return &Archive{
		dir:    dir,
		author: "quizgen",
		email:  "quizgen@localhost",
		now:    time.Now,
	}
}

// Dir returns the repository path.
func (a *Archive) Dir() string {
	return a.dir
}

// Commit writes data to name inside the worktree and commits it.
// Writing identical content again is not an error and creates no commit.
func (a *Archive) Commit(name string, data []byte) error {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || strings.HasPrefix(name, ".git") {
		return fmt.Errorf("invalid archive file name %q", name)
	}

	repo, err := a.open()
	if err != nil {
		return err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree for archive at %s: %w", a.dir, err)
	}

	if err := os.WriteFile(filepath.Join(a.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if _, err := worktree.Add(name); err != nil {
		return fmt.Errorf("failed to stage %s: %w", name, err)
	}

	status, err := worktree.Status()
	if err != nil {
		return fmt.Errorf("failed to read archive status: %w", err)
	}
	if status.IsClean() {
		slog.Debug("Export unchanged, nothing to commit", "file", name)
		return nil
	}

	hash, err := worktree.Commit("Export "+name, &git.CommitOptions{
		Author: &object.Signature{Name: a.author, Email: a.email, When: a.now()},
	})
	if err != nil {
		return fmt.Errorf("failed to commit %s: %w", name, err)
	}
	slog.Info("Archived export", "file", name, "commit", hash.String())
	return nil
}

func (a *Archive) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(a.dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("failed to open archive at %s: %w", a.dir, err)
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory %s: %w", a.dir, err)
	}
	slog.Info("Initializing export archive", "dir", a.dir)
	repo, err = git.PlainInit(a.dir, false)
	if err != nil {
		return nil, fmt.Errorf("failed to init archive at %s: %w", a.dir, err)
	}
	return repo, nil
}
