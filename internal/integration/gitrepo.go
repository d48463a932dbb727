// Package integration wraps external systems, currently the git repository
// the engine operates in. All access goes through go-git; the engine never
// shells out.
package integration

import (
	"fmt"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// CommitInfo describes one commit for task-state recording.
type CommitInfo struct {
	SHA          string
	Message      string
	Timestamp    time.Time
	FilesChanged int
}

// GitRepo provides the repository facts the engine needs: which branch is
// checked out, what HEAD points at, and branch creation for new tasks.
type GitRepo interface {
	// CurrentBranch returns the short name of the checked-out branch, or
	// empty string when not in a git repository or in detached HEAD state.
	CurrentBranch() (string, error)

	// CreateBranch creates and checks out a new branch at HEAD.
	CreateBranch(name string) error

	// HeadCommit returns the commit HEAD points at.
	HeadCommit() (*CommitInfo, error)
}

type gitRepo struct {
	path string
}

// NewGitRepo creates a GitRepo for the repository at path. The repository
// is opened lazily on each call, so the working copy may change between
// calls (branch switches are the normal case).
func NewGitRepo(path string) GitRepo {
	return &gitRepo{path: path}
}

func (g *gitRepo) CurrentBranch() (string, error) {
	repo, err := git.PlainOpen(g.path)
	if err != nil {
		// Not a git repository: no branch, not an error.
		return "", nil
	}

	head, err := repo.Head()
	if err != nil {
		// Detached HEAD, unborn branch, bare repo.
		return "", nil
	}

	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return "", nil
}

func (g *gitRepo) CreateBranch(name string) error {
	repo, err := git.PlainOpen(g.path)
	if err != nil {
		return fmt.Errorf("opening repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
		Keep:   true,
	}); err != nil {
		return fmt.Errorf("creating branch %s: %w", name, err)
	}
	return nil
}

func (g *gitRepo) HeadCommit() (*CommitInfo, error) {
	repo, err := git.PlainOpen(g.path)
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("reading HEAD: %w", err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("reading HEAD commit: %w", err)
	}

	filesChanged := 0
	if stats, err := commit.Stats(); err == nil {
		filesChanged = len(stats)
	}

	return &CommitInfo{
		SHA:          commit.Hash.String(),
		Message:      firstLine(commit.Message),
		Timestamp:    commit.Author.When.UTC(),
		FilesChanged: filesChanged,
	}, nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
