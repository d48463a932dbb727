package integration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// initRepo creates a repository with one commit on master.
func initRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# repo\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("README.md"); err != nil {
		t.Fatal(err)
	}
	hash, err := wt.Commit("feat: initial commit\n\nbody text", &git.CommitOptions{
		Author: &object.Signature{Name: "dev", Email: "dev@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return dir, hash.String()
}

func TestCurrentBranch(t *testing.T) {
	dir, _ := initRepo(t)
	g := NewGitRepo(dir)

	branch, err := g.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "master" {
		t.Errorf("branch = %q, want master", branch)
	}
}

func TestCurrentBranchOutsideRepo(t *testing.T) {
	g := NewGitRepo(t.TempDir())

	branch, err := g.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "" {
		t.Errorf("branch = %q, want empty outside a repository", branch)
	}
}

func TestCreateBranch(t *testing.T) {
	dir, _ := initRepo(t)
	g := NewGitRepo(dir)

	if err := g.CreateBranch("feat/TASK-001-login-US-1"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	branch, err := g.CurrentBranch()
	if err != nil {
		t.Fatal(err)
	}
	if branch != "feat/TASK-001-login-US-1" {
		t.Errorf("branch = %q", branch)
	}

	if err := g.CreateBranch("feat/TASK-001-login-US-1"); err == nil {
		t.Error("creating an existing branch should fail")
	}
}

func TestHeadCommit(t *testing.T) {
	dir, sha := initRepo(t)
	g := NewGitRepo(dir)

	commit, err := g.HeadCommit()
	if err != nil {
		t.Fatalf("HeadCommit: %v", err)
	}
	if commit.SHA != sha {
		t.Errorf("SHA = %q, want %q", commit.SHA, sha)
	}
	if commit.Message != "feat: initial commit" {
		t.Errorf("Message = %q, want subject line only", commit.Message)
	}
	if commit.FilesChanged != 1 {
		t.Errorf("FilesChanged = %d, want 1", commit.FilesChanged)
	}
}

func TestHeadCommitOutsideRepo(t *testing.T) {
	g := NewGitRepo(t.TempDir())

	if _, err := g.HeadCommit(); err == nil {
		t.Error("expected error outside a repository")
	}
}
