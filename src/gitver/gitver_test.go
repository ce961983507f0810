package gitver

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// initRepo creates a repository with one commit and returns its path and
// the full commit hash.
func initRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("harness\n"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	if _, err := wt.Add("README.md"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	sig := &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()}
	hash, err := wt.Commit("initial", &git.CommitOptions{Author: sig})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return dir, hash.String()
}

func TestDetect_CleanCheckout(t *testing.T) {
	dir, hash := initRepo(t)

	id, err := Detect(dir)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if id.SHA != hash[:7] {
		t.Fatalf("SHA = %q, want %q", id.SHA, hash[:7])
	}
	if id.Dirty {
		t.Fatalf("fresh commit reported dirty")
	}
	if got := id.LocalVersion(); got != "-kf-"+hash[:7] {
		t.Fatalf("LocalVersion = %q", got)
	}
}

func TestDetect_DirtyWorktree(t *testing.T) {
	dir, hash := initRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "scratch.txt"), []byte("wip\n"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	id, err := Detect(dir)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !id.Dirty {
		t.Fatalf("untracked file not reported dirty")
	}
	want := "-kf-" + hash[:7] + "-dirty"
	if got := id.LocalVersion(); got != want {
		t.Fatalf("LocalVersion = %q, want %q", got, want)
	}
}

func TestDetect_FromSubdirectory(t *testing.T) {
	dir, _ := initRepo(t)
	sub := filepath.Join(dir, "configs", "x86_64")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if _, err := Detect(sub); err != nil {
		t.Fatalf("Detect from subdirectory: %v", err)
	}
}

func TestResolveCommit(t *testing.T) {
	dir, hash := initRepo(t)
	got, err := ResolveCommit(dir, "HEAD")
	if err != nil {
		t.Fatalf("ResolveCommit: %v", err)
	}
	if got != hash {
		t.Fatalf("ResolveCommit = %q, want %q", got, hash)
	}
}

func TestDetect_NotARepository(t *testing.T) {
	if _, err := Detect(t.TempDir()); err == nil {
		t.Fatalf("expected error outside a repository")
	}
}
