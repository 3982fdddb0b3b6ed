package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func TestHeadCommitReadsShortHash(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init repo: %s", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.cpp"), []byte("int main() {}"), 0644); err != nil {
		t.Fatalf("write fixture file: %s", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %s", err)
	}
	if _, err := wt.Add("a.cpp"); err != nil {
		t.Fatalf("add: %s", err)
	}
	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(1700000000, 0)}
	hash, err := wt.Commit("initial", &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		t.Fatalf("commit: %s", err)
	}

	commit, ok := HeadCommit(dir)
	if !ok {
		t.Fatalf("expected ok")
	}
	want := hash.String()
	if len(want) > 12 {
		want = want[:12]
	}
	if commit != want {
		t.Fatalf("expected %q, got %q", want, commit)
	}
}

func TestHeadCommitNotOkOutsideRepo(t *testing.T) {
	if _, ok := HeadCommit(t.TempDir()); ok {
		t.Fatalf("expected not-ok outside a git repository")
	}
}
