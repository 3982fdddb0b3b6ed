package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestInsertOrUpdateNonFinalRaisesToMax(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "cache"), 0)
	now := time.Unix(1000, 0)

	s.InsertOrUpdate("src/a.cpp", 100, false, now)
	s.InsertOrUpdate("src/a.cpp", 50, false, now)
	_, peak, _, ok := s.Lookup("src/a.cpp")
	if !ok {
		t.Fatalf("expected entry")
	}
	if peak != 100 {
		t.Fatalf("expected peak to stay at max 100, got %d", peak)
	}

	s.InsertOrUpdate("src/a.cpp", 150, false, now)
	_, peak, _, _ = s.Lookup("src/a.cpp")
	if peak != 150 {
		t.Fatalf("expected peak to rise to 150, got %d", peak)
	}
}

func TestInsertOrUpdateFinalDecaysByDenominator(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "cache"), 3)
	now := time.Unix(1000, 0)

	s.InsertOrUpdate("src/d.cpp", 900, false, now)
	s.InsertOrUpdate("src/d.cpp", 600, true, now)

	_, peak, _, _ := s.Lookup("src/d.cpp")
	if peak != 800 {
		t.Fatalf("expected decayed peak 800, got %d", peak)
	}
}

func TestInsertOrUpdateFinalWithHigherObservedRaises(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "cache"), 3)
	now := time.Unix(1000, 0)

	s.InsertOrUpdate("src/d.cpp", 900, false, now)
	s.InsertOrUpdate("src/d.cpp", 950, true, now)

	_, peak, _, _ := s.Lookup("src/d.cpp")
	if peak != 950 {
		t.Fatalf("expected peak to rise to 950 when final observation is higher, got %d", peak)
	}
}

func TestLookupMiss(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "cache"), 0)
	if _, _, _, ok := s.Lookup("nope"); ok {
		t.Fatalf("expected miss")
	}
}

func TestIndexStableAcrossInserts(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "cache"), 0)
	now := time.Unix(1000, 0)

	i1 := s.InsertOrUpdate("src/a.cpp", 10, false, now)
	s.InsertOrUpdate("src/b.cpp", 20, false, now)
	i1Again := s.InsertOrUpdate("src/a.cpp", 30, false, now)

	if i1 != i1Again {
		t.Fatalf("expected stable index, got %d then %d", i1, i1Again)
	}
}

func TestFlushIfDirtyWritesAndRateLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")
	s := New(path, 0)
	now := time.Unix(1000, 0)

	s.InsertOrUpdate("src/a.cpp", 42, false, now)
	if err := s.FlushIfDirty(now); err != nil {
		t.Fatalf("flush: %s", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cache: %s", err)
	}
	want := "42 1000 - src/a.cpp\n"
	if string(data) != want {
		t.Fatalf("expected %q, got %q", want, string(data))
	}

	// A second write within the interval, even if dirty, must not flush.
	s.InsertOrUpdate("src/b.cpp", 7, false, now.Add(time.Second))
	if err := s.FlushIfDirty(now.Add(time.Second)); err != nil {
		t.Fatalf("flush: %s", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != want {
		t.Fatalf("expected no rewrite within rate limit, got %q", string(data))
	}

	// Past the interval, the next flush picks up everything accumulated.
	if err := s.FlushIfDirty(now.Add(11 * time.Second)); err != nil {
		t.Fatalf("flush: %s", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "42 1000 - src/a.cpp\n7 1001 - src/b.cpp\n" {
		t.Fatalf("unexpected cache contents: %q", string(data))
	}
}

func TestFlushIfDirtyNoopWhenClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")
	s := New(path, 0)
	if err := s.FlushIfDirty(time.Unix(1000, 0)); err != nil {
		t.Fatalf("flush: %s", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no file written when store is clean")
	}
}

func TestLoadSkipsUnparseableLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")
	contents := "42 1000 - src/a.cpp\nnot a real line\n17 2000 abc1234 src/b.cpp\n"
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write fixture: %s", err)
	}

	s := New(path, 0)
	if err := s.Load(); err != nil {
		t.Fatalf("load: %s", err)
	}

	_, peak, lastUsed, ok := s.Lookup("src/a.cpp")
	if !ok || peak != 42 || lastUsed != 1000 {
		t.Fatalf("unexpected src/a.cpp entry: peak=%d lastUsed=%d ok=%v", peak, lastUsed, ok)
	}
	_, peak, _, ok = s.Lookup("src/b.cpp")
	if !ok || peak != 17 {
		t.Fatalf("unexpected src/b.cpp entry: peak=%d ok=%v", peak, ok)
	}

	entries := s.Entries()
	var aCommit, bCommit string
	for _, e := range entries {
		switch e.Path {
		case "src/a.cpp":
			aCommit = e.CommitHash
		case "src/b.cpp":
			bCommit = e.CommitHash
		}
	}
	if aCommit != "" {
		t.Fatalf("expected src/a.cpp to have no commit hash, got %q", aCommit)
	}
	if bCommit != "abc1234" {
		t.Fatalf("expected src/b.cpp commit hash abc1234, got %q", bCommit)
	}
}

func TestInsertOrUpdateStampsCommitHashOnlyOnCreate(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "cache"), 0)
	s.RepoDir = t.TempDir() // not a git repo: HeadCommit fails, commit stays empty
	now := time.Unix(1000, 0)

	s.InsertOrUpdate("src/a.cpp", 10, false, now)
	entries := s.Entries()
	if len(entries) != 1 || entries[0].CommitHash != "" {
		t.Fatalf("expected a freshly created entry with no resolvable commit to have empty CommitHash, got %+v", entries)
	}

	s.InsertOrUpdate("src/a.cpp", 20, false, now)
	entries = s.Entries()
	if len(entries) != 1 || entries[0].CommitHash != "" {
		t.Fatalf("expected CommitHash to remain untouched on update, got %+v", entries)
	}
}

func TestCacheLineRoundTripsCommitHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")
	s := New(path, 0)
	now := time.Unix(1000, 0)

	s.InsertOrUpdate("src/a.cpp", 42, false, now)
	s.entries[0].CommitHash = "deadbeef"
	s.dirty = true

	if err := s.Flush(now); err != nil {
		t.Fatalf("flush: %s", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cache: %s", err)
	}
	want := "42 1000 deadbeef src/a.cpp\n"
	if string(data) != want {
		t.Fatalf("expected %q, got %q", want, string(data))
	}

	reloaded := New(path, 0)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("load: %s", err)
	}
	_, peak, _, ok := reloaded.Lookup("src/a.cpp")
	if !ok || peak != 42 {
		t.Fatalf("unexpected reloaded entry: peak=%d ok=%v", peak, ok)
	}
	entries := reloaded.Entries()
	if len(entries) != 1 || entries[0].CommitHash != "deadbeef" {
		t.Fatalf("expected reloaded entry to carry commit hash deadbeef, got %+v", entries)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "does-not-exist"), 0)
	if err := s.Load(); err != nil {
		t.Fatalf("expected no error loading a missing cache, got %s", err)
	}
}
