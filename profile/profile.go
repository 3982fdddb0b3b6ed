// Package profile implements the Profile Store: an in-memory table of
// per-source-file peak memory observations, backed by a flat line-oriented
// text file so peaks learned in one build inform admission decisions in the
// next.
package profile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultCacheFileName is the on-disk cache name, written in the current
	// working directory of the top-level process.
	DefaultCacheFileName = ".make_memory_cache"
	// initialCapacity is the starting size of the backing array. It doubles
	// on overflow; entries are never moved or removed once inserted.
	initialCapacity = 1000
	// flushInterval rate-limits on-disk writes regardless of how often the
	// dirty flag is set.
	flushInterval = 10 * time.Second
	// DefaultDecayDenominator is the divisor applied to the gap between a
	// stored peak and a lower final observation. Kept configurable since
	// one-third is a heuristic, not a derived constant.
	DefaultDecayDenominator = 3
)

// Entry is one profile: a source path's learned peak memory and when it was
// last touched. Index in the Store's backing array is stable for the
// lifetime of the process once assigned. CommitHash is the working tree's
// HEAD commit at the time the entry was first created, for tracing a
// learned peak back to the source revision it was observed on; it is
// empty when no repository could be resolved.
type Entry struct {
	Path       string
	PeakMiB    uint32
	LastUsed   int64 // unix seconds
	CommitHash string
}

// Store is the Profile Store. It is safe for concurrent use; the monitor
// loop is its only writer but classify-triggered lookups may happen from
// other goroutines in a future caller.
type Store struct {
	mu sync.Mutex

	entries []Entry
	index   map[string]int

	path             string
	decayDenominator int

	// RepoDir is the working tree InsertOrUpdate reads HEAD from when
	// stamping a newly created entry's CommitHash. Empty means ".", the
	// process's own working directory.
	RepoDir string

	dirty     bool
	lastFlush time.Time
}

// New returns an empty Store that will persist to path. decayDenominator
// must be at least 1; a value of 0 or less is replaced with
// DefaultDecayDenominator.
func New(path string, decayDenominator int) *Store {
	if decayDenominator <= 0 {
		decayDenominator = DefaultDecayDenominator
	}
	return &Store{
		entries:          make([]Entry, 0, initialCapacity),
		index:            make(map[string]int, initialCapacity),
		path:             path,
		decayDenominator: decayDenominator,
	}
}

func (s *Store) repoDirOrDefault() string {
	if s.RepoDir == "" {
		return "."
	}
	return s.RepoDir
}

// Lookup returns the entry for path, if one exists.
func (s *Store) Lookup(path string) (index int, peakMiB uint32, lastUsed int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[path]
	if !ok {
		return 0, 0, 0, false
	}
	e := s.entries[i]
	return i, e.PeakMiB, e.LastUsed, true
}

// InsertOrUpdate creates or mutates the entry for path. With final=false the
// stored peak rises to max(stored, observed). With final=true and
// observed >= stored, the stored peak rises to observed, same as a
// non-final update. With final=true and observed < stored, the stored peak
// decays toward observed by (stored-observed)/decayDenominator, a gentle
// pull toward realism instead of an outright overwrite, so a single low run
// doesn't erase history. In all cases last_used is set to now, and the
// dirty flag is set whenever the peak actually changes (not just on every
// call).
func (s *Store) InsertOrUpdate(path string, observedPeakMiB uint32, final bool, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowSec := now.Unix()

	i, ok := s.index[path]
	if !ok {
		i = len(s.entries)
		commit, _ := HeadCommit(s.repoDirOrDefault())
		s.entries = append(s.entries, Entry{
			Path:       path,
			PeakMiB:    observedPeakMiB,
			LastUsed:   nowSec,
			CommitHash: commit,
		})
		s.index[path] = i
		s.dirty = true
		return i
	}

	e := &s.entries[i]
	changed := false
	if final {
		if observedPeakMiB < e.PeakMiB {
			gap := e.PeakMiB - observedPeakMiB
			e.PeakMiB = e.PeakMiB - gap/uint32(s.decayDenominator)
			changed = true
		} else if observedPeakMiB > e.PeakMiB {
			e.PeakMiB = observedPeakMiB
			changed = true
		}
	} else if observedPeakMiB > e.PeakMiB {
		e.PeakMiB = observedPeakMiB
		changed = true
	}
	e.LastUsed = nowSec
	if changed {
		s.dirty = true
	}
	return i
}

// Entries returns a snapshot of every entry currently in the store, in
// insertion order. Used by diagnostic tooling; not on the monitor's hot
// path.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// FlushIfDirty atomically replaces the on-disk cache file if the dirty flag
// is set and at least flushInterval has elapsed since the last write. It
// always clears the dirty flag and updates lastFlush on a successful write.
func (s *Store) FlushIfDirty(now time.Time) error {
	return s.flush(now, true)
}

// Flush writes the cache file if the dirty flag is set, ignoring the rate
// limit. Used at top-level teardown, where a final write should happen
// regardless of how recently the last one landed.
func (s *Store) Flush(now time.Time) error {
	return s.flush(now, false)
}

func (s *Store) flush(now time.Time, rateLimited bool) error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	if rateLimited && !s.lastFlush.IsZero() && now.Sub(s.lastFlush) < flushInterval {
		s.mu.Unlock()
		return nil
	}
	entries := make([]Entry, len(s.entries))
	copy(entries, s.entries)
	s.mu.Unlock()

	if err := writeCacheFile(s.path, entries); err != nil {
		return fmt.Errorf("profile: flush %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.dirty = false
	s.lastFlush = now
	s.mu.Unlock()
	return nil
}

// Load populates the store from its on-disk cache file, called once by the
// top-level process at startup. A missing file is not an error: the store
// simply starts empty. Lines that do not parse are skipped rather than
// aborting the whole load.
func (s *Store) Load() error {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("profile: load %s: %w", s.path, err)
	}
	defer f.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		e, ok := parseCacheLine(scanner.Text())
		if !ok {
			continue
		}
		if _, exists := s.index[e.Path]; exists {
			continue
		}
		i := len(s.entries)
		s.entries = append(s.entries, e)
		s.index[e.Path] = i
	}
	return nil
}

// noCommitMarker is written in place of a commit hash when an entry has
// none, so the cache format stays fixed-field rather than making the
// fourth field optional.
const noCommitMarker = "-"

func parseCacheLine(line string) (Entry, bool) {
	fields := strings.SplitN(strings.TrimSpace(line), " ", 4)
	if len(fields) != 4 {
		return Entry{}, false
	}
	peak, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return Entry{}, false
	}
	lastUsed, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Entry{}, false
	}
	commit := fields[2]
	if commit == noCommitMarker {
		commit = ""
	}
	path := fields[3]
	if path == "" {
		return Entry{}, false
	}
	return Entry{Path: path, PeakMiB: uint32(peak), LastUsed: lastUsed, CommitHash: commit}, true
}

// writeCacheFile writes entries to path via a temp file and rename, so a
// reader never observes a partially-written cache.
func writeCacheFile(path string, entries []Entry) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	for _, e := range entries {
		if e.PeakMiB == 0 {
			continue
		}
		commit := e.CommitHash
		if commit == "" {
			commit = noCommitMarker
		}
		if _, err := fmt.Fprintf(w, "%d %d %s %s\n", e.PeakMiB, e.LastUsed, commit, e.Path); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// DefaultCachePath returns the cache file path in the given working
// directory, or the process's actual working directory if dir is empty.
func DefaultCachePath(dir string) string {
	if dir == "" {
		return DefaultCacheFileName
	}
	return filepath.Join(dir, DefaultCacheFileName)
}
