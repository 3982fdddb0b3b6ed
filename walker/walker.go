// Package walker implements the Descendant Walker: on every tick it
// descends the process tree rooted at the top-level build, attributes each
// live descendant to a compilation profile, and accumulates the totals the
// Admission Gate and Status Renderer need.
package walker

import (
	"time"

	"github.com/arctir/jobmem/classify"
	"github.com/arctir/jobmem/profile"
)

// ProcProber is the subset of proc.Prober the walker needs. Declared
// locally so walker depends on a capability set, not the proc package's
// concrete type.
type ProcProber interface {
	RSSMiB(pid int) (uint64, bool)
	ParentOf(pid int) (int, bool)
	ChildrenOf(pid int) []int
	Cmdline(pid int) ([]string, bool)
}

// Reservations is the subset of shm.Region the walker needs, to release a
// caller's pre-spawn reservation once the real child pid is attributed.
type Reservations interface {
	Release(pid uint32)
}

type descendant struct {
	pid          int
	profileIndex int // -1 when unclassified
	path         string
	// oldPeak is the historical peak read from the Profile Store at the
	// moment this descendant was first attributed. It is intentionally
	// never updated afterward: it is the baseline unused_peaks_mib measures
	// against, not a running maximum.
	oldPeak uint32
	// trackedPeak is the running maximum RSS this walker has observed for
	// this pid, used to decide when to push a non-final profile update.
	trackedPeak uint32
}

// Walker holds the descendant table for one build tree.
type Walker struct {
	root        int
	proc        ProcProber
	store       *profile.Store
	reservation Reservations

	descendants map[int]*descendant
}

// New returns a Walker rooted at the top-level build's own pid.
// reservation may be nil, in which case implicit reservation release on
// attribution is skipped (useful for tests).
func New(rootPid int, proc ProcProber, store *profile.Store, reservation Reservations) *Walker {
	return &Walker{
		root:        rootPid,
		proc:        proc,
		store:       store,
		reservation: reservation,
		descendants: make(map[int]*descendant),
	}
}

// Tick runs one walk_tick(): it returns the number of live tracked
// descendants, their summed current RSS, and the accumulated
// unused_peaks_mib for this tick.
func (w *Walker) Tick(now time.Time) (jobsSeen int, makeMemoryMiB uint32, unusedPeaksMiB uint32) {
	live := w.collectDescendants()
	liveSet := make(map[int]bool, len(live))

	for _, pid := range live {
		liveSet[pid] = true
		rss64, ok := w.proc.RSSMiB(pid)
		if !ok {
			continue
		}
		rss := uint32(rss64)

		d, seen := w.descendants[pid]
		if !seen {
			d = w.attribute(pid, rss, now)
			w.descendants[pid] = d
		} else if rss > d.trackedPeak {
			d.trackedPeak = rss
			if d.profileIndex >= 0 {
				w.store.InsertOrUpdate(d.path, rss, false, now)
			}
		}

		jobsSeen++
		makeMemoryMiB += rss
		if d.profileIndex >= 0 && rss < d.oldPeak {
			unusedPeaksMiB += d.oldPeak - rss
		}
	}

	w.reapExited(liveSet, now)
	return jobsSeen, makeMemoryMiB, unusedPeaksMiB
}

// attribute handles a pid seen for the first time: classify its cmdline,
// look it up (or insert it) in the Profile Store, and release any
// reservation the Admission Gate made under its parent's pid before the
// child existed.
func (w *Walker) attribute(pid int, rss uint32, now time.Time) *descendant {
	d := &descendant{pid: pid, profileIndex: -1, trackedPeak: rss}

	argv, ok := w.proc.Cmdline(pid)
	if !ok {
		return d
	}
	path, ok := classify.SourcePath(argv)
	if !ok {
		return d
	}
	d.path = path

	if idx, peak, _, hit := w.store.Lookup(path); hit {
		d.profileIndex = idx
		d.oldPeak = peak
		if w.reservation != nil {
			if parentPid, pok := w.proc.ParentOf(pid); pok {
				w.reservation.Release(uint32(parentPid))
			}
		}
		return d
	}

	d.profileIndex = w.store.InsertOrUpdate(path, rss, false, now)
	return d
}

// reapExited removes descendants no longer in the live set and submits
// their final peak to the Profile Store.
func (w *Walker) reapExited(live map[int]bool, now time.Time) {
	for pid, d := range w.descendants {
		if live[pid] {
			continue
		}
		if d.profileIndex >= 0 {
			w.store.InsertOrUpdate(d.path, d.trackedPeak, true, now)
		}
		delete(w.descendants, pid)
	}
}

// collectDescendants walks the process tree from the root pid via scoped
// /proc/<pid>/task/<tid>/children lookups, so a tick costs O(live
// descendants) rather than a scan of every pid on the host. A visited set
// guards against a re-parenting race producing a cycle.
func (w *Walker) collectDescendants() []int {
	var out []int
	visited := map[int]bool{w.root: true}
	frontier := []int{w.root}

	for len(frontier) > 0 {
		pid := frontier[0]
		frontier = frontier[1:]

		for _, child := range w.proc.ChildrenOf(pid) {
			if visited[child] {
				continue
			}
			visited[child] = true
			out = append(out, child)
			frontier = append(frontier, child)
		}
	}
	return out
}
