// Package gate implements the Admission Gate: the single pure decision of
// whether a new compilation may spawn right now, given what is already
// reserved, what recent peaks suggest is imminent, and how much host memory
// is actually free.
package gate

import "github.com/arctir/jobmem/host"

// Decision is the gate's verdict. The caller owns retrying on Wait; the
// gate never blocks.
type Decision int

const (
	Go Decision = iota
	Wait
)

func (d Decision) String() string {
	if d == Go {
		return "go"
	}
	return "wait"
}

// ProfileStore is the subset of profile.Store the gate reads.
type ProfileStore interface {
	Lookup(path string) (index int, peakMiB uint32, lastUsed int64, ok bool)
}

// Region is the subset of shm.Region the gate reads and writes.
type Region interface {
	Reserve(pid uint32, mib uint32) bool
	Release(pid uint32)
	Totals() (reservedMiB, unusedPeaksMiB uint32)
}

// Gate is the single source of truth for "will this fit?". It is unaware of
// the jobserver or any other concurrency budget; those are orthogonal.
type Gate struct {
	Store  ProfileStore
	Region Region
	Host   host.Prober

	// MinSlackMiB is extra headroom required beyond a classified profile's
	// peak before admitting. It does not apply when required is zero
	// (unknown cost): that case always admits by default, so this field
	// lets an integrator tighten admission for *known* costs without
	// changing the unknown-cost default.
	MinSlackMiB uint32
}

// MaySpawn implements may_spawn(source_path_hint). pid is the caller's own
// pid, the would-be parent of the process about to be spawned, under
// which any reservation is recorded.
func (g *Gate) MaySpawn(pid uint32, sourcePathHint string, hasHint bool) Decision {
	var required uint32
	if hasHint {
		if _, peak, _, ok := g.Store.Lookup(sourcePathHint); ok {
			required = peak
		}
	}

	sample := g.Host.Sample()
	if !sample.Known {
		g.Region.Reserve(pid, required)
		return Go
	}

	reserved, unusedPeaks := g.Region.Totals()
	imminent := reserved + unusedPeaks
	effectiveFree := saturatingSub(sample.FreeMiB, uint64(imminent))

	if required == 0 {
		g.Region.Reserve(pid, required)
		return Go
	}
	if uint64(required)+uint64(g.MinSlackMiB) <= effectiveFree {
		g.Region.Reserve(pid, required)
		return Go
	}
	return Wait
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
