// Package host reads host-wide memory information for the admission gate and
// status renderer. It is a pure function of the OS interface: it holds no
// state beyond the configured location of procfs, and every call re-reads
// from scratch.
package host

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

const (
	// DefaultMeminfoPath is where /proc/meminfo lives on a standard Linux host.
	DefaultMeminfoPath = "/proc/meminfo"
)

// Sample is a snapshot of host memory at one point in time.
type Sample struct {
	// TotalMiB is MemTotal, for callers (the status renderer) that need to
	// size a proportional display against the whole of host memory.
	TotalMiB uint64
	// FreeMiB is an estimate of memory a new process could claim without the
	// host beginning to swap: MemAvailable when the kernel reports it, or
	// MemFree+Buffers+Cached as a fallback on older kernels.
	FreeMiB uint64
	// UsedPercent is (total-free)/total*100.
	UsedPercent float64
	// Known is false when the probe could not determine memory at all (e.g.
	// /proc/meminfo is unreadable, such as on a non-Linux host). Callers must
	// treat an unknown sample as "cannot reason about memory" rather than as
	// zero free memory: the admission gate must degrade to always-proceed in
	// this case, not to always-wait.
	Known bool
}

// Prober reads host memory. The only implementation shipped is [ProcProber];
// the interface exists so callers (gate, status) don't depend on a concrete
// procfs path.
type Prober interface {
	Sample() Sample
}

// ProcProber reads /proc/meminfo. It must be cheap enough to call every
// 100ms: a single buffered read of a small pseudo-file.
type ProcProber struct {
	// MeminfoPath overrides DefaultMeminfoPath, for tests.
	MeminfoPath string
}

// NewProcProber returns a ProcProber reading the real /proc/meminfo.
func NewProcProber() *ProcProber {
	return &ProcProber{MeminfoPath: DefaultMeminfoPath}
}

// Sample implements Prober. Any failure to read or parse /proc/meminfo is
// reported as an unknown sample rather than an error: a missing memory
// source degrades the caller's behavior, it never surfaces.
func (p *ProcProber) Sample() Sample {
	path := p.MeminfoPath
	if path == "" {
		path = DefaultMeminfoPath
	}
	f, err := os.Open(path)
	if err != nil {
		return Sample{}
	}
	defer f.Close()

	var totalKB, freeKB, availKB, buffersKB, cachedKB uint64
	haveAvail := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		key, valueKB, ok := parseMeminfoLine(line)
		if !ok {
			continue
		}
		switch key {
		case "MemTotal":
			totalKB = valueKB
		case "MemFree":
			freeKB = valueKB
		case "MemAvailable":
			availKB = valueKB
			haveAvail = true
		case "Buffers":
			buffersKB = valueKB
		case "Cached":
			cachedKB = valueKB
		}
	}
	if totalKB == 0 {
		return Sample{}
	}

	avail := availKB
	if !haveAvail {
		avail = freeKB + buffersKB + cachedKB
	}
	if avail > totalKB {
		avail = totalKB
	}

	usedPercent := float64(totalKB-avail) / float64(totalKB) * 100
	return Sample{
		TotalMiB:    totalKB / 1024,
		FreeMiB:     avail / 1024,
		UsedPercent: usedPercent,
		Known:       true,
	}
}

// parseMeminfoLine parses a single /proc/meminfo line such as
// "MemAvailable:    7860708 kB" into its key and value in KiB.
func parseMeminfoLine(line string) (key string, valueKB uint64, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", 0, false
	}
	key = strings.TrimSuffix(fields[0], ":")
	v, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return key, v, true
}
