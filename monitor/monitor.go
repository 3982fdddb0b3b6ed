// Package monitor implements the Monitor Loop: the single background
// thread in the top-level process that ticks the walker, publishes totals
// to the shared region, drives the status renderer on its own slower
// cadence, and flushes the profile store when it's dirty.
package monitor

import (
	"sync/atomic"
	"time"

	"github.com/arctir/jobmem/diag"
	"github.com/arctir/jobmem/host"
	"github.com/arctir/jobmem/shm"
	"github.com/arctir/jobmem/status"
)

const (
	// TickInterval is the walker/accounting cadence.
	TickInterval = 100 * time.Millisecond
	// statusEveryTicks makes the status cadence ~300ms, three walker ticks.
	statusEveryTicks = 3
)

// Walker is the subset of walker.Walker the monitor drives.
type Walker interface {
	Tick(now time.Time) (jobsSeen int, makeMemoryMiB uint32, unusedPeaksMiB uint32)
}

// Region is the subset of shm.Region the monitor publishes totals to and
// periodically audits.
type Region interface {
	Totals() (reservedMiB, unusedPeaksMiB uint32)
	SetUnusedPeaksMiB(mib uint32)
	Reservations() []shm.Reservation
}

// ProfileStore is the subset of profile.Store the monitor flushes.
type ProfileStore interface {
	FlushIfDirty(now time.Time) error
}

// Renderer is the subset of status.Renderer the monitor drives.
type Renderer interface {
	Render(s status.Snapshot)
	Close()
}

// Monitor owns the single ticking goroutine of a top-level build.
type Monitor struct {
	Walker   Walker
	Region   Region
	Host     host.Prober
	Store    ProfileStore
	Renderer Renderer // nil when the display is disabled
	Logger   *diag.Logger

	running atomic.Bool
	ticks   uint64

	// now is overridable for deterministic tests.
	now func() time.Time
}

// New returns a Monitor ready to Run. Renderer may be nil.
func New(w Walker, region Region, h host.Prober, store ProfileStore, renderer Renderer, logger *diag.Logger) *Monitor {
	return &Monitor{
		Walker:   w,
		Region:   region,
		Host:     h,
		Store:    store,
		Renderer: renderer,
		Logger:   logger,
		now:      time.Now,
	}
}

// Run blocks, ticking every TickInterval, until Stop is called. Setting the
// run flag false causes the loop to exit at the next tick boundary, within
// TickInterval. On exit it closes the renderer, restoring the terminal.
func (m *Monitor) Run() {
	m.running.Store(true)
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for m.running.Load() {
		<-ticker.C
		if !m.running.Load() {
			break
		}
		m.Step(m.nowFunc())
	}

	if m.Renderer != nil {
		m.Renderer.Close()
	}
}

// Stop clears the run flag; Run exits at the next tick boundary.
func (m *Monitor) Stop() {
	m.running.Store(false)
}

func (m *Monitor) nowFunc() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

// Step runs exactly one tick's worth of work: a walker tick, a shared-total
// publish, an optional status render, and a rate-limited profile flush. It
// is exported so tests can drive the monitor deterministically without a
// real ticker.
func (m *Monitor) Step(now time.Time) {
	m.ticks++

	jobs, buildTrackedMiB, unusedPeaksMiB := m.Walker.Tick(now)
	m.Region.SetUnusedPeaksMiB(unusedPeaksMiB)
	reservedMiB, _ := m.Region.Totals()

	m.checkReservationIntegrity(reservedMiB)

	if m.Renderer != nil && m.ticks%statusEveryTicks == 0 {
		sample := m.Host.Sample()
		m.Renderer.Render(buildSnapshot(sample, uint64(buildTrackedMiB), uint64(reservedMiB), uint64(unusedPeaksMiB), jobs))
	}

	if err := m.Store.FlushIfDirty(now); err != nil && m.Logger != nil {
		m.Logger.Errorf("profile flush failed: %s", err)
	}
}

// checkReservationIntegrity recomputes the reservation table's sum and
// compares it against the running reserved_mib scalar. A mismatch is
// logged and nothing else: the table is trusted and the tick continues.
func (m *Monitor) checkReservationIntegrity(reservedMiB uint32) {
	var sum uint64
	for _, r := range m.Region.Reservations() {
		sum += uint64(r.ReservedMiB)
	}
	if sum != uint64(reservedMiB) && m.Logger != nil {
		m.Logger.Warnf("reservation integrity mismatch: reserved_mib=%d disagrees with table sum=%d; trusting table", reservedMiB, sum)
	}
}

func buildSnapshot(sample host.Sample, buildTrackedMiB, reservedMiB, unusedPeaksMiB uint64, jobs int) status.Snapshot {
	if !sample.Known {
		return status.Snapshot{BuildTrackedMiB: buildTrackedMiB, Jobs: jobs}
	}

	imminent := reservedMiB + unusedPeaksMiB
	usedTotal := saturatingSub(sample.TotalMiB, sample.FreeMiB)
	otherUsed := saturatingSub(saturatingSub(usedTotal, buildTrackedMiB), imminent)

	return status.Snapshot{
		BuildTrackedMiB: buildTrackedMiB,
		OtherUsedMiB:    otherUsed,
		ImminentMiB:     imminent,
		FreeMiB:         sample.FreeMiB,
		Jobs:            jobs,
	}
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
