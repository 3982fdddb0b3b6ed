// Package shm implements the Shared Accounting Region: a fixed-layout POSIX
// shared-memory object that lets the top-level build process and any
// sub-builds it spawns agree on how much memory is reserved and how much
// headroom recent peaks suggest is about to be used, without any of them
// talking to each other directly.
package shm

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	// MaxReservations bounds the reservation table. 64 concurrent reservations
	// is far beyond the expected peak concurrency of a single build tree; a
	// larger value only costs a few hundred bytes of shared memory.
	MaxReservations = 64

	// DefaultName is the well-known shared-memory object name, rooted under
	// /dev/shm on Linux hosts.
	DefaultName = "make_memory_shared"

	shmDir = "/dev/shm"
)

type reservation struct {
	pid         uint32
	reservedMiB uint32
}

// layout is the fixed, 8-byte-aligned memory layout mapped directly onto the
// shared region. Field order matters: every atomically-accessed scalar
// starts at an 8-byte boundary.
type layout struct {
	reservationCount uint32
	_                uint32
	countLock        uint32
	_                uint32
	reservations     [MaxReservations]reservation
	unusedPeaksMiB   uint32
	_                uint32
	reservedMiB      uint32
	_                uint32
	reservedLock     uint32
	_                uint32 // pad struct to an 8-byte multiple
}

var layoutSize = int(unsafe.Sizeof(layout{}))

// Region is a handle onto the mapped shared-memory object. The zero value is
// not usable; construct one with Create or Attach.
type Region struct {
	path    string
	fd      int
	buf     []byte
	l       *layout
	creator bool
}

// Create opens (creating if necessary) and zeros the shared region, and
// initializes its two process-shared locks. Only the top-level process may
// call Create: it may be reusing a stale object left behind by a crashed
// prior build, so it always zeros the memory itself rather than trusting
// whatever is already there.
func Create(name string) (*Region, error) {
	if name == "" {
		name = DefaultName
	}
	path := shmPath(name)

	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}

	if err := unix.Ftruncate(fd, int64(layoutSize)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: truncate %s: %w", path, err)
	}

	buf, err := unix.Mmap(fd, 0, layoutSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}

	for i := range buf {
		buf[i] = 0
	}

	r := &Region{path: path, fd: fd, buf: buf, l: (*layout)(unsafe.Pointer(&buf[0])), creator: true}
	return r, nil
}

// Attach maps an already-created shared region without reinitializing it.
// Sub-builds must use Attach, never Create: reinitializing the locks out
// from under a live top-level process would corrupt accounting.
func Attach(name string) (*Region, error) {
	if name == "" {
		name = DefaultName
	}
	path := shmPath(name)

	fd, err := unix.Open(path, unix.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}

	buf, err := unix.Mmap(fd, 0, layoutSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}

	return &Region{path: path, fd: fd, buf: buf, l: (*layout)(unsafe.Pointer(&buf[0])), creator: false}, nil
}

func shmPath(name string) string {
	return shmDir + "/" + name
}

// Close unmaps the region and closes its descriptor. Safe to call from any
// level.
func (r *Region) Close() error {
	if err := unix.Munmap(r.buf); err != nil {
		return fmt.Errorf("shm: munmap %s: %w", r.path, err)
	}
	return unix.Close(r.fd)
}

// Unlink removes the backing object from the filesystem. Only the top-level
// process may call this; callers must guard the level check themselves (see
// the core package), since shm has no notion of "top-level" on its own.
func (r *Region) Unlink() error {
	if err := unix.Unlink(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("shm: unlink %s: %w", r.path, err)
	}
	return nil
}

// Reserve records or updates a reservation for pid: update an existing
// reservation for pid if one exists, otherwise claim the first free slot and
// extend the high-water mark if needed. It returns false if the table is
// full and no slot was available; the caller proceeds without a reservation
// and logs the shortfall rather than failing the build.
func (r *Region) Reserve(pid uint32, mib uint32) bool {
	count := loadU32(&r.l.reservationCount)
	for i := uint32(0); i < count; i++ {
		if loadU32(&r.l.reservations[i].pid) == pid {
			r.setReservation(int(i), pid, mib)
			return true
		}
	}

	lockFutex(&r.l.countLock)
	slot := -1
	for i := 0; i < MaxReservations; i++ {
		if r.l.reservations[i].pid == 0 {
			slot = i
			break
		}
	}
	if slot < 0 {
		unlockFutex(&r.l.countLock)
		return false
	}
	if uint32(slot) >= r.l.reservationCount {
		r.l.reservationCount = uint32(slot) + 1
	}
	unlockFutex(&r.l.countLock)

	r.setReservation(slot, pid, mib)
	return true
}

// setReservation writes a slot's pid and mib, adjusting the running total by
// the signed delta under the reserved-total lock.
func (r *Region) setReservation(slot int, pid uint32, mib uint32) {
	prev := loadU32(&r.l.reservations[slot].reservedMiB)

	lockFutex(&r.l.reservedLock)
	if mib >= prev {
		r.l.reservedMiB += mib - prev
	} else {
		r.l.reservedMiB -= prev - mib
	}
	unlockFutex(&r.l.reservedLock)

	storeU32(&r.l.reservations[slot].reservedMiB, mib)
	storeU32(&r.l.reservations[slot].pid, pid)
}

// Release zeroes pid's reservation and frees its slot. A pid with no
// active reservation is a silent no-op.
func (r *Region) Release(pid uint32) {
	count := loadU32(&r.l.reservationCount)
	for i := uint32(0); i < count; i++ {
		if loadU32(&r.l.reservations[i].pid) != pid {
			continue
		}
		prev := loadU32(&r.l.reservations[i].reservedMiB)

		lockFutex(&r.l.reservedLock)
		r.l.reservedMiB -= prev
		unlockFutex(&r.l.reservedLock)

		storeU32(&r.l.reservations[i].reservedMiB, 0)
		storeU32(&r.l.reservations[i].pid, 0)
		return
	}
}

// Totals returns the current reserved_mib and unused_peaks_mib scalars.
func (r *Region) Totals() (reservedMiB, unusedPeaksMiB uint32) {
	return loadU32(&r.l.reservedMiB), loadU32(&r.l.unusedPeaksMiB)
}

// Reservation is one live slot in the reservation table, as read by
// Reservations.
type Reservation struct {
	Pid         uint32
	ReservedMiB uint32
}

// Reservations returns every currently-occupied slot in the reservation
// table. The gate never calls this; the monitor calls it once per tick to
// check the running reserved total against the table's sum, and jobmemctl
// uses it for its reservations listing.
func (r *Region) Reservations() []Reservation {
	count := loadU32(&r.l.reservationCount)
	out := make([]Reservation, 0, count)
	for i := uint32(0); i < count; i++ {
		pid := loadU32(&r.l.reservations[i].pid)
		if pid == 0 {
			continue
		}
		out = append(out, Reservation{Pid: pid, ReservedMiB: loadU32(&r.l.reservations[i].reservedMiB)})
	}
	return out
}

// SetUnusedPeaksMiB publishes the walker's per-tick unused-peaks total.
func (r *Region) SetUnusedPeaksMiB(mib uint32) {
	storeU32(&r.l.unusedPeaksMiB, mib)
}
