// Package status implements the Status Renderer: a single-line progress bar
// written to the controlling terminal through a private, duplicated
// stderr descriptor so it never races with recipe output sharing the real
// one.
package status

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

const (
	barWidth      = 20
	spinnerFrames = `|/-\`

	// ioctlGetTermios is TCGETS on Linux-style hosts, the same request the
	// teacher already depends on unix for via Uname/IoctlGetWinsize.
	ioctlGetTermios = unix.TCGETS
)

// Snapshot is one render's worth of data, assembled by the monitor loop
// each cadence tick.
type Snapshot struct {
	BuildTrackedMiB uint64
	OtherUsedMiB    uint64
	ImminentMiB     uint64
	FreeMiB         uint64
	Jobs            int
}

// Renderer owns a duplicated stderr descriptor and the terminal width,
// both cached once at construction: it must never query the terminal
// again after startup. The constructor holds all state a render call
// needs, guarded by a mutex against concurrent access.
type Renderer struct {
	mu sync.Mutex

	fd       int
	width    int
	isTTY    bool
	disabled bool
	spin     int
}

// New duplicates stderr, probes whether stdout and stderr are both
// terminals, and caches the terminal width. Any failure in that one
// startup query disables the renderer permanently rather than erroring:
// it must degrade silently, since a missing status line never breaks a
// build.
func New() *Renderer {
	r := &Renderer{width: 80}

	fd, err := unix.Dup(int(os.Stderr.Fd()))
	if err != nil {
		r.disabled = true
		return r
	}
	r.fd = fd

	if !isTerminal(int(os.Stdout.Fd())) || !isTerminal(int(os.Stderr.Fd())) {
		r.isTTY = false
		return r
	}
	r.isTTY = true

	ws, err := unix.IoctlGetWinsize(int(os.Stderr.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		r.disabled = true
		return r
	}
	if ws.Col > 0 {
		r.width = int(ws.Col)
	}
	return r
}

func isTerminal(fd int) bool {
	_, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	return err == nil
}

// Disabled reports whether the renderer has stopped drawing, either
// because startup failed or because a later write hit a broken pipe or
// bad descriptor.
func (r *Renderer) Disabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disabled
}

// Render draws one frame. It is a no-op once disabled.
func (r *Renderer) Render(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disabled {
		return
	}

	line := r.format(s)
	var out string
	if r.isTTY {
		out = "\x1b7\x1b[1A\r" + line + "\x1b8"
	} else {
		out = line + "\n"
	}

	if _, err := unix.Write(r.fd, []byte(out)); err == unix.EPIPE || err == unix.EBADF {
		r.disabled = true
	}
	r.spin++
}

// Close writes the terminal-restoration sequence (carriage-return,
// erase-to-end-of-line, newline) and releases the duplicated descriptor.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.disabled {
		unix.Write(r.fd, []byte("\r\x1b[K\n"))
	}
	unix.Close(r.fd)
	r.disabled = true
}

func (r *Renderer) format(s Snapshot) string {
	spinner := spinnerFrames[r.spin%len(spinnerFrames)]
	total := s.BuildTrackedMiB + s.OtherUsedMiB + s.ImminentMiB + s.FreeMiB
	bar := renderBar(s, total, barWidth)

	var percent float64
	if total > 0 {
		percent = float64(total-s.FreeMiB) / float64(total) * 100
	}

	return fmt.Sprintf("%c %s %5.1f%% (%d MiB) %d", spinner, bar, percent, s.FreeMiB, s.Jobs)
}

// renderBar splits width columns across the four zones in order
// (build-tracked, other-used, imminent, free), proportional to each zone's
// share of total.
func renderBar(s Snapshot, total uint64, width int) string {
	if total == 0 {
		return strings.Repeat(" ", width)
	}

	cols := []struct {
		mib  uint64
		glyp byte
	}{
		{s.BuildTrackedMiB, '#'},
		{s.OtherUsedMiB, '='},
		{s.ImminentMiB, '~'},
		{s.FreeMiB, ' '},
	}

	var b strings.Builder
	used := 0
	for i, c := range cols {
		n := int(c.mib * uint64(width) / total)
		if i == len(cols)-1 {
			n = width - used
		}
		if n < 0 {
			n = 0
		}
		if used+n > width {
			n = width - used
		}
		b.WriteString(strings.Repeat(string(c.glyp), n))
		used += n
	}
	for used < width {
		b.WriteByte(' ')
		used++
	}
	return b.String()
}
