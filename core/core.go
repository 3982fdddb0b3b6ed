// Package core assembles the Profile Store, Shared Accounting Region,
// Descendant Walker, Admission Gate, Monitor Loop, and Status Renderer into
// a single "core context" value: state that is single-initializer and
// process-wide, one value created at startup and threaded explicitly to
// every caller that needs it.
package core

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/arctir/jobmem/config"
	"github.com/arctir/jobmem/diag"
	"github.com/arctir/jobmem/gate"
	"github.com/arctir/jobmem/host"
	"github.com/arctir/jobmem/monitor"
	"github.com/arctir/jobmem/proc"
	"github.com/arctir/jobmem/profile"
	"github.com/arctir/jobmem/shm"
	"github.com/arctir/jobmem/status"
	"github.com/arctir/jobmem/walker"
)

// Level distinguishes the top-level build process, which owns every piece
// of global state, from a sub-build, which only ever attaches to the
// shared region.
type Level int

const (
	LevelTop Level = iota
	LevelSub
)

// Context is the single value threading every operation through one
// build's memory-aware state. The zero value is not usable; construct one
// with StartTop or StartSub.
type Context struct {
	Level   Level
	Enabled bool
	Config  config.Config
	Logger  *diag.Logger

	Store    *profile.Store // nil for sub-builds and when disabled
	Region   *shm.Region    // nil until a top-level Create or a sub-build's first lazy Attach
	Gate     *gate.Gate
	Walker   *walker.Walker  // nil for sub-builds and when disabled
	Monitor  *monitor.Monitor // nil for sub-builds and when disabled
	Renderer *status.Renderer // nil when disabled or when cfg.NoDisplay is set

	pid int
	wg  sync.WaitGroup
}

// StartTop initializes every piece of top-level state: it loads profiles,
// maps (creating if needed) and zeros the shared region, and spawns the
// monitor thread. If cfg.Enabled is false, or if the shared region cannot
// be created, it returns a disabled Context rather than an error:
// initialization failure degrades the caller to "run without memory
// awareness," it never blocks the build.
func StartTop(cfg config.Config) *Context {
	logger := diag.New(cfg.Verbosity)

	if !cfg.Enabled {
		return &Context{Level: LevelTop, Enabled: false, Config: cfg, Logger: logger, pid: os.Getpid()}
	}

	store := profile.New(profile.DefaultCachePath(""), 0)
	if err := store.Load(); err != nil {
		logger.Warnf("profile store load failed, starting empty: %s", err)
	}

	name := cfg.SharedName
	if name == "" {
		name = shm.DefaultName
	}
	region, err := shm.Create(name)
	if err != nil {
		logger.Warnf("shared region unavailable, disabling memory-aware path: %s", err)
		return &Context{Level: LevelTop, Enabled: false, Config: cfg, Logger: logger, Store: store, pid: os.Getpid()}
	}

	procProber := proc.NewLinuxProber()
	hostProber := host.NewProcProber()
	pid := os.Getpid()

	w := walker.New(pid, procProber, store, region)
	g := &gate.Gate{Store: store, Region: region, Host: hostProber}

	var renderer *status.Renderer
	var monRenderer monitor.Renderer
	if !cfg.NoDisplay {
		renderer = status.New()
		if !renderer.Disabled() {
			monRenderer = renderer
		}
	}

	mon := monitor.New(w, region, hostProber, store, monRenderer, logger)

	c := &Context{
		Level:    LevelTop,
		Enabled:  true,
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Region:   region,
		Gate:     g,
		Walker:   w,
		Monitor:  mon,
		Renderer: renderer,
		pid:      pid,
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		mon.Run()
	}()

	return c
}

// noProfiles answers every lookup with "no entry", used for sub-build
// gates: a sub-build's profile store is never loaded, so its gate always
// treats a hint as unknown cost.
type noProfiles struct{}

func (noProfiles) Lookup(string) (int, uint32, int64, bool) { return 0, 0, 0, false }

// lazyRegion defers attaching to the shared region until the first
// reserve or totals read: the shared region is attached lazily on first
// reserve or imminent read.
type lazyRegion struct {
	name string
	once sync.Once
	r    *shm.Region
	err  error
}

func (l *lazyRegion) ensure() {
	l.once.Do(func() {
		l.r, l.err = shm.Attach(l.name)
	})
}

func (l *lazyRegion) Reserve(pid uint32, mib uint32) bool {
	l.ensure()
	if l.err != nil {
		return false
	}
	return l.r.Reserve(pid, mib)
}

func (l *lazyRegion) Totals() (uint32, uint32) {
	l.ensure()
	if l.err != nil {
		return 0, 0
	}
	return l.r.Totals()
}

func (l *lazyRegion) Release(pid uint32) {
	l.ensure()
	if l.err != nil {
		return
	}
	l.r.Release(pid)
}

// StartSub does almost nothing, by design: no profile load, no shared
// region attach. The shared region is attached lazily the first time the
// gate is actually consulted; the profile store is never loaded, so every
// hint is treated as unknown cost.
func StartSub(cfg config.Config) *Context {
	logger := diag.New(cfg.Verbosity)
	if !cfg.Enabled {
		return &Context{Level: LevelSub, Enabled: false, Config: cfg, Logger: logger, pid: os.Getpid()}
	}

	name := cfg.SharedName
	if name == "" {
		name = shm.DefaultName
	}
	lr := &lazyRegion{name: name}
	hostProber := host.NewProcProber()

	return &Context{
		Level:   LevelSub,
		Enabled: true,
		Config:  cfg,
		Logger:  logger,
		Gate:    &gate.Gate{Store: noProfiles{}, Region: lr, Host: hostProber},
		pid:     os.Getpid(),
	}
}

// Stop is top-level-only teardown: stop the monitor and join it, flush
// profiles, unmap and unlink the shared region. A sub-build calling this
// is a misuse and is logged and ignored.
func (c *Context) Stop() error {
	if c.Level != LevelTop {
		c.Logger.Errorf("misuse: sub-build attempted top-level teardown (Stop)")
		return nil
	}
	if !c.Enabled {
		return nil
	}

	if c.Monitor != nil {
		c.Monitor.Stop()
		c.wg.Wait()
	}
	if c.Store != nil {
		if err := c.Store.Flush(time.Now()); err != nil {
			c.Logger.Errorf("final profile flush failed: %s", err)
		}
	}
	if c.Region != nil {
		if err := c.Region.Close(); err != nil {
			c.Logger.Errorf("shared region close failed: %s", err)
		}
		if err := c.Region.Unlink(); err != nil {
			c.Logger.Errorf("shared region unlink failed: %s", err)
		}
	}
	return nil
}

// StopImmediate is the entry point a surrounding tool's fatal-signal
// handler must call: it clears the run flag and restores the terminal
// without joining the monitor thread, since a signal handler cannot
// safely block waiting for another goroutine.
func (c *Context) StopImmediate() {
	if c.Level != LevelTop {
		c.Logger.Errorf("misuse: sub-build attempted top-level teardown (StopImmediate)")
		return
	}
	if !c.Enabled {
		return
	}
	if c.Monitor != nil {
		c.Monitor.Stop()
	}
	if c.Renderer != nil {
		c.Renderer.Close()
	}
}

// Release records that pid's child has ended, freeing its reservation in
// the shared region. This is the explicit counterpart to the walker's
// implicit release on process exit: a recipe runner's post-exit hook calls
// this directly instead of waiting for the next walk to notice the pid is
// gone. A disabled or misconfigured Context makes this a no-op.
func (c *Context) Release(pid uint32) {
	if !c.Enabled || c.Gate == nil || c.Gate.Region == nil {
		return
	}
	c.Gate.Region.Release(pid)
}

// WalkOnce is a convenience wrapper for callers that want to drive the
// walker directly (sub-builds never do; only tests and the demo CLI).
func (c *Context) WalkOnce() (jobsSeen int, makeMemoryMiB uint32, unusedPeaksMiB uint32, err error) {
	if c.Walker == nil {
		return 0, 0, 0, fmt.Errorf("core: no walker on this context (level=%v enabled=%v)", c.Level, c.Enabled)
	}
	jobs, mem, unused := c.Walker.Tick(time.Now())
	return jobs, mem, unused, nil
}
