// Package config reads jobmem's environment-variable configuration surface:
// an on/off toggle, a display-disable toggle, a verbosity level, and an
// override for the shared region name, plus a default data directory
// under $XDG_DATA_HOME.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
)

const (
	enabledEnv    = "JOBMEM_ENABLED"
	noDisplayEnv  = "JOBMEM_NO_DISPLAY"
	verbosityEnv  = "JOBMEM_VERBOSITY"
	sharedNameEnv = "JOBMEM_SHARED_NAME"

	// CacheDirName is jobmem's subdirectory under $XDG_DATA_HOME, as
	// returned by DefaultCacheDir.
	CacheDirName = "jobmem"
)

// Config is the resolved configuration for one process.
type Config struct {
	// Enabled gates whether the core does anything at all; when false, every
	// entry point must behave as a no-op.
	Enabled bool
	// NoDisplay disables the Status Renderer even when attached to a TTY.
	NoDisplay bool
	// Verbosity is a diag.Logger level (diag.Silent..diag.Debug).
	Verbosity int
	// SharedName overrides shm.DefaultName.
	SharedName string
}

// FromEnv resolves Config from the process environment. Unset or
// unparseable values fall back to the defaults: enabled, display on,
// silent verbosity.
func FromEnv() Config {
	return Config{
		Enabled:    !isFalsy(os.Getenv(enabledEnv)),
		NoDisplay:  truthySet(os.Getenv(noDisplayEnv)),
		Verbosity:  parseVerbosity(os.Getenv(verbosityEnv)),
		SharedName: os.Getenv(sharedNameEnv),
	}
}

// recognizedFalsy are the values treated as falsy. Anything else, including
// an unset variable treated by the caller as "on," is truthy.
var recognizedFalsy = map[string]bool{
	"0":     true,
	"no":    true,
	"false": true,
}

func isFalsy(v string) bool {
	return recognizedFalsy[strings.ToLower(strings.TrimSpace(v))]
}

// truthySet reports whether v was explicitly set to something other than a
// recognized falsy value. Used for toggles that default to off when unset.
func truthySet(v string) bool {
	if strings.TrimSpace(v) == "" {
		return false
	}
	return !isFalsy(v)
}

func parseVerbosity(v string) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// DefaultCacheDir returns $XDG_DATA_HOME/jobmem, creating no directories
// itself. Callers that need the directory to exist call os.MkdirAll.
func DefaultCacheDir() string {
	return xdg.DataHome + "/" + CacheDirName
}
