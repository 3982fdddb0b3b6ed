// Package diag is the ambient logging surface shared by every package: a
// thin verbosity gate over the standard logger, plus a structural dumper
// for the rare case a developer needs to see the whole descendant table or
// shared-region snapshot.
package diag

import (
	"io"
	"log"
	"os"

	"github.com/davecgh/go-spew/spew"
)

// Verbosity levels, silent through maximum.
const (
	Silent = iota
	Error
	Warn
	Info
	Debug
)

// Logger wraps the standard library logger with a verbosity gate. The zero
// value has Silent verbosity and drops every message.
type Logger struct {
	verbosity int
	l         *log.Logger
}

// New returns a Logger writing to os.Stderr at the given verbosity.
func New(verbosity int) *Logger {
	return NewTo(verbosity, os.Stderr)
}

// NewTo returns a Logger writing to w at the given verbosity. Used in
// tests that need to inspect what was logged.
func NewTo(verbosity int, w io.Writer) *Logger {
	return &Logger{
		verbosity: verbosity,
		l:         log.New(w, "", log.LstdFlags),
	}
}

func (lg *Logger) Errorf(format string, args ...any) {
	lg.logAt(Error, format, args...)
}

func (lg *Logger) Warnf(format string, args ...any) {
	lg.logAt(Warn, format, args...)
}

func (lg *Logger) Infof(format string, args ...any) {
	lg.logAt(Info, format, args...)
}

func (lg *Logger) Debugf(format string, args ...any) {
	lg.logAt(Debug, format, args...)
}

func (lg *Logger) logAt(level int, format string, args ...any) {
	if lg == nil || level > lg.verbosity {
		return
	}
	lg.l.Printf(format, args...)
}

// DumpState writes a structural dump of v at Debug verbosity, using
// go-spew so nested maps and pointers (the descendant table, a shared
// region snapshot) are readable instead of Go's default %+v terseness.
func (lg *Logger) DumpState(label string, v any) {
	if lg == nil || lg.verbosity < Debug {
		return
	}
	lg.l.Printf("%s:\n%s", label, spew.Sdump(v))
}
