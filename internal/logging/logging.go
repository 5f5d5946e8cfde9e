// Package logging provides the package-level pluggable logging seam used
// across the reactor core. Mirrors the structured-logging-interface idiom
// (package-level default, swappable via a setter) rather than threading a
// logger through every constructor, which would pervade the core's call
// sites for a purely diagnostic concern.
//
// Author: momentics <momentics@gmail.com>
package logging

import (
	"log"
	"os"
	"sync/atomic"
)

// Logger is the minimal surface the core needs: leveled, printf-style
// diagnostics. Invariant violations are fatal regardless of the Logger:
// they panic with their own message and are not passed through it.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

var current atomic.Pointer[Logger]

func init() {
	var l Logger = stdLogger{l: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)}
	current.Store(&l)
}

// SetLogger installs the process-wide Logger. Safe to call concurrently
// with logging calls; takes effect for subsequent log statements.
func SetLogger(l Logger) {
	if l == nil {
		return
	}
	current.Store(&l)
}

// Default returns the currently installed Logger.
func Default() Logger {
	return *current.Load()
}

// stdLogger is the zero-configuration backend: stdlib *log.Logger, which
// is already safe for concurrent use, with a level prefix. Good enough
// for a library whose users are expected to supply their own Logger in
// production.
type stdLogger struct {
	l *log.Logger
}

func (s stdLogger) Debugf(format string, args ...any) { s.logf("DEBUG", format, args...) }
func (s stdLogger) Infof(format string, args ...any)  { s.logf("INFO", format, args...) }
func (s stdLogger) Warnf(format string, args ...any)  { s.logf("WARN", format, args...) }
func (s stdLogger) Errorf(format string, args ...any) { s.logf("ERROR", format, args...) }

func (s stdLogger) logf(level, format string, args ...any) {
	s.l.Printf(level+" "+format, args...)
}
