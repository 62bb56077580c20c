// Package logsvc provides the leveled logger used across presensi.
package logsvc

import (
	"io"
	"log"
	"os"
)

type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// StdLogger writes leveled lines to a *log.Logger.
type StdLogger struct {
	std   *log.Logger
	debug bool
}

var _ Logger = (*StdLogger)(nil)

func New(std *log.Logger, debug bool) *StdLogger {
	return &StdLogger{std: std, debug: debug}
}

// NewStdout returns a logger in the format the binaries use.
func NewStdout(prefix string, debug bool) *StdLogger {
	return New(log.New(os.Stdout, prefix, log.LstdFlags|log.LUTC), debug)
}

// Discard drops everything. Intended for tests.
func Discard() *StdLogger {
	return New(log.New(io.Discard, "", 0), false)
}

func (l *StdLogger) Debugf(format string, args ...interface{}) {
	if l.debug {
		l.std.Printf("[DEBUG] "+format, args...)
	}
}

func (l *StdLogger) Infof(format string, args ...interface{}) {
	l.std.Printf("[INFO] "+format, args...)
}

func (l *StdLogger) Warnf(format string, args ...interface{}) {
	l.std.Printf("[WARN] "+format, args...)
}

func (l *StdLogger) Errorf(format string, args ...interface{}) {
	l.std.Printf("[ERROR] "+format, args...)
}
