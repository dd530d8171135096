// Package logging is the leveled logger shared by the reactor, the worker
// pool, the file I/O layer and the record repositories.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
)

type Logger interface {
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
}

type level int

const (
	levelError level = iota
	levelWarn
	levelInfo
	levelDebug
)

var prefixes = [...]string{
	levelError: "[ERROR] ",
	levelWarn:  "[WARN] ",
	levelInfo:  "[INFO] ",
	levelDebug: "[DEBUG] ",
}

// stdLogger holds one *log.Logger per level. Errors and warnings go to the
// error writer, the rest to the regular one.
type stdLogger struct {
	out [len(prefixes)]*log.Logger
	max level
}

// NewDefaultLogger logs errors and warnings to stderr and info to stdout.
// Debug output is suppressed.
func NewDefaultLogger() Logger {
	return newLogger(os.Stderr, os.Stdout, false)
}

// NewDebugLogger is NewDefaultLogger with debug output enabled.
func NewDebugLogger() Logger {
	return newLogger(os.Stderr, os.Stdout, true)
}

// NewWriterLogger sends every level to w.
func NewWriterLogger(w io.Writer, debug bool) Logger {
	return newLogger(w, w, debug)
}

func newLogger(errOut, out io.Writer, debug bool) *stdLogger {
	l := &stdLogger{max: levelInfo}
	if debug {
		l.max = levelDebug
	}
	for lv, prefix := range prefixes {
		w := out
		if level(lv) <= levelWarn {
			w = errOut
		}
		l.out[lv] = log.New(w, prefix, log.LstdFlags|log.Lshortfile)
	}
	return l
}

// emit is called from the exported methods, so depth 3 attributes the
// line to their caller.
func (l *stdLogger) emit(lv level, msg string) {
	if lv > l.max {
		return
	}
	_ = l.out[lv].Output(3, msg)
}

func (l *stdLogger) Error(args ...interface{}) { l.emit(levelError, fmt.Sprint(args...)) }
func (l *stdLogger) Warn(args ...interface{})  { l.emit(levelWarn, fmt.Sprint(args...)) }
func (l *stdLogger) Info(args ...interface{})  { l.emit(levelInfo, fmt.Sprint(args...)) }
func (l *stdLogger) Debug(args ...interface{}) { l.emit(levelDebug, fmt.Sprint(args...)) }

func (l *stdLogger) Errorf(format string, args ...interface{}) {
	l.emit(levelError, fmt.Sprintf(format, args...))
}

func (l *stdLogger) Warnf(format string, args ...interface{}) {
	l.emit(levelWarn, fmt.Sprintf(format, args...))
}

func (l *stdLogger) Infof(format string, args ...interface{}) {
	l.emit(levelInfo, fmt.Sprintf(format, args...))
}

// Debugf skips formatting when debug output is off.
func (l *stdLogger) Debugf(format string, args ...interface{}) {
	if l.max < levelDebug {
		return
	}
	l.emit(levelDebug, fmt.Sprintf(format, args...))
}

type nopLogger struct{}

// Nop discards everything.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Error(...interface{})          {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Warn(...interface{})           {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Info(...interface{})           {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Debug(...interface{})          {}
func (nopLogger) Debugf(string, ...interface{}) {}
