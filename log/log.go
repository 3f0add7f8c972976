// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package log is a small leveled logger used throughout v8pm. It mirrors
// the shape of github.com/saferwall/pe/log so that components logging
// through a *Helper behave exactly like the teacher's codebase.
package log

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Level is a log severity.
type Level int

// Severity levels, lowest first.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger is the minimal sink every backend must implement.
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

type stdLogger struct {
	w io.Writer
}

// NewStdLogger returns a Logger that writes "time level msg" lines to w.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{w: w}
}

func (l *stdLogger) Log(level Level, keyvals ...interface{}) error {
	ts := time.Now().Format(time.RFC3339)
	_, err := fmt.Fprintf(l.w, "%s %s %s\n", ts, level, fmt.Sprint(keyvals...))
	return err
}

// FilterOption configures a filtering Logger.
type FilterOption func(*filter)

// FilterLevel drops any record below level.
func FilterLevel(level Level) FilterOption {
	return func(f *filter) { f.level = level }
}

type filter struct {
	logger Logger
	level  Level
}

// NewFilter wraps logger with a minimum-severity gate.
func NewFilter(logger Logger, opts ...FilterOption) Logger {
	f := &filter{logger: logger, level: LevelDebug}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *filter) Log(level Level, keyvals ...interface{}) error {
	if level < f.level {
		return nil
	}
	return f.logger.Log(level, keyvals...)
}

// Helper adds printf-style convenience methods over a Logger.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

func (h *Helper) log(level Level, format string, a ...interface{}) {
	if h == nil || h.logger == nil {
		return
	}
	_ = h.logger.Log(level, fmt.Sprintf(format, a...))
}

// Debugf logs at LevelDebug.
func (h *Helper) Debugf(format string, a ...interface{}) { h.log(LevelDebug, format, a...) }

// Infof logs at LevelInfo.
func (h *Helper) Infof(format string, a ...interface{}) { h.log(LevelInfo, format, a...) }

// Warnf logs at LevelWarn.
func (h *Helper) Warnf(format string, a ...interface{}) { h.log(LevelWarn, format, a...) }

// Errorf logs at LevelError.
func (h *Helper) Errorf(format string, a ...interface{}) { h.log(LevelError, format, a...) }

// Default is a package-level helper writing to stderr at LevelInfo, handy
// for callers that don't want to thread a logger through.
var Default = NewHelper(NewFilter(NewStdLogger(os.Stderr), FilterLevel(LevelInfo)))
