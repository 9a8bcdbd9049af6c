// Package logger provides leveled logging for validation runs. Probe
// traffic logs at debug, run milestones at info. Lines are stamped with
// the time elapsed since the logger was created, which for a one-shot
// run reads as time since process start.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Level represents the logging level.
type Level int

// Log levels.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

// String returns the string representation of the level.
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
	default:
		return ""
	}
}

// Logger writes leveled, elapsed-time-stamped lines to a single writer.
type Logger struct {
	level atomic.Int32
	start time.Time

	mu     sync.Mutex
	output io.Writer
}

var defaultLogger = New(os.Stderr, LevelInfo)

// Default returns the process-wide logger.
func Default() *Logger {
	return defaultLogger
}

// New creates a logger writing to output at the given level.
func New(output io.Writer, level Level) *Logger {
	l := &Logger{
		start:  time.Now(),
		output: output,
	}
	l.level.Store(int32(level))
	return l
}

// SetLevel sets the logging level.
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// SetOutput sets the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

func (l *Logger) log(level Level, format string, args ...any) {
	if level < Level(l.level.Load()) {
		return
	}

	elapsed := time.Since(l.start).Seconds()
	msg := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.output, "[%8.3fs] %-5s %s\n", elapsed, level.String(), msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...any) {
	l.log(LevelDebug, format, args...)
}

// Info logs an info message.
func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

// Debug logs a debug message using the default logger.
func Debug(format string, args ...any) {
	defaultLogger.Debug(format, args...)
}

// Info logs an info message using the default logger.
func Info(format string, args ...any) {
	defaultLogger.Info(format, args...)
}

// Warn logs a warning message using the default logger.
func Warn(format string, args ...any) {
	defaultLogger.Warn(format, args...)
}

// Error logs an error message using the default logger.
func Error(format string, args ...any) {
	defaultLogger.Error(format, args...)
}

// SetLevel sets the level of the default logger.
func SetLevel(level Level) {
	defaultLogger.SetLevel(level)
}

// SetOutput sets the output of the default logger.
func SetOutput(w io.Writer) {
	defaultLogger.SetOutput(w)
}

// Disable silences the default logger.
func Disable() {
	defaultLogger.SetLevel(LevelNone)
}
