// Package logging provides a leveled logger with optional JSON file sink.
// ANSI colors are managed by [term.Configure]; the logger reads them from
// the [term] package at write time.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kesler/mediabox/internal/config"
	"github.com/kesler/mediabox/internal/term"
)

const timeFormat = "2006-01-02 15:04:05"

// Logger writes leveled messages to stdout/stderr via a zerolog console
// writer shaped to match this project's `TIMESTAMP [LEVEL] message` console
// output, and optionally mirrors every record as line-delimited JSON to a
// log file — useful when a batch runs unattended across several hosts and
// an operator greps the records after the fact. Each JSON record carries
// the level, time and message text; no other fields are added. Writes are
// serialized under a mutex; zerolog's writers don't guarantee atomic writes
// of multi-byte lines under concurrent use.
type Logger struct {
	mu      sync.Mutex
	stdout  zerolog.Logger
	stderr  zerolog.Logger
	file    *os.File
	jsonLog zerolog.Logger
	hasFile bool
}

// NewLogger configures terminal colors via [term.Configure] and opens a log
// file if cfg.LogFile is set. The caller must call [Logger.Close] when
// finished.
func NewLogger(cfg *config.Config) (*Logger, error) {
	term.Configure(cfg.ColorMode)

	l := &Logger{
		stdout: zerolog.New(consoleWriter(os.Stdout)).With().Timestamp().Logger(),
		stderr: zerolog.New(consoleWriter(os.Stderr)).With().Timestamp().Logger(),
	}

	if cfg.LogFile != "" {
		dir := filepath.Dir(cfg.LogFile)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.file = f
		l.hasFile = true
		l.jsonLog = zerolog.New(f).With().Timestamp().Logger()
	}
	return l, nil
}

// consoleWriter builds a zerolog.ConsoleWriter that renders the level field
// through levelText/levelColor instead of zerolog's built-in level styling,
// so custom levels (SUCCESS, RENDER, OUTLIER) render the same way the core
// ones do.
func consoleWriter(out *os.File) zerolog.ConsoleWriter {
	w := zerolog.NewConsoleWriter(func(cw *zerolog.ConsoleWriter) {
		cw.Out = out
		cw.TimeFormat = timeFormat
		cw.NoColor = true // coloring is applied in FormatLevel using term's palette
	})
	w.FormatLevel = func(i interface{}) string {
		level, _ := i.(string)
		level = strings.ToUpper(level)
		color := levelColor(level)
		if color == "" {
			return "[" + level + "]"
		}
		return color + "[" + level + "]" + term.NC
	}
	w.FormatMessage = func(i interface{}) string {
		msg, _ := i.(string)
		return msg
	}
	return w
}

// levelColor maps a level name to its ANSI color from [term]. Empty string
// disables coloring (either the level is unknown or colors are off).
func levelColor(level string) string {
	switch level {
	case "INFO":
		return term.Blue
	case "SUCCESS":
		return term.Green
	case "WARN":
		return term.Yellow
	case "ERROR":
		return term.Red
	case "RENDER":
		return term.Magenta
	case "OUTLIER":
		return term.Orange
	case "DEBUG":
		return term.Cyan
	default:
		return ""
	}
}

// Close flushes and closes the log file, if one was opened.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// emit writes one record to the console (stdout, or stderr for errors) and,
// if a log file is open, mirrors it there as JSON.
func (l *Logger) emit(level string, stderr bool, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	console := l.stdout
	if stderr {
		console = l.stderr
	}
	console.Log().Str("level", level).Msg(msg)

	if l.hasFile {
		l.jsonLog.Log().Str("level", level).Msg(msg)
	}
}

// Info logs an informational message (blue).
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit("INFO", false, fmt.Sprintf(format, args...))
}

// Success logs a success message (green).
func (l *Logger) Success(format string, args ...interface{}) {
	l.emit("SUCCESS", false, fmt.Sprintf(format, args...))
}

// Warn logs a warning (yellow).
func (l *Logger) Warn(format string, args ...interface{}) {
	l.emit("WARN", false, fmt.Sprintf(format, args...))
}

// Error logs an error (red) to stderr.
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit("ERROR", true, fmt.Sprintf(format, args...))
}

// Render logs a plan description for a file about to be processed (magenta).
func (l *Logger) Render(format string, args ...interface{}) {
	l.emit("RENDER", false, fmt.Sprintf(format, args...))
}

// Outlier logs an informational note about an unusually small or large
// source bitrate (orange). Does not affect the decision engine.
func (l *Logger) Outlier(format string, args ...interface{}) {
	l.emit("OUTLIER", false, fmt.Sprintf(format, args...))
}

// Debug logs a debug message (cyan) only when verbose is true.
func (l *Logger) Debug(verbose bool, format string, args ...interface{}) {
	if !verbose {
		return
	}
	l.emit("DEBUG", false, fmt.Sprintf(format, args...))
}
