// Package logging provides structured logging using Go's slog package.
//
// Loggers are built explicitly and passed to the code that logs; the
// package installs no global logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RunIDKey is the attribute key carrying the id of one merge run.
const RunIDKey = "run_id"

// Level represents a log level.
type Level int

const (
	// LevelDebug is for debug messages.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// ParseLevel parses a level name.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Format represents a log output format.
type Format int

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON Format = iota
	// FormatText outputs logs in human-readable text format.
	FormatText
)

func (f Format) String() string {
	if f == FormatText {
		return "text"
	}
	return "json"
}

// ParseFormat parses "json" or "text".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	}
	return FormatJSON, fmt.Errorf("unknown log format %q", s)
}

// Options configures New.
type Options struct {
	Level  Level
	Format Format
	// Output defaults to os.Stderr.
	Output io.Writer
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger with the given level and format.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	hopts := &slog.HandlerOptions{
		Level: opts.Level.slog(),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize timestamp format
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if opts.Format == FormatJSON {
		handler = slog.NewJSONHandler(out, hopts)
	} else {
		handler = slog.NewTextHandler(out, hopts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewRunID returns a fresh run id.
func NewRunID() string {
	return uuid.NewString()
}

// ForRun returns logger with the run id attached. An empty runID gets a
// fresh one.
func ForRun(logger *slog.Logger, runID string) *slog.Logger {
	if logger == nil {
		logger = Discard()
	}
	if runID == "" {
		runID = NewRunID()
	}
	return logger.With(RunIDKey, runID)
}

// Helper functions for merge events

// SourceLoaded logs a source document read into memory.
func SourceLoaded(logger *slog.Logger, path string, index, total int, args ...any) {
	allArgs := []any{
		"path", path,
		"index", index,
		"total", total,
	}
	allArgs = append(allArgs, args...)
	logger.Debug("source_loaded", allArgs...)
}

// SourceSkipped logs a source left out of the merge.
func SourceSkipped(logger *slog.Logger, path, reason, kind string, args ...any) {
	allArgs := []any{
		"path", path,
		"reason", reason,
		"kind", kind,
	}
	allArgs = append(allArgs, args...)
	logger.Warn("source_skipped", allArgs...)
}

// IdentifiersRenamed logs identifier collisions resolved in a source.
func IdentifiersRenamed(logger *slog.Logger, path string, count int, args ...any) {
	allArgs := []any{
		"path", path,
		"count", count,
	}
	allArgs = append(allArgs, args...)
	logger.Info("identifiers_renamed", allArgs...)
}

// AssetsCopied logs assets copied from a source.
func AssetsCopied(logger *slog.Logger, path string, count int, args ...any) {
	allArgs := []any{
		"path", path,
		"count", count,
	}
	allArgs = append(allArgs, args...)
	logger.Debug("assets_copied", allArgs...)
}

// MergeComplete logs the end of a successful run.
func MergeComplete(logger *slog.Logger, output string, merged, skipped int, duration time.Duration, args ...any) {
	allArgs := []any{
		"output", output,
		"merged", merged,
		"skipped", skipped,
		"duration_ms", duration.Milliseconds(),
	}
	allArgs = append(allArgs, args...)
	logger.Info("merge_complete", allArgs...)
}

// MergeFailed logs a run aborted by err.
func MergeFailed(logger *slog.Logger, err error, args ...any) {
	allArgs := []any{
		"error", err.Error(),
	}
	allArgs = append(allArgs, args...)
	logger.Error("merge_failed", allArgs...)
}
