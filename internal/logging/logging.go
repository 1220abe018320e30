// Package logging configures the pipeline's structured logger: a text
// handler writing to stdout and, when configured, a size-rotated log file.
// Components receive the logger explicitly at construction; there is no
// process-wide logger state.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelCritical marks terminal pipeline failures (missing source file,
// load failure at the top-level boundary).
const LevelCritical = slog.Level(12)

// Options configures the logger sinks.
type Options struct {
	// File is the log file path. Empty disables the file sink.
	File string
	// MaxSizeMB is the rotation threshold for the log file.
	MaxSizeMB int
	// MaxBackups is the number of rotated files to keep.
	MaxBackups int
	// Verbose lowers the minimum level to debug.
	Verbose bool
}

// New builds the pipeline logger. The returned closer releases the file
// sink and must be called on every exit path.
func New(opts Options) (*slog.Logger, func() error, error) {
	writers := []io.Writer{os.Stdout}
	closer := func() error { return nil }

	if opts.File != "" {
		if dir := filepath.Dir(opts.File); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, nil, err
			}
		}
		maxSize := opts.MaxSizeMB
		if maxSize == 0 {
			maxSize = 5
		}
		maxBackups := opts.MaxBackups
		if maxBackups == 0 {
			maxBackups = 2
		}
		rotated := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
		}
		writers = append(writers, rotated)
		closer = rotated.Close
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelCritical {
					a.Value = slog.StringValue("CRITICAL")
				}
			}
			return a
		},
	})

	return slog.New(handler), closer, nil
}

// Critical logs at the critical level.
func Critical(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelCritical, msg, args...)
}
