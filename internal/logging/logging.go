// Package logging wraps zerolog the way internal/progress wraps
// progressbar: a small constructor around a library the rest of bff calls
// directly, rather than routing every call site through a bespoke
// interface.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger writing structured events to w (os.Stderr in
// production). levelName is parsed with zerolog.ParseLevel; an empty or
// invalid value falls back to info. When pretty is set, output goes through
// zerolog.ConsoleWriter instead of raw JSON, for interactive runs.
func New(w io.Writer, levelName string, pretty bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil || levelName == "" {
		level = zerolog.InfoLevel
	}

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Default returns a New logger writing to os.Stderr at info level.
func Default() zerolog.Logger {
	return New(os.Stderr, "info", false)
}

// TaskField and friends name the structured fields bff's components attach
// to log events, so call sites spell them consistently instead of each
// picking its own string.
const (
	FieldShardDir     = "shard_dir"
	FieldFile         = "file"
	FieldTaskID       = "task_id"
	FieldBytesRemoved = "bytes_removed"
	FieldBytesTotal   = "bytes_total"
)

// WithTask returns a child logger with task_id and shard_dir fields set,
// used at the top of every per-task log line.
func WithTask(l zerolog.Logger, taskID, shardDir string) zerolog.Logger {
	return l.With().Str(FieldTaskID, taskID).Str(FieldShardDir, shardDir).Logger()
}
