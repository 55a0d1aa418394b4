// Package logging builds the process logger: a slog text handler writing to a
// strftime-named, size-rotated file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"voxrag/internal/domain"
)

// ParseLevel maps debug|info|warn|error (case-insensitive) to a slog level.
// An empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: log level %q", domain.ErrConfiguration, s)
}

// FileName renders pattern with strftime codes against t.
func FileName(pattern string, t time.Time) string {
	return strftime.Format(pattern, t)
}

// New returns a text logger writing to w at level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Setup opens the log file named by pattern at start time now and returns a
// logger at level together with the file, which the caller must close. Rotated
// files are named by the same pattern.
func Setup(level, pattern string, now time.Time, opts ...Option) (*slog.Logger, *RotatingFile, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	f, err := NewRotatingFile(pattern, now, opts...)
	if err != nil {
		return nil, nil, err
	}
	return New(f, lvl), f, nil
}
