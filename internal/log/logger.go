package log

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/amanthanvi/registry/internal/config"
)

// New builds the process logger from cfg: JSON records, redacted, written
// to the rotating log file or to stderr when cfg.File is config.LogFileStderr.
// The returned closer releases the file.
func New(cfg config.LoggingConfig, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		out    io.Writer = stderr
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" && cfg.File != config.LogFileStderr {
		writer, err := NewRotatingWriter(cfg)
		if err != nil {
			return nil, nil, err
		}
		out = writer
		closer = writer
	}
	if out == nil {
		out = io.Discard
	}

	base := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(NewRedactingHandler(base)), closer, nil
}

func ParseLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", value)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
