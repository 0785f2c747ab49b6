package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/amanthanvi/registry/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewRotatingWriter opens the registry log file described by cfg, creating
// its directory with owner-only permissions. Rotated files keep the local
// timestamp in their name.
func NewRotatingWriter(cfg config.LoggingConfig) (*lumberjack.Logger, error) {
	path := strings.TrimSpace(cfg.File)
	switch path {
	case "":
		return nil, fmt.Errorf("open log file: path must not be empty")
	case config.LogFileStderr:
		return nil, fmt.Errorf("open log file: %q is not a file target", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("open log file: create directory: %w", err)
	}

	maxSizeMB, maxFiles := cfg.Rotation()
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxFiles,
		LocalTime:  true,
	}, nil
}
