package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
)

type Check struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Bundle is a sanitized diagnostic snapshot. It never carries member
// records, only counts and paths.
type Bundle struct {
	ID          string         `json:"id"`
	GeneratedAt string         `json:"generated_at"`
	GOOS        string         `json:"goos"`
	GOARCH      string         `json:"goarch"`
	GoVersion   string         `json:"go_version"`
	Version     map[string]any `json:"version,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
	Store       map[string]any `json:"store,omitempty"`
	Checks      []Check        `json:"checks,omitempty"`
	Notes       []string       `json:"notes,omitempty"`
}

func NewBundle() Bundle {
	return Bundle{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339Nano),
		GOOS:        runtime.GOOS,
		GOARCH:      runtime.GOARCH,
		GoVersion:   runtime.Version(),
	}
}

// Healthy reports whether every recorded check passed.
func (b Bundle) Healthy() bool {
	for _, check := range b.Checks {
		if !check.OK {
			return false
		}
	}
	return true
}

func WriteBundle(outputPath string, bundle Bundle) error {
	if outputPath == "" {
		return fmt.Errorf("write debug bundle: output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o700); err != nil {
		return fmt.Errorf("write debug bundle: create output directory: %w", err)
	}

	payload, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("write debug bundle: marshal json: %w", err)
	}
	if err := os.WriteFile(outputPath, payload, 0o600); err != nil {
		return fmt.Errorf("write debug bundle: %w", err)
	}
	return nil
}
