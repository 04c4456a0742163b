package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"nexus_terminal/internal/models"
)

// ExportVersion is the schema version written into every export.
const ExportVersion = "1.0"

// SessionExport is the shutdown record of a session. It is written for
// inspection only; the engine never loads it back.
type SessionExport struct {
	Version    string                   `json:"version"`
	ExportedAt time.Time                `json:"exported_at"`
	Portfolio  models.PortfolioSnapshot `json:"portfolio"`
	LastSignal *models.AdvisorySignal   `json:"last_signal,omitempty"`
}

// WriteExport writes e to path using an atomic write pattern.
// 1. Write to a temporary file in the same directory.
// 2. Sync to ensure data is on disk.
// 3. Rename temporary file to destination (atomic operation).
func WriteExport(path string, e SessionExport) error {
	if e.Version == "" {
		e.Version = ExportVersion
	}
	b, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session export: %w", err)
	}

	// Same directory so the rename never crosses filesystems
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp export file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // No-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp export file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp export file: %w", err)
	}
	// Close explicitly before renaming (essential on Windows)
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp export file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace export file (atomic rename): %w", err)
	}
	return nil
}

// ReadExport decodes an export written by WriteExport.
func ReadExport(path string) (SessionExport, error) {
	var e SessionExport
	b, err := os.ReadFile(path)
	if err != nil {
		return e, err
	}
	if err := json.Unmarshal(b, &e); err != nil {
		return e, fmt.Errorf("decode session export: %w", err)
	}
	return e, nil
}
