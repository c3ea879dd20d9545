// Package statestore persists Station's small JSON state records (rotation
// position, DJ pool position) across restarts. Writes are atomic: temp file
// in the target directory, fsync, then rename over the destination, so a
// crash mid-write never leaves a reader with a torn file.
package statestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveJSON marshals v and atomically replaces path with it. The parent
// directory is created if missing.
func SaveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(filepath.Clean(path))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("statestore save: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json.tmp")
	if err != nil {
		return fmt.Errorf("statestore save: create temp: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if writeErr != nil || syncErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("statestore save: write: %w", writeErr)
		}
		if syncErr != nil {
			return fmt.Errorf("statestore save: sync: %w", syncErr)
		}
		return fmt.Errorf("statestore save: close: %w", closeErr)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("statestore save: chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("statestore save: rename: %w", err)
	}
	return nil
}

// LoadJSON unmarshals path into v. A missing file is reported as-is via
// os.IsNotExist so callers can treat first-boot as a non-error.
func LoadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
