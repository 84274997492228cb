package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DataDir returns the data directory for all persisted state. It can be
// overridden with LAN_BRIDGE_DATA (used by tests); the default is
// ~/.lan-bridge.
func DataDir() string {
	if dir := os.Getenv("LAN_BRIDGE_DATA"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lan-bridge"
	}
	return filepath.Join(home, ".lan-bridge")
}

// UploadsDir returns the root of the category-partitioned file store.
func UploadsDir(dataDir string) string {
	return filepath.Join(dataDir, "uploads")
}

// EnsureLayout creates the data directory and the upload category
// subdirectories if they do not exist yet.
func EnsureLayout(dataDir string) error {
	dirs := []string{
		dataDir,
		filepath.Join(dataDir, "uploads", "images"),
		filepath.Join(dataDir, "uploads", "videos"),
		filepath.Join(dataDir, "uploads", "files"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create data dir %s: %w", d, err)
		}
	}
	return nil
}

// ReadJSON loads a JSON file into v. A missing file is reported via
// os.IsNotExist on the returned error.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// WriteJSON writes v as indented JSON, replacing the file contents.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
