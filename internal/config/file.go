package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// File is the per-user state remembered between runs.
type File struct {
	// Location is the last resolved workspace location, e.g. "/acme/projects/p1".
	Location string `json:"location,omitempty"`
	UserID   string `json:"userId,omitempty"`
	// BoardMode is the last grouping used by the interactive board.
	BoardMode string `json:"boardMode,omitempty"`
	// BoardKind is "projects", "tasks" or "issues".
	BoardKind string `json:"boardKind,omitempty"`
}

func Dir() (string, error) {
	// Override keeps tests away from the real home directory.
	if v := strings.TrimSpace(os.Getenv("TEAMBOARD_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".teamboard"), nil
}

func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadFile reads the config file. A missing file is an empty config.
func LoadFile() (*File, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &File{}, nil
		}
		return nil, err
	}
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}

// SaveFile writes the config file through a temp file and rename, so the CLI, the board and the
// server can save concurrently without tearing it.
func SaveFile(f *File) error {
	path, err := Path()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(dir, "config.json.*.tmp", path, b, 0o600)
}

// Update loads the file, applies fn and saves it.
func Update(fn func(f *File)) error {
	f, err := LoadFile()
	if err != nil {
		return err
	}
	fn(f)
	return SaveFile(f)
}

// DataDir is where the sqlite backend keeps its database when no dir is configured.
func DataDir(configured string) (string, error) {
	if v := strings.TrimSpace(configured); v != "" {
		return v, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}
