// Package checkpoint persists the instant up to which releases have been
// reported.
package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Store reads and writes the checkpoint file. The file holds one base-10
// integer: milliseconds since the Unix epoch.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load returns the stored instant. ok is false when no checkpoint exists
// yet, which marks the first run.
func (s *Store) Load() (t time.Time, ok bool, err error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("reading checkpoint: %w", err)
	}

	ms, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing checkpoint %s: %w", s.path, err)
	}

	return time.UnixMilli(ms), true, nil
}

// Save replaces the checkpoint with t. The write goes to a temp file that is
// renamed over the old one, so a crash leaves either value intact.
func (s *Store) Save(t time.Time) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("creating directories: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(strconv.FormatInt(t.UnixMilli(), 10)), 0644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}
