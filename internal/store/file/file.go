// Package file persists the monitor set as a JSON array on disk.
//
// This is the default backend: a single-process tool overwriting one small
// file. Save creates the parent directory if missing and writes the full
// contents; two consecutive writes fully supersede each other.
package file

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/bpmon/internal/monitor"
)

type Store struct {
	path string
}

// New returns a file store backed by path.
func New(path string) (*Store, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty store path")
	}
	return &Store{path: p}, nil
}

// Load reads the backing file. A missing file, parse failure or schema
// mismatch yields an empty set rather than an error: monitors are not
// critical-path data and a corrupt store just starts empty.
func (s *Store) Load() ([]monitor.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, nil
	}
	var records []monitor.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil
	}
	return records, nil
}

// Save overwrites the backing file with the full monitor set.
func (s *Store) Save(records []monitor.Record) error {
	if records == nil {
		records = []monitor.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *Store) Close() error { return nil }
