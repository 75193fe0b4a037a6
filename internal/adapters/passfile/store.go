// Package passfile persists pass marks as a small JSON file. It is the
// default store: a single-device ledger does not need a database, it
// needs a file that survives restarts and is easy to inspect by hand.
package passfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sztanko/madeira-pass/internal/core/domain"
)

const formatVersion = 1

type document struct {
	Version int               `json:"version"`
	Marks   []domain.PaidMark `json:"marks"`
}

// Store reads and writes the pass file. Writes go through a temp file
// and a rename so a crash mid-write never leaves a half-written file
// behind.
type Store struct {
	path string
}

// NewStore creates a store at the given path. The parent directory is
// created on first save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads all persisted marks. A missing file is a fresh install,
// not an error; anything unreadable or unparsable is.
func (s *Store) Load(ctx context.Context) ([]domain.PaidMark, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pass file %s: %w", s.path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse pass file %s: %w", s.path, err)
	}
	if doc.Version > formatVersion {
		return nil, fmt.Errorf("pass file %s: version %d is newer than this build", s.path, doc.Version)
	}
	return doc.Marks, nil
}

// Save atomically replaces the file with the given marks.
func (s *Store) Save(ctx context.Context, marks []domain.PaidMark) error {
	if marks == nil {
		marks = []domain.PaidMark{}
	}
	data, err := json.MarshalIndent(document{Version: formatVersion, Marks: marks}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode pass file: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create pass dir %s: %w", dir, err)
		}
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace pass file %s: %w", s.path, err)
	}
	return nil
}
