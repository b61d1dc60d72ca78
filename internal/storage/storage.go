// Package storage persists the last known bookmark collection so the client
// can show something before the first fetch completes.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nikbrunner/bmsync/internal/model"
)

// Storage defines the interface for persisting bookmark snapshots.
type Storage interface {
	Load() ([]model.Bookmark, error)
	Save(bookmarks []model.Bookmark) error
}

// Driver names accepted by Open.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
	DriverNone   = "none"
)

// Open returns the storage for driver at path. DriverNone returns a nil
// Storage and no error.
func Open(driver, path string) (Storage, error) {
	switch driver {
	case DriverJSON:
		return NewJSONStorage(path), nil
	case DriverSQLite:
		s, err := NewSQLiteStorage(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", driver)
	}
}

// Close releases storage resources if the backend holds any.
func Close(s Storage) error {
	if c, ok := s.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

type snapshot struct {
	SavedAt   time.Time        `json:"savedAt"`
	Bookmarks []model.Bookmark `json:"bookmarks"`
}

// JSONStorage implements Storage using a JSON file.
type JSONStorage struct {
	path string
}

// NewJSONStorage creates a new JSONStorage with the given file path.
func NewJSONStorage(path string) *JSONStorage {
	return &JSONStorage{path: path}
}

// Path returns the storage file path.
func (s *JSONStorage) Path() string {
	return s.path
}

// Load reads the snapshot from the JSON file.
// Returns an empty list if the file doesn't exist.
func (s *JSONStorage) Load() ([]model.Bookmark, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.Bookmark{}, nil
		}
		return nil, err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.path, err)
	}
	if snap.Bookmarks == nil {
		snap.Bookmarks = []model.Bookmark{}
	}
	return snap.Bookmarks, nil
}

// Save writes the snapshot to the JSON file.
// Creates the directory if it doesn't exist.
func (s *JSONStorage) Save(bookmarks []model.Bookmark) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if bookmarks == nil {
		bookmarks = []model.Bookmark{}
	}

	data, err := json.MarshalIndent(snapshot{SavedAt: time.Now().UTC(), Bookmarks: bookmarks}, "", "  ")
	if err != nil {
		return err
	}

	// Write to a sibling file first so a crash never leaves half a snapshot.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
