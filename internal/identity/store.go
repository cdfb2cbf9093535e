package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"lockersync/internal/locker"
)

// FileStore persists the uploader identity as JSON.
type FileStore struct {
	path string
}

// NewFileStore builds a FileStore for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the stored identity. A missing file resolves to a zero identity.
func (s *FileStore) Load() (locker.Identity, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return locker.Identity{}, nil
		}
		return locker.Identity{}, fmt.Errorf("read uploader identity: %w", err)
	}
	var id locker.Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return locker.Identity{}, fmt.Errorf("decode uploader identity: %w", err)
	}
	return id, nil
}

// Save writes the identity with owner-only permissions.
func (s *FileStore) Save(id locker.Identity) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure identity directory: %w", err)
	}
	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return fmt.Errorf("encode uploader identity: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write uploader identity: %w", err)
	}
	return nil
}
