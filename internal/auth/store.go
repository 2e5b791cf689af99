package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/beatsync/internal/shared"
)

// Persistent value names. Each is one raw text file under the data directory.
const (
	ValueAccessToken  = "ACCESS_TOKEN"
	ValueRefreshToken = "REFRESH_TOKEN"
)

// ValueStore is a durable store for named persistent values.
//
// Read returns the empty string for an absent value; Delete on an absent
// value is a no-op. Writes are not atomic across process crashes, which is
// an accepted risk for the token pair (a crash between refresh and persist
// loses at most one refresh round trip).
type ValueStore interface {
	Read(name string) (string, error)
	Write(name, value string) error
	Delete(name string) error
}

// FileStore implements [ValueStore] with one file per value.
type FileStore struct {
	dir string
}

var _ ValueStore = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Read(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", shared.ErrValueStore, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileStore) Write(name, value string) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValueStore, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), []byte(value), 0600); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValueStore, err)
	}
	return nil
}

func (s *FileStore) Delete(name string) error {
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", shared.ErrValueStore, err)
	}
	return nil
}
