package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrBlobNotFound is returned when no blob exists at the requested path.
var ErrBlobNotFound = errors.New("blob not found")

// Store defines the interface for blob storage backends.
// This allows swapping the filesystem for S3 or other backends later.
type Store interface {
	// Write stores data under a freshly generated unique path and returns it.
	Write(data []byte) (string, error)
	// WriteAt stores data at an exact path, used for derived assets such as
	// thumbnails. Whole-buffer writes only, no append semantics.
	WriteAt(path string, data []byte) error
	// Read returns the full contents of the blob at path, or ErrBlobNotFound.
	Read(path string) ([]byte, error)
	Exists(path string) bool
	EnsureDir() error
}

// FileSystemStore keeps blobs as flat files under a root directory,
// named by UUID so two writes can never collide.
type FileSystemStore struct {
	basePath string
}

// NewFileSystemStore creates a new filesystem storage backend.
func NewFileSystemStore(basePath string) *FileSystemStore {
	return &FileSystemStore{basePath: basePath}
}

// EnsureDir creates the storage directory if it doesn't exist.
func (fs *FileSystemStore) EnsureDir() error {
	if err := os.MkdirAll(fs.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", fs.basePath, err)
	}
	return nil
}

// Write stores data under a new UUID-named file and returns its path.
func (fs *FileSystemStore) Write(data []byte) (string, error) {
	path := filepath.Join(fs.basePath, uuid.NewString())
	if err := fs.WriteAt(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteAt writes data to an exact path inside the store.
func (fs *FileSystemStore) WriteAt(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", path, err)
	}
	return nil
}

// Read returns the blob stored at path.
func (fs *FileSystemStore) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read blob %s: %w", path, err)
	}
	return data, nil
}

// Exists reports whether a blob is present at path.
func (fs *FileSystemStore) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
