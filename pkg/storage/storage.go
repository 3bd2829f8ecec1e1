package storage

import (
	"errors"
	"io"
	"time"
)

var ErrNotFound = errors.New("Not found")
var ErrNotAFilesystem = errors.New("Storage is not a filesystem")
var ErrInvalidName = errors.New("Invalid file name")

// Storage is a read-only view of a blob store (eg a directory on disk, or a GCS bucket).
// Names are slash-separated and relative to the root of the store.
type Storage interface {
	// When finished, you must close File.Reader.
	// If the object does not exist, the error wraps ErrNotFound.
	ReadFile(name string) (*File, error)

	// Returns nil if the object exists, or an error wrapping ErrNotFound if it does not.
	Stat(name string) error

	// Returns the path of the object on the local filesystem.
	// Returns ErrNotAFilesystem if the store is remote.
	Filename(name string) (string, error)
}

// File is an element in blob storage.
type File struct {
	Reader     io.ReadCloser
	ModifiedAt time.Time
	Size       int64
}

// ReadFile reads the entire contents of the named object
func ReadFile(s Storage, name string) ([]byte, error) {
	f, err := s.ReadFile(name)
	if err != nil {
		return nil, err
	}
	defer f.Reader.Close()
	return io.ReadAll(f.Reader)
}
