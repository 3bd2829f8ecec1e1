package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/logs"
)

// StorageFS is a filesystem-based blob store
type StorageFS struct {
	Root string
	log  logs.Log
}

// The root directory must already exist. We never create it, because the dataset is read-only.
func NewStorageFS(log logs.Log, root string) (*StorageFS, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("Dataset root %v (relative path %v): %w", absRoot, root, wrapNotFound(err))
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("Dataset root %v is not a directory", absRoot)
	}
	return &StorageFS{
		Root: absRoot,
		log:  log,
	}, nil
}

func (s *StorageFS) fullPath(name string) (string, error) {
	if strings.Index(name, "..") >= 0 {
		return "", fmt.Errorf("%w %v", ErrInvalidName, name)
	}
	return filepath.Join(s.Root, filepath.FromSlash(name)), nil
}

func (s *StorageFS) ReadFile(name string) (*File, error) {
	full, err := s.fullPath(name)
	if err != nil {
		return nil, err
	}
	s.log.Debugf("Reading %v", name)
	file, err := os.Open(full)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	st, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	return &File{
		Reader:     file,
		ModifiedAt: st.ModTime(),
		Size:       st.Size(),
	}, nil
}

func (s *StorageFS) Stat(name string) error {
	full, err := s.fullPath(name)
	if err != nil {
		return err
	}
	st, err := os.Stat(full)
	if err != nil {
		return wrapNotFound(err)
	}
	if st.IsDir() {
		return fmt.Errorf("%v is a directory: %w", name, ErrNotFound)
	}
	return nil
}

func (s *StorageFS) Filename(name string) (string, error) {
	return s.fullPath(name)
}

func wrapNotFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
