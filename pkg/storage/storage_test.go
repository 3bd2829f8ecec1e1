package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func TestStorageFS(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "metadata"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "metadata", "train_split.txt"), []byte("crash_001\n"), 0644))

	s, err := NewStorageFS(logs.NewTestingLog(t), root)
	require.NoError(t, err)

	b, err := ReadFile(s, "metadata/train_split.txt")
	require.NoError(t, err)
	require.Equal(t, "crash_001\n", string(b))

	require.NoError(t, s.Stat("metadata/train_split.txt"))
	require.True(t, errors.Is(s.Stat("metadata/val_split.txt"), ErrNotFound))
	require.True(t, errors.Is(s.Stat("metadata"), ErrNotFound))

	_, err = s.ReadFile("metadata/missing.json")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.ReadFile("../secret")
	require.ErrorIs(t, err, ErrInvalidName)

	fn, err := s.Filename("videos/crash/crash_001.mp4")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "videos", "crash", "crash_001.mp4"), fn)
}

func TestStorageFSMissingRoot(t *testing.T) {
	_, err := NewStorageFS(logs.NewTestingLog(t), filepath.Join(t.TempDir(), "nope"))
	require.ErrorIs(t, err, ErrNotFound)
}
