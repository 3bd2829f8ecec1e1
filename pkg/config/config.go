package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/tcas/pkg/dataset"
	"github.com/cyclopcam/tcas/pkg/storage"
	"github.com/cyclopcam/tcas/pkg/storagecache"
)

const DefaultFilename = "tcas.json"
const DefaultVideoCacheMB = 1024
const DefaultFPS = 30

var ErrStorage = errors.New("Exactly one of the dataset storage options must be configured (i.e. either 'filesystem' or 'gcs')")

type Config struct {
	Dataset      StorageConfig `json:"dataset"`      // Where the dataset lives
	VideoCache   string        `json:"videoCache"`   // Path to the local video cache directory. Only used with remote storage.
	VideoCacheMB int           `json:"videoCacheMB"` // Size of the local video cache
	VideoExt     string        `json:"videoExt"`     // Extension of video files (default mp4)
	StrictDecode bool          `json:"strictDecode"` // Fail on video decode errors, instead of returning the frames decoded so far
	FPS          int           `json:"fps"`          // Frame rate of the dataset videos, for time-to-accident
	Catalog      string        `json:"catalog"`      // Path to the SQLite catalog
}

// One of the storage options must be configured (i.e. either 'filesystem' or 'gcs')
type StorageConfig struct {
	Filesystem *StorageConfigFS  `json:"filesystem"`
	GCS        *StorageConfigGCS `json:"gcs"`
}

type StorageConfigFS struct {
	Root string `json:"root"` // Path to the root of the dataset
}

type StorageConfigGCS struct {
	Bucket string `json:"bucket"` // Name of the GCS bucket
	Prefix string `json:"prefix"` // Path of the dataset root inside the bucket
}

// Load reads a JSON config file and fills in defaults
func Load(filename string) (*Config, error) {
	if filename == "" {
		filename = DefaultFilename
	}
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Error loading %v: %w", filename, err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("Error loading as JSON %v: %w", filename, err)
	}
	cfg.SetDefaults()
	return cfg, cfg.Validate()
}

// ForDirectory returns a config for a dataset in a local directory
func ForDirectory(root string) *Config {
	cfg := &Config{
		Dataset: StorageConfig{
			Filesystem: &StorageConfigFS{Root: root},
		},
	}
	cfg.SetDefaults()
	return cfg
}

func (c *Config) SetDefaults() {
	if c.VideoCache == "" {
		c.VideoCache = filepath.Join(os.TempDir(), "tcas-video-cache")
	}
	if c.VideoCacheMB == 0 {
		c.VideoCacheMB = DefaultVideoCacheMB
	}
	if c.VideoExt == "" {
		c.VideoExt = dataset.DefaultVideoExt
	}
	if c.FPS == 0 {
		c.FPS = DefaultFPS
	}
}

func (c *Config) Validate() error {
	if (c.Dataset.Filesystem == nil) == (c.Dataset.GCS == nil) {
		return ErrStorage
	}
	if c.FPS < 0 {
		return fmt.Errorf("%w: %v", dataset.ErrInvalidFPS, c.FPS)
	}
	return nil
}

// OpenStorage opens the configured dataset storage.
// For remote storage, a video cache is also created, otherwise the returned cache is nil.
func (c *Config) OpenStorage(log logs.Log) (storage.Storage, *storagecache.StorageCache, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	if c.Dataset.Filesystem != nil {
		store, err := storage.NewStorageFS(log, c.Dataset.Filesystem.Root)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
	store, err := storage.NewStorageGCS(log, c.Dataset.GCS.Bucket, c.Dataset.GCS.Prefix)
	if err != nil {
		return nil, nil, err
	}
	cache, err := storagecache.NewStorageCache(log, store, c.VideoCache, int64(c.VideoCacheMB)*1024*1024)
	if err != nil {
		return nil, nil, err
	}
	return store, cache, nil
}

// DatasetOptions returns the dataset options implied by the config.
// The caller still needs to provide the decoder and transform.
func (c *Config) DatasetOptions(cache *storagecache.StorageCache) dataset.Options {
	return dataset.Options{
		VideoExt:     c.VideoExt,
		StrictDecode: c.StrictDecode,
		VideoCache:   cache,
	}
}
