package storagecache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/tcas/pkg/storage"
)

// StorageCache copies blob store files onto the local disk, so that
// code which can only open real files (eg the OpenCV video decoder)
// can work with a remote dataset.
// Items that are open are locked, and never evicted. Once the cache
// grows beyond maxBytes, the least recently used unlocked items are
// deleted before the next item is fetched.
type StorageCache struct {
	log       logs.Log
	upstream  storage.Storage
	cacheRoot string
	maxBytes  int64

	itemsLock sync.Mutex
	bytesUsed int64
	items     map[string]*cacheItem
	tick      int64
}

type cacheItem struct {
	filename string
	size     int64
	lock     int
	lastUsed int64
}

// CacheItemReader is an open file inside the cache.
// You must Close it when finished, otherwise the item can never be evicted.
type CacheItemReader struct {
	store *StorageCache
	item  *cacheItem
	f     *os.File
}

func (r *CacheItemReader) Read(p []byte) (n int, err error) {
	return r.f.Read(p)
}

func (r *CacheItemReader) Seek(offset int64, whence int) (int64, error) {
	return r.f.Seek(offset, whence)
}

func (r *CacheItemReader) Close() error {
	r.store.itemsLock.Lock()
	defer r.store.itemsLock.Unlock()
	r.item.lock--
	return r.f.Close()
}

// Filename returns the path of the cached copy on local disk
func (r *CacheItemReader) Filename() string {
	return r.f.Name()
}

// Written into cacheRoot, so that we only ever wipe a directory that we created
const markerFilename = ".tcas-video-cache"

var ErrNotACacheDir = errors.New("Directory is not empty, and is not a video cache")

// The contents of cacheRoot are wiped.
// cacheRoot must be missing, empty, or a directory previously used by a StorageCache.
func NewStorageCache(log logs.Log, upstream storage.Storage, cacheRoot string, maxBytes int64) (*StorageCache, error) {
	if err := resetCacheRoot(cacheRoot); err != nil {
		return nil, err
	}
	c := &StorageCache{
		log:       log,
		upstream:  upstream,
		cacheRoot: cacheRoot,
		maxBytes:  maxBytes,
		items:     map[string]*cacheItem{},
	}
	return c, nil
}

func resetCacheRoot(cacheRoot string) error {
	entries, err := os.ReadDir(cacheRoot)
	if err == nil && len(entries) != 0 {
		if _, err := os.Stat(filepath.Join(cacheRoot, markerFilename)); err != nil {
			return fmt.Errorf("%w: %v", ErrNotACacheDir, cacheRoot)
		}
		if err := os.RemoveAll(cacheRoot); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(cacheRoot, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cacheRoot, markerFilename), nil, 0644)
}

// Open returns a reader over the local copy of 'filename', fetching it from upstream if necessary.
// Upstream errors (including storage.ErrNotFound) are returned unchanged.
func (s *StorageCache) Open(filename string) (*CacheItemReader, error) {
	s.itemsLock.Lock()
	defer s.itemsLock.Unlock()
	item := s.items[filename]
	if item == nil {
		s.purgeStale()
		if err := s.acquire(filename); err != nil {
			return nil, err
		}
		item = s.items[filename]
	}
	f, err := os.Open(s.localPath(filename))
	if err != nil {
		return nil, err
	}
	item.lock++
	item.lastUsed = s.tick
	s.tick++
	return &CacheItemReader{
		store: s,
		item:  item,
		f:     f,
	}, nil
}

// BytesUsed returns the total size of all items in the cache
func (s *StorageCache) BytesUsed() int64 {
	s.itemsLock.Lock()
	defer s.itemsLock.Unlock()
	return s.bytesUsed
}

func (s *StorageCache) localPath(filename string) string {
	return filepath.Join(s.cacheRoot, filepath.FromSlash(filename))
}

func (s *StorageCache) acquire(filename string) error {
	src, err := s.upstream.ReadFile(filename)
	if err != nil {
		return err
	}
	defer src.Reader.Close()
	s.log.Infof("Caching %v (%v bytes)", filename, src.Size)
	ondiskFilename := s.localPath(filename)
	if err := os.MkdirAll(filepath.Dir(ondiskFilename), 0755); err != nil {
		return err
	}
	dst, err := os.Create(ondiskFilename)
	if err != nil {
		return err
	}
	size, err := io.Copy(dst, src.Reader)
	if err == nil {
		err = dst.Close()
	} else {
		dst.Close()
	}
	if err != nil {
		os.Remove(dst.Name())
		return err
	}
	item := &cacheItem{
		filename: filename,
		size:     size,
		lastUsed: s.tick,
		lock:     0,
	}
	s.bytesUsed += size
	s.items[filename] = item
	return nil
}

func (s *StorageCache) purgeStale() {
	if s.bytesUsed > s.maxBytes {
		unused := []*cacheItem{}
		for _, item := range s.items {
			if item.lock == 0 {
				unused = append(unused, item)
			}
		}
		sort.Slice(unused, func(i, j int) bool {
			return unused[i].lastUsed < unused[j].lastUsed
		})
		for _, item := range unused {
			if s.bytesUsed <= s.maxBytes {
				break
			}
			s.log.Debugf("Evicting %v from video cache", item.filename)
			s.bytesUsed -= item.size
			delete(s.items, item.filename)
			os.Remove(s.localPath(item.filename))
		}
	}
}
