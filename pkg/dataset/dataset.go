// Package dataset loads videos and annotations from the TCAS crash anticipation dataset.
//
// Layout of the dataset root:
//
//	metadata/<split>_split.txt       one video ID per line
//	metadata/statistics.json
//	videos/{crash,normal}/<id>.mp4
//	annotations/{crash,normal}/<id>.json
//
// IDs that start with "crash_" are stored in the crash directories, and everything else
// is stored in the normal directories.
package dataset

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/tcas/pkg/storage"
	"github.com/cyclopcam/tcas/pkg/storagecache"
	"github.com/cyclopcam/tcas/pkg/videox"
)

const DefaultVideoExt = "mp4"

type Options struct {
	Transform    videox.FrameTransform      // Optional transform applied to every decoded frame
	OpenDecoder  videox.OpenFunc            // Required for loading video frames (eg opencv.Open)
	VideoExt     string                     // File extension of videos. Default is "mp4"
	StrictDecode bool                       // Return ErrDecode on a decoder failure, instead of returning the frames decoded so far. See opencv.Decoder for what counts as a failure.
	VideoCache   *storagecache.StorageCache // Required for loading video frames, if the storage is not a local filesystem
}

// Sample is one element of the dataset
type Sample struct {
	ID         VideoID
	Category   Category
	Frames     []*cimg.Image
	Annotation *Annotation
}

// Dataset is one split of the dataset.
//
// Annotations are cached for the lifetime of the Dataset. The cache is never
// evicted, so if the files change on disk, you must create a new Dataset to see the changes.
// It is safe to use a Dataset from multiple goroutines.
type Dataset struct {
	Split Split

	log     logs.Log
	store   storage.Storage
	options Options
	videos  []VideoRef
	refs    map[VideoID]VideoRef

	annotationsLock sync.Mutex
	annotations     map[VideoID]*Annotation
}

// Open a dataset stored in a directory on the local filesystem
func Open(log logs.Log, root string, split Split, options Options) (*Dataset, error) {
	store, err := storage.NewStorageFS(log, root)
	if err != nil {
		return nil, err
	}
	return New(log, store, split, options)
}

// New reads the split's video list out of 'store'.
// Returns ErrNotFound if the split file does not exist.
func New(log logs.Log, store storage.Storage, split Split, options Options) (*Dataset, error) {
	if _, err := ParseSplit(string(split)); err != nil {
		return nil, err
	}
	if options.VideoExt == "" {
		options.VideoExt = DefaultVideoExt
	}
	d := &Dataset{
		Split:       split,
		log:         logs.NewPrefixLogger(log, "Dataset"),
		store:       store,
		options:     options,
		refs:        map[VideoID]VideoRef{},
		annotations: map[VideoID]*Annotation{},
	}
	if err := d.loadSplit(); err != nil {
		return nil, err
	}
	d.log.Infof("Loaded %v split with %v videos", split, len(d.videos))
	return d, nil
}

func (d *Dataset) loadSplit() error {
	name := d.Split.filename()
	raw, err := storage.ReadFile(d.store, name)
	if err != nil {
		return fmt.Errorf("Split file %v: %w", name, err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id == "" {
			continue
		}
		ref := NewVideoRef(VideoID(id))
		d.videos = append(d.videos, ref)
		d.refs[ref.ID] = ref
	}
	return scanner.Err()
}

// The category of a video in our split is decided once, when the split is loaded.
// IDs from outside the split are still allowed.
func (d *Dataset) refOf(id VideoID) VideoRef {
	if ref, ok := d.refs[id]; ok {
		return ref
	}
	return NewVideoRef(id)
}

// Len returns the number of videos in the split
func (d *Dataset) Len() int {
	return len(d.videos)
}

// IDs returns the video IDs of the split, in the order of the split file
func (d *Dataset) IDs() []VideoID {
	ids := make([]VideoID, len(d.videos))
	for i, v := range d.videos {
		ids[i] = v.ID
	}
	return ids
}

// Ref returns the video at the given index, without loading anything
func (d *Dataset) Ref(index int) (VideoRef, error) {
	if index < 0 || index >= len(d.videos) {
		return VideoRef{}, fmt.Errorf("%w: %v (size %v)", ErrIndexOutOfRange, index, len(d.videos))
	}
	return d.videos[index], nil
}

// Get decodes all the frames of the video at 'index', and loads its annotation
func (d *Dataset) Get(index int) (*Sample, error) {
	ref, err := d.Ref(index)
	if err != nil {
		return nil, err
	}
	frames, err := d.loadVideoFrames(ref)
	if err != nil {
		return nil, err
	}
	anno, err := d.loadAnnotation(ref)
	if err != nil {
		return nil, err
	}
	return &Sample{
		ID:         ref.ID,
		Category:   ref.Category,
		Frames:     frames,
		Annotation: anno,
	}, nil
}

// LoadVideoFrames decodes every frame of the video, converted to RGB, and with the
// dataset's transform applied.
//
// Unless StrictDecode is set, a decoder failure part way through the video is not an error.
// Decoding stops, and the frames decoded up to that point are returned.
func (d *Dataset) LoadVideoFrames(id VideoID) ([]*cimg.Image, error) {
	return d.loadVideoFrames(d.refOf(id))
}

func (d *Dataset) loadVideoFrames(ref VideoRef) ([]*cimg.Image, error) {
	if d.options.OpenDecoder == nil {
		return nil, ErrNoDecoder
	}
	name := ref.VideoName(d.options.VideoExt)
	if err := d.store.Stat(name); err != nil {
		return nil, fmt.Errorf("Video file %v: %w", name, err)
	}
	closer, filename, err := d.localVideoFile(name)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	decoder, err := d.options.OpenDecoder(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %w", ErrDecode, name, err)
	}
	defer decoder.Close()

	frames, err := videox.ReadAllFrames(decoder, videox.ReadOptions{
		Transform: d.options.Transform,
		Strict:    d.options.StrictDecode,
		OnFault: func(fault *videox.DecodeError) {
			d.log.Warnf("Video %v truncated: %v", ref.ID, fault)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %w", ErrDecode, name, err)
	}
	return frames, nil
}

// If the storage is a local filesystem, then we open the file directly.
// Otherwise we need to go through the video cache.
func (d *Dataset) localVideoFile(name string) (io.Closer, string, error) {
	filename, err := d.store.Filename(name)
	if err == nil {
		return io.NopCloser(nil), filename, nil
	}
	if !errors.Is(err, storage.ErrNotAFilesystem) {
		return nil, "", err
	}
	if d.options.VideoCache == nil {
		return nil, "", fmt.Errorf("Storage is remote, and no video cache is configured")
	}
	file, err := d.options.VideoCache.Open(name)
	if err != nil {
		return nil, "", fmt.Errorf("Video file %v: %w", name, err)
	}
	return file, file.Filename(), nil
}

// LoadAnnotation returns the annotation of the video.
// The first call for a video reads it from storage, and subsequent calls are served from memory.
// The returned annotation is a copy, so the caller may modify it.
func (d *Dataset) LoadAnnotation(id VideoID) (*Annotation, error) {
	return d.loadAnnotation(d.refOf(id))
}

func (d *Dataset) loadAnnotation(ref VideoRef) (*Annotation, error) {
	anno, err := d.cachedAnnotation(ref)
	if err != nil {
		return nil, err
	}
	return anno.Clone(), nil
}

// Returns the shared cached copy, which must not be modified or handed out
func (d *Dataset) cachedAnnotation(ref VideoRef) (*Annotation, error) {
	d.annotationsLock.Lock()
	defer d.annotationsLock.Unlock()

	if anno, ok := d.annotations[ref.ID]; ok {
		return anno, nil
	}

	name := ref.AnnotationName()
	raw, err := storage.ReadFile(d.store, name)
	if err != nil {
		return nil, fmt.Errorf("Annotation file %v: %w", name, err)
	}
	anno, err := ParseAnnotation(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: annotation file %v: %w", ErrParse, name, err)
	}
	if anno.IsCrash() != (ref.Category == CategoryCrash) {
		d.log.Warnf("Video %v is stored as %v, but its annotation says '%v'", ref.ID, ref.Category, anno.Category)
	}
	d.annotations[ref.ID] = anno
	return anno, nil
}

// FrameAnnotation returns the annotation of a single frame.
// If the frame has no annotation, the result is nil, and the error is nil.
// If more than one entry has the same frame ID, the first one is returned.
func (d *Dataset) FrameAnnotation(id VideoID, frameID int) (*FrameAnnotation, error) {
	anno, err := d.cachedAnnotation(d.refOf(id))
	if err != nil {
		return nil, err
	}
	frame := anno.FindFrame(frameID)
	if frame == nil {
		return nil, nil
	}
	return frame.Clone(), nil
}

// IsCrash returns true if the video's annotation has category "crash"
func (d *Dataset) IsCrash(id VideoID) (bool, error) {
	anno, err := d.cachedAnnotation(d.refOf(id))
	if err != nil {
		return false, err
	}
	return anno.IsCrash(), nil
}

// CrashFrame returns the frame at which the crash happens, or nil if the annotation has no crash frame
func (d *Dataset) CrashFrame(id VideoID) (*int, error) {
	anno, err := d.cachedAnnotation(d.refOf(id))
	if err != nil {
		return nil, err
	}
	return clonePtr(anno.CrashFrame), nil
}
