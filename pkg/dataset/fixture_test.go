package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/tcas/pkg/storage"
	"github.com/cyclopcam/tcas/pkg/videox"
	"github.com/stretchr/testify/require"
)

const fixtureAnnotationCrash = `{
	"category": "crash",
	"crash_type": "rear_end",
	"crash_frame": 42,
	"risk_level": "high",
	"frames": [
		{"frame_id": 0, "vehicles": [{"bbox": [10, 20, 30, 40], "type": "car", "behavior": "normal"}]},
		{"frame_id": 40, "vehicles": [{"bbox": [50, 60, 70, 80], "type": "truck", "behavior": "erratic"}],
		                 "pedestrians": [{"bbox": [1, 2, 3, 4], "action": "crossing"}]},
		{"frame_id": 40, "vehicles": []}
	]
}`

const fixtureAnnotationNormal = `{
	"category": "normal",
	"risk_level": "low",
	"frames": [
		{"frame_id": 5, "pedestrians": [{"bbox": [5, 5, 10, 20]}]}
	]
}`

// Number of frames in each fixture video
var fixtureFrameCount = map[string]int{
	"crash_001":  6,
	"normal_001": 3,
	"crash_002":  0,
}

// Build a dataset directory with two crash videos and one normal video in the train split.
func writeFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	write := func(name, content string) {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	write("metadata/train_split.txt", "crash_001\n\n  normal_001  \ncrash_002\n\n")
	write("metadata/val_split.txt", "normal_001\n")
	write("metadata/statistics.json", `{"total_videos": 3, "total_frames": 9, "splits": {"train": 3}}`)
	write("annotations/crash/crash_001.json", fixtureAnnotationCrash)
	write("annotations/crash/crash_002.json", `{"category": "crash", "crash_frame": 0}`)
	write("annotations/normal/normal_001.json", fixtureAnnotationNormal)
	write("videos/crash/crash_001.mp4", "crash_001")
	write("videos/crash/crash_002.mp4", "crash_002")
	write("videos/normal/normal_001.mp4", "normal_001")
	return root
}

// spyStorage counts every access to the underlying store
type spyStorage struct {
	storage.Storage
	lock  sync.Mutex
	reads []string
	stats []string
}

func (s *spyStorage) ReadFile(name string) (*storage.File, error) {
	s.lock.Lock()
	s.reads = append(s.reads, name)
	s.lock.Unlock()
	return s.Storage.ReadFile(name)
}

func (s *spyStorage) Stat(name string) error {
	s.lock.Lock()
	s.stats = append(s.stats, name)
	s.lock.Unlock()
	return s.Storage.Stat(name)
}

func (s *spyStorage) numReads() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.reads)
}

// fakeVideos opens fake decoders. The content of each fixture video file is its ID,
// which we use to decide how many frames to produce.
type fakeVideos struct {
	opened   []string
	decoders []*fakeDecoder
	failAt   int // If >= 0, every decoder fails after this many frames
}

type fakeDecoder struct {
	n      int
	next   int
	failAt int
	closed bool
}

func (d *fakeDecoder) NextFrame() (*cimg.Image, error) {
	if d.next == d.failAt {
		return nil, errors.New("corrupt slice")
	}
	if d.next == d.n {
		return nil, io.EOF
	}
	img := cimg.NewImage(8, 4, cimg.PixelFormatRGB)
	img.Pixels[0] = byte(d.next)
	d.next++
	return img, nil
}

func (d *fakeDecoder) Close() error {
	d.closed = true
	return nil
}

func (f *fakeVideos) open(filename string) (videox.FrameDecoder, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	f.opened = append(f.opened, filename)
	d := &fakeDecoder{n: fixtureFrameCount[string(raw)], failAt: f.failAt}
	f.decoders = append(f.decoders, d)
	return d, nil
}

func (f *fakeVideos) allClosed() bool {
	for _, d := range f.decoders {
		if !d.closed {
			return false
		}
	}
	return true
}

// recordLog keeps the warnings, and sends everything else to the testing log
type recordLog struct {
	logs.Log
	lock     sync.Mutex
	warnings []string
}

func (r *recordLog) Warnf(format string, a ...interface{}) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.warnings = append(r.warnings, fmt.Sprintf(format, a...))
	r.Log.Warnf(format, a...)
}

func (r *recordLog) numWarnings() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.warnings)
}

type testEnv struct {
	log    *recordLog
	root   string
	spy    *spyStorage
	videos *fakeVideos
	ds     *Dataset
}

func newTestEnv(t *testing.T, split Split, options Options) *testEnv {
	t.Helper()
	log := &recordLog{Log: logs.NewTestingLog(t)}
	root := writeFixture(t)
	fs, err := storage.NewStorageFS(log, root)
	require.NoError(t, err)
	spy := &spyStorage{Storage: fs}
	videos := &fakeVideos{failAt: -1}
	if options.OpenDecoder == nil {
		options.OpenDecoder = videos.open
	}
	ds, err := New(log, spy, split, options)
	require.NoError(t, err)
	return &testEnv{
		log:    log,
		root:   root,
		spy:    spy,
		videos: videos,
		ds:     ds,
	}
}

func mustJSON(t *testing.T, v any) string {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
