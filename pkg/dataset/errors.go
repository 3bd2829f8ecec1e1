package dataset

import (
	"errors"

	"github.com/cyclopcam/tcas/pkg/storage"
)

// ErrNotFound is returned when a split file, video, annotation, or statistics file is missing.
// It is the same value as storage.ErrNotFound.
var ErrNotFound = storage.ErrNotFound

var ErrIndexOutOfRange = errors.New("Index out of range")
var ErrParse = errors.New("Parse error")
var ErrDecode = errors.New("Video decode failed")
var ErrInvalidSplit = errors.New("Invalid split")
var ErrInvalidFPS = errors.New("FPS must be positive")
var ErrNoCrashFrame = errors.New("Video has no crash frame")
var ErrNoDecoder = errors.New("No video decoder configured")
