package videox

import (
	"errors"
	"fmt"
	"io"

	"github.com/bmharper/cimg/v2"
)

// ErrResourceTemporarilyUnavailable may be returned by NextFrame when the decoder
// needs more input before it can emit a frame. Callers should simply try again.
var ErrResourceTemporarilyUnavailable = errors.New("Resource temporarily unavailable")

// FrameDecoder pulls frames sequentially out of a video file.
type FrameDecoder interface {
	// NextFrame returns the next frame as a 24-bit RGB image.
	// At the end of the stream, it returns io.EOF.
	// The returned image is owned by the caller.
	NextFrame() (*cimg.Image, error)

	// Close releases the decoder. You MUST call this when finished.
	Close() error
}

// OpenFunc opens a decoder on a video file on the local filesystem
type OpenFunc func(filename string) (FrameDecoder, error)

// FrameTransform is applied to every decoded frame. It may return the same image, or a new one.
type FrameTransform func(frame *cimg.Image) *cimg.Image

// DecodeError is returned by ReadAllFrames in strict mode, when the decoder
// fails for a reason other than reaching the end of the stream.
type DecodeError struct {
	Frame int // Number of frames successfully decoded before the failure
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("Decode failed after %v frames: %v", e.Frame, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ReadOptions controls ReadAllFrames
type ReadOptions struct {
	Transform FrameTransform         // If not nil, applied to every frame
	Strict    bool                   // Return decoder failures instead of treating them as end of stream
	OnFault   func(err *DecodeError) // If not nil, called when a failure is swallowed in non-strict mode
}

// ReadAllFrames decodes every frame of the video.
//
// If options.Strict is false, any decoder failure is treated like the end of the stream,
// and the frames decoded so far are returned with a nil error.
// If options.Strict is true, a failure is returned as a *DecodeError, along with the frames decoded so far.
// The decoder is not closed.
func ReadAllFrames(decoder FrameDecoder, options ReadOptions) ([]*cimg.Image, error) {
	frames := []*cimg.Image{}
	for {
		frame, err := decoder.NextFrame()
		if errors.Is(err, ErrResourceTemporarilyUnavailable) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			derr := &DecodeError{Frame: len(frames), Err: err}
			if options.Strict {
				return frames, derr
			}
			if options.OnFault != nil {
				options.OnFault(derr)
			}
			return frames, nil
		}
		if options.Transform != nil {
			frame = options.Transform(frame)
		}
		frames = append(frames, frame)
	}
}
