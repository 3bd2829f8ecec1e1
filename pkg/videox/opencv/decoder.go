// Package opencv implements video decoding and on-screen display on top of OpenCV (via gocv).
package opencv

import (
	"errors"
	"fmt"
	"io"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/tcas/pkg/videox"
	"gocv.io/x/gocv"
)

var ErrCannotOpen = errors.New("Cannot open video capture")

// Decoder reads frames out of a video file with cv::VideoCapture.
// OpenCV decodes into BGR order, and we convert every frame to RGB.
type Decoder struct {
	Width      int
	Height     int
	FPS        float64
	FrameCount int // As reported by the container. This can be wrong, or zero.

	capture *gocv.VideoCapture
	bgr     gocv.Mat
	rgb     gocv.Mat
	nframes int
}

// Open is a videox.OpenFunc
func Open(filename string) (videox.FrameDecoder, error) {
	return NewDecoder(filename)
}

func NewDecoder(filename string) (*Decoder, error) {
	capture, err := gocv.OpenVideoCapture(filename)
	if err != nil {
		return nil, fmt.Errorf("%w %v: %v", ErrCannotOpen, filename, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w %v", ErrCannotOpen, filename)
	}
	return &Decoder{
		Width:      int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(capture.Get(gocv.VideoCaptureFrameHeight)),
		FPS:        capture.Get(gocv.VideoCaptureFPS),
		FrameCount: int(capture.Get(gocv.VideoCaptureFrameCount)),
		capture:    capture,
		bgr:        gocv.NewMat(),
		rgb:        gocv.NewMat(),
	}, nil
}

// NextFrame returns the next frame, converted to RGB.
// cv::VideoCapture doesn't distinguish between end of stream and a decode failure,
// so if reading stops before the frame count reported by the container, we
// return an error instead of io.EOF.
// Some containers (notably mp4 without an accurate index) only estimate the frame count,
// so a valid video can be reported as truncated. With strict decoding such a video is rejected.
func (d *Decoder) NextFrame() (*cimg.Image, error) {
	if ok := d.capture.Read(&d.bgr); !ok {
		if d.FrameCount > 0 && d.nframes < d.FrameCount {
			return nil, fmt.Errorf("Video stream ended at frame %v, but container reports %v frames", d.nframes, d.FrameCount)
		}
		return nil, io.EOF
	}
	if d.bgr.Empty() {
		return nil, videox.ErrResourceTemporarilyUnavailable
	}
	d.nframes++
	gocv.CvtColor(d.bgr, &d.rgb, gocv.ColorBGRToRGB)
	width := d.rgb.Cols()
	height := d.rgb.Rows()
	// ToBytes returns a copy, so the image outlives our Mat
	return cimg.WrapImage(width, height, cimg.PixelFormatRGB, d.rgb.ToBytes()), nil
}

func (d *Decoder) Close() error {
	d.bgr.Close()
	d.rgb.Close()
	return d.capture.Close()
}
