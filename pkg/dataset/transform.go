package dataset

import (
	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/tcas/pkg/videox"
)

// ResizeTransform scales every frame to width x height
func ResizeTransform(width, height int) videox.FrameTransform {
	return func(frame *cimg.Image) *cimg.Image {
		if frame.Width == width && frame.Height == height {
			return frame
		}
		return cimg.ResizeNew(frame, width, height, nil)
	}
}
