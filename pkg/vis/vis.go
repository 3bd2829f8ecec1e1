// Package vis draws dataset annotations on top of video frames
package vis

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/tcas/pkg/dataset"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// Frames are drawn at their native resolution when DPI is 100, so SaveDPI of 150
// produces an image that is 1.5x larger than the frame.
const BaseDPI = 100
const SaveDPI = 150

const (
	lineWidth       = 2
	labelFontSize   = 10 // points
	bannerFontSize  = 14 // points
	labelOffset     = 5  // Gap between the label baseline and the top of the box
	labelPadding    = 3
	bannerX         = 10
	bannerY         = 30
	backgroundAlpha = 0.7
)

var ErrNoPresenter = errors.New("No output path and no presenter")

var (
	Green  = color.RGBA{0, 128, 0, 255}
	Orange = color.RGBA{255, 165, 0, 255}
	Red    = color.RGBA{255, 0, 0, 255}
	Yellow = color.RGBA{255, 255, 0, 255}
	Blue   = color.RGBA{0, 0, 255, 255}
	Purple = color.RGBA{128, 0, 128, 255}
)

// Box color of a vehicle, keyed by its behavior
var BehaviorColors = map[string]color.RGBA{
	"normal":     Green,
	"aggressive": Orange,
	"erratic":    Red,
	"stopping":   Yellow,
	"turning":    Blue,
}

// Presenter shows a rendered image to the user (eg in a window)
type Presenter interface {
	Present(img image.Image) error
}

// BehaviorColor returns the box color of a vehicle. Unknown or empty behaviors are green.
func BehaviorColor(behavior string) color.RGBA {
	if c, ok := BehaviorColors[behavior]; ok {
		return c
	}
	return Green
}

func behaviorOrDefault(behavior string) string {
	if behavior == "" {
		return "normal"
	}
	return behavior
}

// VehicleLabel is the text drawn above a vehicle's box
func VehicleLabel(v *dataset.Vehicle) string {
	return fmt.Sprintf("%v (%v)", v.Type, behaviorOrDefault(v.Behavior))
}

// PedestrianLabel is the text drawn above a pedestrian's box
func PedestrianLabel(p *dataset.Pedestrian) string {
	action := p.Action
	if action == "" {
		action = "unknown"
	}
	return fmt.Sprintf("Pedestrian (%v)", action)
}

// RiskBanner is the text drawn in the top-left corner of the frame
func RiskBanner(riskLevel *string) string {
	level := "UNKNOWN"
	if riskLevel != nil {
		level = strings.ToUpper(*riskLevel)
	}
	return "Risk Level: " + level
}

// NewCanvas creates a drawing surface for the frame, scaled by 'scale'.
// All drawing on the returned context is in frame pixel coordinates.
func NewCanvas(frame *cimg.Image, scale float64) *gg.Context {
	width := int(float64(frame.Width)*scale + 0.5)
	height := int(float64(frame.Height)*scale + 0.5)
	dc := gg.NewContext(width, height)
	dc.Scale(scale, scale)
	return dc
}

// Draw renders the frame and its annotation onto dc
func Draw(dc *gg.Context, frame *cimg.Image, anno *dataset.FrameAnnotation) error {
	labelFace, err := newFace(labelFontSize)
	if err != nil {
		return err
	}
	bannerFace, err := newFace(bannerFontSize)
	if err != nil {
		return err
	}

	img, err := frame.ToImage()
	if err != nil {
		return err
	}
	dc.DrawImage(img, 0, 0)

	var riskLevel *string
	if anno != nil {
		for i := range anno.Vehicles {
			v := &anno.Vehicles[i]
			c := BehaviorColor(v.Behavior)
			drawBox(dc, v.BBox, c)
			drawLabel(dc, labelFace, v.BBox, VehicleLabel(v), c)
		}
		for i := range anno.Pedestrians {
			p := &anno.Pedestrians[i]
			drawBox(dc, p.BBox, Purple)
			drawLabel(dc, labelFace, p.BBox, PedestrianLabel(p), Purple)
		}
		riskLevel = anno.RiskLevel
	}

	dc.SetFontFace(bannerFace)
	drawText(dc, bannerX, bannerY, RiskBanner(riskLevel), color.White, color.Black)
	return nil
}

// Render draws the frame and its annotation onto a new canvas at the given DPI
func Render(frame *cimg.Image, anno *dataset.FrameAnnotation, dpi float64) (image.Image, error) {
	dc := NewCanvas(frame, dpi/BaseDPI)
	if err := Draw(dc, frame, anno); err != nil {
		return nil, err
	}
	return dc.Image(), nil
}

// Visualize renders the annotation over the frame.
// If savePath is not empty, the result is written there as a PNG at SaveDPI.
// Otherwise it is handed to 'presenter'.
// The canvas is exactly the size of the (scaled) frame, so there is no border to crop.
func Visualize(frame *cimg.Image, anno *dataset.FrameAnnotation, savePath string, presenter Presenter) error {
	if savePath == "" && presenter == nil {
		return ErrNoPresenter
	}
	dpi := float64(BaseDPI)
	if savePath != "" {
		dpi = SaveDPI
	}
	img, err := Render(frame, anno, dpi)
	if err != nil {
		return err
	}
	if savePath != "" {
		return gg.SavePNG(savePath, img)
	}
	return presenter.Present(img)
}

func newFace(points float64) (font.Face, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(f, &truetype.Options{
		Size:    points,
		DPI:     BaseDPI,
		Hinting: font.HintingFull,
	}), nil
}

func drawBox(dc *gg.Context, box dataset.BBox, c color.Color) {
	dc.SetColor(c)
	dc.SetLineWidth(lineWidth)
	dc.DrawRectangle(box.X(), box.Y(), box.Width(), box.Height())
	dc.Stroke()
}

func drawLabel(dc *gg.Context, face font.Face, box dataset.BBox, text string, c color.Color) {
	dc.SetFontFace(face)
	drawText(dc, box.X(), box.Y()-labelOffset, text, c, color.White)
}

// Draw text with its baseline at (x, y), on a translucent rounded background
func drawText(dc *gg.Context, x, y float64, text string, fg, bg color.Color) {
	w, h := dc.MeasureString(text)
	r, g, b, _ := bg.RGBA()
	dc.SetRGBA(float64(r)/0xffff, float64(g)/0xffff, float64(b)/0xffff, backgroundAlpha)
	dc.DrawRoundedRectangle(x-labelPadding, y-h-labelPadding, w+2*labelPadding, h+2*labelPadding, labelPadding)
	dc.Fill()
	dc.SetColor(fg)
	dc.DrawString(text, x, y)
}
