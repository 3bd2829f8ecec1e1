package opencv

import (
	"image"

	"gocv.io/x/gocv"
)

// WindowPresenter shows images in a HighGUI window, and waits for a key press
type WindowPresenter struct {
	Title string
}

func (w *WindowPresenter) Present(img image.Image) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return err
	}
	defer mat.Close()

	title := w.Title
	if title == "" {
		title = "tcas"
	}
	window := gocv.NewWindow(title)
	defer window.Close()
	window.IMShow(mat)
	window.WaitKey(0)
	return nil
}
