package engine

import (
	iface "FeatureBench/interface"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	keypointColor = color.RGBA{G: 255, A: 255}
	matchColor    = color.RGBA{R: 255, B: 255, A: 255}
)

// Window shows detector and matcher output in HighGUI windows and waits for a
// key press after each image.
type Window struct {
	windows map[string]*gocv.Window
}

func NewWindow() *Window {
	return &Window{windows: map[string]*gocv.Window{}}
}

func (w *Window) window(title string) *gocv.Window {
	win, ok := w.windows[title]
	if !ok {
		win = gocv.NewWindow(title)
		w.windows[title] = win
	}
	return win
}

func (w *Window) ShowKeypoints(title string, img *image.Gray, kps []iface.Keypoint) error {
	src, err := grayMat(img)
	if err != nil {
		return err
	}
	defer src.Close()
	out := gocv.NewMat()
	defer out.Close()
	gocv.DrawKeyPoints(src, fromKeypoints(kps), &out, keypointColor, gocv.DrawRichKeyPoints)

	win := w.window(title)
	win.IMShow(out)
	win.WaitKey(0)
	return nil
}

func (w *Window) ShowMatches(title string, imgA *image.Gray, kpsA []iface.Keypoint, imgB *image.Gray, kpsB []iface.Keypoint, matches []iface.Match) error {
	a, err := grayMat(imgA)
	if err != nil {
		return err
	}
	defer a.Close()
	b, err := grayMat(imgB)
	if err != nil {
		return err
	}
	defer b.Close()

	mask := make([]byte, len(matches))
	for i := range mask {
		mask[i] = 1
	}
	out := gocv.NewMat()
	defer out.Close()
	gocv.DrawMatches(a, fromKeypoints(kpsA), b, fromKeypoints(kpsB), fromMatches(matches), &out,
		matchColor, keypointColor, mask, gocv.DrawRichKeyPoints)

	win := w.window(title)
	win.IMShow(out)
	win.WaitKey(0)
	return nil
}

func (w *Window) Close() error {
	for title, win := range w.windows {
		_ = win.Close()
		delete(w.windows, title)
	}
	return nil
}
