package debug

import (
	"errors"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

var (
	zoneColor   = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	anchorColor = color.RGBA{R: 230, G: 160, B: 0, A: 255}
)

// Overlay describes what to draw over a setup frame.
type Overlay struct {
	Zones  []image.Rectangle
	Anchor *image.Rectangle
	// Offset is the tracked drift applied to every rectangle.
	Offset image.Point
}

// RenderOverlay outlines the zones and anchor on a copy of frame and
// scales the result to fit maxW x maxH. Non-positive limits keep the size.
func RenderOverlay(frame *image.RGBA, ov Overlay, maxW, maxH int) (*image.NRGBA, error) {
	if frame == nil {
		return nil, errors.New("overlay: nil frame")
	}
	canvas := imaging.Clone(frame)
	for _, z := range ov.Zones {
		outline(canvas, z.Add(ov.Offset), zoneColor, 2)
	}
	if ov.Anchor != nil {
		outline(canvas, ov.Anchor.Add(ov.Offset), anchorColor, 1)
	}
	if maxW > 0 && maxH > 0 {
		canvas = imaging.Fit(canvas, maxW, maxH, imaging.NearestNeighbor)
	}
	return canvas, nil
}

// WriteOverlay renders the overlay and saves it; the format follows the
// file extension.
func WriteOverlay(path string, frame *image.RGBA, ov Overlay, maxW, maxH int) error {
	img, err := RenderOverlay(frame, ov, maxW, maxH)
	if err != nil {
		return err
	}
	return imaging.Save(img, path)
}

// outline draws a rectangle border of the given width, clipped to img.
func outline(img *image.NRGBA, r image.Rectangle, c color.RGBA, width int) {
	r = r.Canon()
	b := img.Bounds()
	for w := 0; w < width; w++ {
		in := image.Rect(r.Min.X+w, r.Min.Y+w, r.Max.X-w, r.Max.Y-w)
		if in.Empty() {
			return
		}
		for x := in.Min.X; x < in.Max.X; x++ {
			setIn(img, b, x, in.Min.Y, c)
			setIn(img, b, x, in.Max.Y-1, c)
		}
		for y := in.Min.Y; y < in.Max.Y; y++ {
			setIn(img, b, in.Min.X, y, c)
			setIn(img, b, in.Max.X-1, y, c)
		}
	}
}

func setIn(img *image.NRGBA, b image.Rectangle, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(b) {
		img.SetNRGBA(x, y, color.NRGBA(c))
	}
}
