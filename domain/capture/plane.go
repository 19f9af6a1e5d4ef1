package capture

import (
	"image"

	"github.com/disintegration/imaging"
)

// Plane is a single-channel 8-bit image. Rect is expressed in source frame
// coordinates and the row stride equals Rect.Dx().
type Plane struct {
	Pix  []uint8
	Rect image.Rectangle
}

// Len returns the number of pixels in the plane.
func (p *Plane) Len() int {
	if p == nil {
		return 0
	}
	return p.Rect.Dx() * p.Rect.Dy()
}

// At returns the value at source coordinates (x, y). Out-of-range reads return 0.
func (p *Plane) At(x, y int) uint8 {
	if p == nil || !(image.Point{X: x, Y: y}).In(p.Rect) {
		return 0
	}
	return p.Pix[(y-p.Rect.Min.Y)*p.Rect.Dx()+(x-p.Rect.Min.X)]
}

// Clone returns a deep copy of the plane.
func (p *Plane) Clone() *Plane {
	if p == nil {
		return nil
	}
	out := &Plane{Pix: make([]uint8, len(p.Pix)), Rect: p.Rect}
	copy(out.Pix, p.Pix)
	return out
}

// resize makes p hold r, reusing the backing array when it is large enough.
func (p *Plane) resize(r image.Rectangle) {
	n := r.Dx() * r.Dy()
	if cap(p.Pix) < n {
		p.Pix = make([]uint8, n)
	}
	p.Pix = p.Pix[:n]
	p.Rect = r
}

// BlurSigma converts an odd Gaussian kernel size to the sigma that gives
// imaging.Blur a kernel of exactly that size. Sizes below 3 disable blurring.
func BlurSigma(kernel int) float64 {
	if kernel < 3 {
		return 0
	}
	return float64(kernel/2) / 3
}

// checkRect validates r against the frame bounds.
func checkRect(frame *image.RGBA, r image.Rectangle) error {
	if frame == nil || frame.Bounds().Empty() {
		return ErrNoFrame
	}
	if r.Dx() <= 1 || r.Dy() <= 1 {
		return ErrDegenerateRect
	}
	if !r.In(frame.Bounds()) {
		return ErrOutOfBounds
	}
	return nil
}

// ExtractGray copies r from frame into dst as 8-bit luma. When dst is nil a
// new plane is allocated. r must lie fully inside the frame.
func ExtractGray(frame *image.RGBA, r image.Rectangle, dst *Plane) (*Plane, error) {
	return extract(frame, r, 0, dst)
}

// ExtractBlurred is ExtractGray followed by a Gaussian blur of the given
// kernel size. The blur is confined to r; pixels outside the rectangle do
// not bleed in, so the result only depends on the rectangle's content.
func ExtractBlurred(frame *image.RGBA, r image.Rectangle, kernel int, dst *Plane) (*Plane, error) {
	return extract(frame, r, BlurSigma(kernel), dst)
}

func extract(frame *image.RGBA, r image.Rectangle, sigma float64, dst *Plane) (*Plane, error) {
	if err := checkRect(frame, r); err != nil {
		return nil, err
	}
	gray := imaging.Grayscale(imaging.Crop(frame, r))
	if sigma > 0 {
		gray = imaging.Blur(gray, sigma)
	}
	if dst == nil {
		dst = &Plane{}
	}
	dst.resize(r)
	w, h := r.Dx(), r.Dy()
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w*4]
		out := dst.Pix[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			out[x] = row[x*4]
		}
	}
	return dst, nil
}
