// Package signal turns frames into a bounded change score: a blurred
// grayscale baseline of the zone is captured once and every later frame is
// compared against it.
package signal

import (
	"errors"
	"fmt"
	"image"

	"github.com/soocke/cyclewatch/domain/capture"
)

var (
	ErrNoFrame        = errors.New("signal: no frame available")
	ErrDegenerateZone = errors.New("signal: zone is degenerate after clamping")
)

// DefaultKernel is the Gaussian kernel size used when none is configured.
const DefaultKernel = 5

// ReferenceModel is the "empty zone" baseline used for background
// subtraction. It is immutable once captured.
type ReferenceModel struct {
	plane  *capture.Plane
	kernel int
}

// Zone returns the frame rectangle the reference was captured from.
func (r *ReferenceModel) Zone() image.Rectangle {
	if r == nil {
		return image.Rectangle{}
	}
	return r.plane.Rect
}

// Kernel returns the blur kernel size the reference was captured with.
func (r *ReferenceModel) Kernel() int {
	if r == nil {
		return 0
	}
	return r.kernel
}

// Pix returns the blurred grayscale baseline. Callers must not modify it.
func (r *ReferenceModel) Pix() []uint8 {
	if r == nil {
		return nil
	}
	return r.plane.Pix
}

// CaptureReference clamps zone to the frame and stores its blurred
// grayscale content. Zones one pixel wide or tall after clamping are
// rejected.
func CaptureReference(frame *image.RGBA, zone image.Rectangle, kernel int) (*ReferenceModel, error) {
	if frame == nil || frame.Bounds().Empty() {
		return nil, ErrNoFrame
	}
	if kernel <= 0 {
		kernel = DefaultKernel
	}
	clamped := capture.ClampRect(zone.Canon(), frame.Bounds())
	if clamped.Dx() <= 1 || clamped.Dy() <= 1 {
		return nil, fmt.Errorf("%w: %v", ErrDegenerateZone, clamped)
	}
	p, err := capture.ExtractBlurred(frame, clamped, kernel, nil)
	if err != nil {
		return nil, fmt.Errorf("signal: capture reference: %w", err)
	}
	return &ReferenceModel{plane: p, kernel: kernel}, nil
}
