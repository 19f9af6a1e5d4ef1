package signal

import (
	"image"

	"github.com/soocke/cyclewatch/domain/capture"
)

// DefaultPixelDiffThreshold is the absolute intensity difference above
// which a pixel counts as changed.
const DefaultPixelDiffThreshold = 25

// Scorer computes the fraction of zone pixels that differ from the
// reference. The zero value uses DefaultPixelDiffThreshold.
type Scorer struct {
	PixelDiffThreshold int
}

// Score shifts the reference zone by offset, blurs that region of frame the
// same way the reference was blurred and returns the changed-pixel fraction
// in [0,1]. It returns 0 when there is no reference or the shifted zone is
// not fully inside the frame. scratch, when non-nil, receives the blurred
// region so callers can avoid per-frame allocation.
func (s Scorer) Score(frame *image.RGBA, ref *ReferenceModel, offset image.Point, scratch *capture.Plane) float64 {
	if ref == nil || frame == nil {
		return 0
	}
	zone := ref.Zone().Add(offset)
	cur, err := capture.ExtractBlurred(frame, zone, ref.kernel, scratch)
	if err != nil || cur.Len() != ref.plane.Len() {
		return 0
	}
	thr := s.PixelDiffThreshold
	if thr <= 0 {
		thr = DefaultPixelDiffThreshold
	}
	changed := 0
	for i, v := range cur.Pix {
		d := int(v) - int(ref.plane.Pix[i])
		if d < 0 {
			d = -d
		}
		if d > thr {
			changed++
		}
	}
	return float64(changed) / float64(len(cur.Pix))
}
