package capture

import "image"

// ClampRect intersects r with bounds. The result may be empty.
func ClampRect(r, bounds image.Rectangle) image.Rectangle {
	return r.Canon().Intersect(bounds)
}

// ExpandRect grows r by margin pixels on every side and clamps the result to bounds.
func ExpandRect(r image.Rectangle, margin int, bounds image.Rectangle) image.Rectangle {
	if margin < 0 {
		margin = 0
	}
	grown := image.Rect(r.Min.X-margin, r.Min.Y-margin, r.Max.X+margin, r.Max.Y+margin)
	return grown.Intersect(bounds)
}
