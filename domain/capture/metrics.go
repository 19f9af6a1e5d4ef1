package capture

import (
	"image"
	"time"
)

// FrameSnapshot carries a decoded frame and its playback metadata.
// Timestamp is the media position of the frame; CapturedAt is wall time.
type FrameSnapshot struct {
	Image      *image.RGBA
	Timestamp  time.Duration
	CapturedAt time.Time
	Sequence   uint64
}

// Valid reports whether the snapshot carries pixels.
func (s FrameSnapshot) Valid() bool {
	return s.Image != nil && !s.Image.Bounds().Empty()
}

// CaptureStats summarises capture loop behaviour for instrumentation.
type CaptureStats struct {
	Captures         uint64
	Skipped          uint64
	AvgCapture       time.Duration
	AvgCaptureMicros float64
	LastCapture      time.Time
	LatestFrameAge   time.Duration
	Sequence         uint64
}
