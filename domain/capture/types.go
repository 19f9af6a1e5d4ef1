package capture

import "errors"

var (
	// ErrNoFrame is returned when no decoded frame is available.
	ErrNoFrame = errors.New("capture: no frame")
	// ErrDegenerateRect is returned for rectangles with width or height <= 1.
	ErrDegenerateRect = errors.New("capture: degenerate rectangle")
	// ErrOutOfBounds is returned when a rectangle is not fully inside the frame.
	ErrOutOfBounds = errors.New("capture: rectangle out of frame bounds")
)

// FrameSource provides read-only access to captured frames.
// LatestFrame returns the freshest snapshot while Running reports activity.
type FrameSource interface {
	LatestFrame() FrameSnapshot
	Running() bool
}

// Sequence yields frames in playback order. Next returns io.EOF once the
// sequence is exhausted.
type Sequence interface {
	Next() (FrameSnapshot, error)
	Close() error
}

// ServiceContract exposes basic lifecycle control for capture services.
type ServiceContract interface {
	Start()
	Stop()
	Running() bool
}
