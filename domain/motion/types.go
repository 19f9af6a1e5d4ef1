// Package motion labels the worker's current activity from pose landmarks:
// still hands are idle, short localized motion is operation and fast
// far-reaching motion is transport.
package motion

import (
	"context"
	"errors"

	"github.com/soocke/cyclewatch/domain/capture"
)

var ErrNoPose = errors.New("motion: no pose available")

// Label is the activity classification attached to cycles.
type Label string

const (
	LabelIdle      Label = "IDLE"
	LabelOperation Label = "OPERATION"
	LabelTransport Label = "TRANSPORT"
)

// Point is a landmark in image-normalized coordinates with a visibility
// confidence, all in [0,1].
type Point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visibility float64 `json:"visibility"`
}

// Landmarks is the subset of body keypoints the classifier uses.
type Landmarks struct {
	Nose          Point `json:"nose"`
	LeftWrist     Point `json:"left_wrist"`
	RightWrist    Point `json:"right_wrist"`
	LeftShoulder  Point `json:"left_shoulder"`
	RightShoulder Point `json:"right_shoulder"`
}

// PoseEstimator supplies landmarks for a frame.
type PoseEstimator interface {
	Estimate(ctx context.Context, frame capture.FrameSnapshot) (Landmarks, error)
}
