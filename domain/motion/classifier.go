package motion

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Params are the classifier thresholds in normalized units per pose frame.
type Params struct {
	MoveThreshold      float64
	ReachThreshold     float64
	ExtensionThreshold float64
	Smoothing          float64
	MinVisibility      float64
}

// DefaultParams returns the stock thresholds.
func DefaultParams() Params {
	return Params{
		MoveThreshold:      0.005,
		ReachThreshold:     0.02,
		ExtensionThreshold: 0.4,
		Smoothing:          0.7,
		MinVisibility:      0.5,
	}
}

// Hand is the smoothed motion of one wrist.
type Hand struct {
	Velocity  float64 `json:"velocity"`
	Extension float64 `json:"extension"`
	Prev      Point   `json:"prev"`
	Tracked   bool    `json:"tracked"`
}

// State carries per-hand smoothing between pose frames.
type State struct {
	Left  Hand  `json:"left"`
	Right Hand  `json:"right"`
	Label Label `json:"label"`
}

// Classify folds one landmark set into st and labels the frame. A hand
// below MinVisibility keeps its smoothed values but forgets its previous
// position, so reappearing does not register as a jump.
func Classify(st State, lm Landmarks, p Params) (State, Label) {
	if p.Smoothing <= 0 || p.Smoothing >= 1 {
		p.Smoothing = DefaultParams().Smoothing
	}
	center, hasCenter := bodyCenter(lm, p.MinVisibility)

	var vel, ext []float64
	for _, h := range []struct {
		state *Hand
		pt    Point
	}{{&st.Left, lm.LeftWrist}, {&st.Right, lm.RightWrist}} {
		if h.pt.Visibility < p.MinVisibility {
			h.state.Tracked = false
			continue
		}
		if h.state.Tracked {
			inst := dist(h.pt, h.state.Prev)
			h.state.Velocity = p.Smoothing*h.state.Velocity + (1-p.Smoothing)*inst
		}
		if hasCenter {
			h.state.Extension = p.Smoothing*h.state.Extension + (1-p.Smoothing)*dist(h.pt, center)
		}
		h.state.Prev = h.pt
		h.state.Tracked = true
		vel = append(vel, h.state.Velocity)
		ext = append(ext, h.state.Extension)
	}

	label := LabelIdle
	if len(vel) > 0 {
		v := stat.Mean(vel, nil)
		e := stat.Mean(ext, nil)
		switch {
		case v < p.MoveThreshold:
			label = LabelIdle
		case v >= p.ReachThreshold && e > p.ExtensionThreshold:
			label = LabelTransport
		default:
			label = LabelOperation
		}
	}
	st.Label = label
	return st, label
}

func bodyCenter(lm Landmarks, minVis float64) (Point, bool) {
	if lm.LeftShoulder.Visibility >= minVis && lm.RightShoulder.Visibility >= minVis {
		return Point{
			X: (lm.LeftShoulder.X + lm.RightShoulder.X) / 2,
			Y: (lm.LeftShoulder.Y + lm.RightShoulder.Y) / 2,
		}, true
	}
	if lm.Nose.Visibility >= minVis {
		return lm.Nose, true
	}
	return Point{}, false
}

func dist(a, b Point) float64 { return math.Hypot(a.X-b.X, a.Y-b.Y) }
