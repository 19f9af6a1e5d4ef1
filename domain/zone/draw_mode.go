package zone

// DrawMode is what a pointer drag on the video currently edits.
type DrawMode int

const (
	DrawNone DrawMode = iota
	DrawStartROI
	DrawEndROI
	DrawAnchor
)

func (m DrawMode) String() string {
	switch m {
	case DrawNone:
		return "none"
	case DrawStartROI:
		return "start_roi"
	case DrawEndROI:
		return "end_roi"
	case DrawAnchor:
		return "anchor"
	default:
		return "unknown"
	}
}

// drawTransitions lists allowed draw-mode changes. Every drawing mode must
// return to DrawNone before another one is entered.
var drawTransitions = map[DrawMode][]DrawMode{
	DrawNone:     {DrawStartROI, DrawEndROI, DrawAnchor},
	DrawStartROI: {DrawNone},
	DrawEndROI:   {DrawNone},
	DrawAnchor:   {DrawNone},
}

// CanDraw reports whether from → to is an allowed draw-mode transition.
func CanDraw(from, to DrawMode) bool {
	if from == to {
		return true
	}
	for _, m := range drawTransitions[from] {
		if m == to {
			return true
		}
	}
	return false
}
