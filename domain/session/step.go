package session

import (
	"fmt"
	"time"

	"github.com/soocke/cyclewatch/domain/capture"
	"github.com/soocke/cyclewatch/domain/cycle"
	"github.com/soocke/cyclewatch/domain/motion"
	"github.com/soocke/cyclewatch/domain/signal"
	"github.com/soocke/cyclewatch/domain/tracking"
)

// EngineState is everything the per-frame step reads and writes. It is a
// plain value: callers keep the returned copy and discard the old one.
type EngineState struct {
	Mode       Mode               `json:"mode"`
	Signal     signal.SignalState `json:"signal"`
	Logic      cycle.State        `json:"logic"`
	Track      tracking.State     `json:"track"`
	Motion     motion.State       `json:"motion"`
	DetectGate Gate               `json:"detect_gate"`
	PoseGate   Gate               `json:"pose_gate"`
}

// Input is one frame plus the landmarks estimated for it, if any.
type Input struct {
	Frame capture.FrameSnapshot
	Pose  *motion.Landmarks
}

// Env is the read-only context of a step: the captured models and the
// tuning constants. Scratch planes only hold intermediate pixels and never
// influence results.
type Env struct {
	Reference      *signal.ReferenceModel
	Anchor         *tracking.AnchorTemplate
	Scorer         signal.Scorer
	Alpha          float64
	Logic          cycle.Params
	Track          tracking.Params
	Motion         motion.Params
	DetectInterval time.Duration
	PoseInterval   time.Duration
	PauseWhileLost bool
	NewID          func() string

	ZoneScratch   *capture.Plane
	SearchScratch *capture.Plane
}

// Result describes what a step did.
type Result struct {
	Skipped  bool
	Paused   bool
	Raw      float64
	Smooth   float64
	Outcome  cycle.Outcome
	Cycle    *cycle.Cycle
	Events   []Event
	TrackDur time.Duration
}

// PoseDue reports whether a pose estimate would be consumed for a frame at t.
func (st EngineState) PoseDue(t time.Duration, env Env) bool {
	return st.Mode == ModeRunning && st.PoseGate.Due(t, env.PoseInterval)
}

// Step runs one detection tick: classify motion, track the anchor, score
// the zone, smooth, and advance the cycle machine. Frames arriving faster
// than the detection interval only update the motion label. A frame without
// pixels scores 0 and leaves tracking untouched.
func Step(st EngineState, in Input, env Env) (EngineState, Result) {
	var res Result
	if st.Mode != ModeRunning {
		res.Skipped = true
		return st, res
	}
	t := in.Frame.Timestamp

	if in.Pose != nil && st.PoseGate.Due(t, env.PoseInterval) {
		st.Motion, _ = motion.Classify(st.Motion, *in.Pose, env.Motion)
		st.PoseGate = st.PoseGate.Mark(t)
	}

	if !st.DetectGate.Due(t, env.DetectInterval) {
		res.Skipped = true
		res.Smooth = st.Signal.Smooth
		return st, res
	}
	st.DetectGate = st.DetectGate.Mark(t)

	valid := in.Frame.Valid()
	if env.Anchor != nil && valid {
		prevLost := st.Track.Lost
		tr := tracking.Track(in.Frame.Image, env.Anchor, st.Track, env.Track, env.SearchScratch)
		st.Track = tr.State
		res.TrackDur = tr.Dur
		switch {
		case tr.Lost && !prevLost:
			res.Events = append(res.Events, Event{
				Kind:    EventTrackingLost,
				Message: fmt.Sprintf("anchor lost (score %.2f), holding offset %v", tr.Score, tr.Offset),
				At:      t,
			})
		case !tr.Lost && prevLost:
			res.Events = append(res.Events, Event{
				Kind:    EventTrackingRecovered,
				Message: fmt.Sprintf("anchor found at offset %v", tr.Offset),
				At:      t,
			})
		}
	}

	if valid {
		res.Raw = env.Scorer.Score(in.Frame.Image, env.Reference, st.Track.Offset, env.ZoneScratch)
	}
	st.Signal = st.Signal.Update(res.Raw, env.Alpha)
	res.Smooth = st.Signal.Smooth

	if env.PauseWhileLost && st.Track.Lost {
		res.Paused = true
		return st, res
	}

	before := st.Logic
	next, out := cycle.Advance(st.Logic, st.Signal.Smooth, t, env.Logic)
	st.Logic = next
	res.Outcome = out
	switch out {
	case cycle.OutcomeStarted:
		res.Events = append(res.Events, Event{Kind: EventCycleStarted, Message: "cycle started", At: t})
	case cycle.OutcomeCompleted:
		id := ""
		if env.NewID != nil {
			id = env.NewID()
		}
		cy := cycle.Emit(next, env.Logic, id, string(st.Motion.Label))
		res.Cycle = &cy
		res.Events = append(res.Events, Event{
			Kind:    EventCycleCompleted,
			Message: fmt.Sprintf("cycle completed in %.2fs (%s)", cy.Duration.Seconds(), cy.Status),
			At:      t,
		})
	case cycle.OutcomeDiscarded:
		res.Events = append(res.Events, Event{
			Kind:    EventFalseTrigger,
			Message: fmt.Sprintf("false trigger after %.2fs discarded", (t - before.Start).Seconds()),
			At:      t,
		})
	case cycle.OutcomeCooldownExpired:
		res.Events = append(res.Events, Event{Kind: EventCooldownExpired, Message: "ready", At: t})
	}
	return st, res
}
