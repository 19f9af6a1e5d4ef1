// Package session owns one analysis of one video: the zones, the captured
// reference and anchor, the engine state, and the emitted cycles.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soocke/cyclewatch/config"
	"github.com/soocke/cyclewatch/domain/capture"
	"github.com/soocke/cyclewatch/domain/cycle"
	"github.com/soocke/cyclewatch/domain/motion"
	"github.com/soocke/cyclewatch/domain/signal"
	"github.com/soocke/cyclewatch/domain/tracking"
	"github.com/soocke/cyclewatch/domain/zone"
)

var (
	ErrNoZone            = errors.New("session: no zone drawn")
	ErrNoReference       = errors.New("session: no reference captured")
	ErrInvalidTransition = errors.New("session: invalid transition")
	ErrRunning           = errors.New("session: stop analysis before editing the setup")
)

// Session is the analyzer for one video. Methods are safe for concurrent
// use, but frames must be fed from a single goroutine in playback order.
// Listeners are called without the session lock held.
type Session struct {
	mu     sync.Mutex
	id     string
	logger *slog.Logger
	env    Env
	takt   time.Duration

	blurKernel int

	zones     *zone.Set
	draw      zone.DrawMode
	state     EngineState
	estimator motion.PoseEstimator
	arena     *capture.Arena

	lastFrame time.Duration
	prevRun   time.Duration
	runSpan   time.Duration
	horizon   time.Duration
	started   bool
	cycles    []cycle.Cycle

	listeners      []EventListener
	cycleListeners []cycle.CycleListener
}

// New builds a session in setup mode. estimator may be nil, in which case
// cycles carry no motion label.
func New(cfg *config.Config, estimator motion.PoseEstimator, logger *slog.Logger) *Session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	d := cfg.Detection
	return &Session{
		id:     uuid.NewString(),
		logger: logger,
		env: Env{
			Scorer: signal.Scorer{PixelDiffThreshold: d.PixelDiffThreshold},
			Alpha:  d.SmoothingAlpha,
			Logic: cycle.ParamsFor(d.Sensitivity, d.LowRatio,
				seconds(d.MinCycleSeconds), seconds(d.CooldownSeconds), seconds(d.TaktTimeSeconds)),
			Track: tracking.Params{
				SearchMargin: cfg.Tracking.SearchMargin,
				Confidence:   cfg.Tracking.Confidence,
				Stride:       cfg.Tracking.Stride,
				Refine:       cfg.Tracking.Refine,
				DebugTiming:  cfg.Debug,
			},
			Motion: motion.Params{
				MoveThreshold:      cfg.Motion.MoveThreshold,
				ReachThreshold:     cfg.Motion.ReachThreshold,
				ExtensionThreshold: cfg.Motion.ExtensionThreshold,
				Smoothing:          cfg.Motion.Smoothing,
				MinVisibility:      cfg.Motion.MinVisibility,
			},
			DetectInterval: IntervalFor(d.DetectHz),
			PoseInterval:   IntervalFor(d.PoseHz),
			PauseWhileLost: d.PauseWhileTrackingLost,
			NewID:          uuid.NewString,
		},
		takt:       seconds(d.TaktTimeSeconds),
		blurKernel: d.BlurKernel,
		zones:      zone.NewSet(),
		estimator:  estimator,
	}
}

func seconds(v float64) time.Duration { return time.Duration(v * float64(time.Second)) }

// ID identifies the session in stored and published cycles.
func (s *Session) ID() string { return s.id }

// AddListener registers a status event listener.
func (s *Session) AddListener(l EventListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// AddCycleListener registers a completed cycle listener.
func (s *Session) AddCycleListener(l cycle.CycleListener) {
	s.mu.Lock()
	s.cycleListeners = append(s.cycleListeners, l)
	s.mu.Unlock()
}

// SetZone sets the detection zone, adding it if none exists. Replacing the
// rectangle invalidates the reference.
func (s *Session) SetZone(r image.Rectangle) (string, error) {
	s.mu.Lock()
	if s.state.Mode == ModeRunning {
		s.mu.Unlock()
		return "", ErrRunning
	}
	primary, err := s.zones.Primary()
	if errors.Is(err, zone.ErrNoPrimary) {
		id, err := s.zones.Add("", r)
		s.mu.Unlock()
		return id, err
	}
	s.mu.Unlock()
	return primary.ID, s.MoveZone(primary.ID, r)
}

// AddZone appends a secondary zone. Only the first zone drives detection.
func (s *Session) AddZone(name string, r image.Rectangle) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Mode == ModeRunning {
		return "", ErrRunning
	}
	return s.zones.Add(name, r)
}

// MoveZone changes a zone's rectangle. Moving the detection zone drops its
// reference.
func (s *Session) MoveZone(id string, r image.Rectangle) error {
	s.mu.Lock()
	if s.state.Mode == ModeRunning {
		s.mu.Unlock()
		return ErrRunning
	}
	changed, err := s.zones.Move(id, r)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	var evs []Event
	if changed {
		evs = append(evs, s.event(EventZoneMoved, fmt.Sprintf("zone moved to %v", r.Canon())))
		if s.zones.IsPrimary(id) && s.env.Reference != nil {
			s.env.Reference = nil
			evs = append(evs, s.event(EventReferenceCleared, "reference cleared, capture it again"))
		}
	}
	s.mu.Unlock()
	s.emit(evs, nil)
	return nil
}

// RemoveZone deletes a zone. Removing the detection zone drops the reference.
func (s *Session) RemoveZone(id string) error {
	s.mu.Lock()
	if s.state.Mode == ModeRunning {
		s.mu.Unlock()
		return ErrRunning
	}
	primary := s.zones.IsPrimary(id)
	if err := s.zones.Remove(id); err != nil {
		s.mu.Unlock()
		return err
	}
	evs := []Event{s.event(EventZoneRemoved, "zone removed")}
	if primary && s.env.Reference != nil {
		s.env.Reference = nil
		evs = append(evs, s.event(EventReferenceCleared, "reference cleared"))
	}
	s.mu.Unlock()
	s.emit(evs, nil)
	return nil
}

// CaptureReference stores the detection zone's content from frame as the
// empty-zone baseline. On failure the previous reference is kept.
func (s *Session) CaptureReference(frame capture.FrameSnapshot) error {
	s.mu.Lock()
	if s.state.Mode == ModeRunning {
		s.mu.Unlock()
		return ErrRunning
	}
	primary, err := s.zones.Primary()
	if err != nil {
		ev := s.event(EventReferenceFailed, "draw a zone before capturing the reference")
		s.mu.Unlock()
		s.emit([]Event{ev}, nil)
		return ErrNoZone
	}
	ref, err := signal.CaptureReference(frame.Image, primary.Rect, s.blurKernel)
	if err != nil {
		ev := s.event(EventReferenceFailed, fmt.Sprintf("reference capture failed: %v", err))
		s.mu.Unlock()
		s.emit([]Event{ev}, nil)
		return err
	}
	s.env.Reference = ref
	ev := s.event(EventReferenceCaptured, fmt.Sprintf("reference captured for %v", ref.Zone()))
	s.mu.Unlock()
	s.emit([]Event{ev}, nil)
	return nil
}

// SetAnchor records the anchor rectangle and captures its template from frame.
func (s *Session) SetAnchor(frame capture.FrameSnapshot, r image.Rectangle) error {
	s.mu.Lock()
	if s.state.Mode == ModeRunning {
		s.mu.Unlock()
		return ErrRunning
	}
	tmpl, err := tracking.CaptureAnchor(frame.Image, r)
	if err != nil {
		ev := s.event(EventAnchorFailed, fmt.Sprintf("anchor capture failed: %v", err))
		s.mu.Unlock()
		s.emit([]Event{ev}, nil)
		return err
	}
	if err := s.zones.SetAnchor(tmpl.Rect()); err != nil {
		s.mu.Unlock()
		return err
	}
	s.env.Anchor = tmpl
	s.state.Track = tracking.State{}
	msg := "anchor captured"
	if tmpl.Flat() {
		msg = "anchor captured but has no texture; tracking will report lost"
	}
	ev := s.event(EventAnchorCaptured, msg)
	s.mu.Unlock()
	s.emit([]Event{ev}, nil)
	return nil
}

// ClearAnchor drops the anchor; the tracking offset returns to zero.
func (s *Session) ClearAnchor() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Mode == ModeRunning {
		return ErrRunning
	}
	s.zones.ClearAnchor()
	s.env.Anchor = nil
	s.state.Track = tracking.State{}
	return nil
}

// SetDrawMode changes what a pointer drag edits. Drawing is only possible
// during setup.
func (s *Session) SetDrawMode(m zone.DrawMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Mode == ModeRunning && m != zone.DrawNone {
		return fmt.Errorf("%w: draw %s while running", ErrInvalidTransition, m)
	}
	if !zone.CanDraw(s.draw, m) {
		return fmt.Errorf("%w: draw %s -> %s", ErrInvalidTransition, s.draw, m)
	}
	s.draw = m
	return nil
}

// Arm switches to running mode. It needs a detection zone and a reference
// captured for it.
func (s *Session) Arm() error {
	s.mu.Lock()
	if !CanTransition(s.state.Mode, ModeRunning) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state.Mode, ModeRunning)
	}
	primary, err := s.zones.Primary()
	if err != nil {
		ev := s.event(EventArmRejected, "draw a zone before arming")
		s.mu.Unlock()
		s.emit([]Event{ev}, nil)
		return ErrNoZone
	}
	if s.env.Reference == nil {
		ev := s.event(EventArmRejected, "capture a reference before arming")
		s.mu.Unlock()
		s.emit([]Event{ev}, nil)
		return ErrNoReference
	}
	s.arena = capture.NewArena()
	s.env.ZoneScratch = s.arena.Acquire(s.env.Reference.Zone())
	if s.env.Anchor != nil {
		s.env.SearchScratch = s.arena.Acquire(s.env.Anchor.Rect())
	}
	s.draw = zone.DrawNone
	s.state = EngineState{Mode: ModeRunning, Track: tracking.State{}}
	s.started = false
	s.zones.SetActive(false)
	ev := s.event(EventArmed, fmt.Sprintf("armed on %s (high %.3f, low %.3f)", primary.Name, s.env.Logic.High, s.env.Logic.Low))
	s.mu.Unlock()
	s.emit([]Event{ev}, nil)
	return nil
}

// Stop returns to setup mode and resets the cycle machine. A cycle in
// progress is dropped.
func (s *Session) Stop() error {
	s.mu.Lock()
	if !CanTransition(s.state.Mode, ModeSetup) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state.Mode, ModeSetup)
	}
	s.state = EngineState{Mode: ModeSetup}
	s.zones.SetActive(false)
	s.releaseBuffers()
	ev := s.event(EventStopped, "analysis stopped")
	s.mu.Unlock()
	s.emit([]Event{ev}, nil)
	return nil
}

// VideoChanged resets everything that belongs to the previous video: zones,
// reference, anchor, engine state and collected cycles.
func (s *Session) VideoChanged() {
	s.mu.Lock()
	s.zones.Clear()
	s.env.Reference = nil
	s.env.Anchor = nil
	s.state = EngineState{Mode: ModeSetup}
	s.draw = zone.DrawNone
	s.releaseBuffers()
	s.cycles = nil
	s.started = false
	s.runSpan = 0
	s.horizon = 0
	s.lastFrame = 0
	ev := s.event(EventVideoReset, "video changed, setup cleared")
	s.mu.Unlock()
	s.emit([]Event{ev}, nil)
}

// ProcessFrame runs one detection tick for frame. Per-frame failures are
// absorbed: a frame without pixels scores 0 and a failed pose estimate
// keeps the previous label.
func (s *Session) ProcessFrame(ctx context.Context, frame capture.FrameSnapshot) Result {
	s.mu.Lock()
	s.lastFrame = frame.Timestamp
	if s.state.Mode != ModeRunning {
		s.mu.Unlock()
		return Result{Skipped: true}
	}
	var pre []Event
	if s.started && frame.Timestamp < s.prevRun {
		pre = append(pre, s.rewind(frame.Timestamp))
	}
	in := Input{Frame: frame}
	if s.estimator != nil && frame.Valid() && s.state.PoseDue(frame.Timestamp, s.env) {
		lm, err := s.estimator.Estimate(ctx, frame)
		if err == nil {
			in.Pose = &lm
		} else if s.logger != nil && !errors.Is(err, motion.ErrNoPose) {
			s.logger.Debug("pose estimate failed", "at", frame.Timestamp, "error", err)
		}
	}
	next, res := Step(s.state, in, s.env)
	s.state = next
	if !frame.Valid() && s.logger != nil {
		s.logger.Debug("frame without pixels scored as zero", "sequence", frame.Sequence)
	}
	s.zones.SetActive(next.Logic.Logic == cycle.StateTriggered)
	if s.started && frame.Timestamp > s.prevRun {
		if from := max(s.prevRun, s.horizon); frame.Timestamp > from {
			s.runSpan += frame.Timestamp - from
		}
	}
	s.prevRun, s.started = frame.Timestamp, true
	s.horizon = max(s.horizon, frame.Timestamp)
	if res.Cycle != nil {
		if n := len(s.cycles); n > 0 && res.Cycle.StartTime < s.cycles[n-1].StartTime {
			res.Events = replaceCompleted(res.Events, Event{
				Kind:    EventCycleReplayed,
				Message: fmt.Sprintf("cycle at %.2fs is earlier than the last counted one, not recorded", res.Cycle.StartTime.Seconds()),
				At:      frame.Timestamp,
			})
			res.Cycle = nil
		} else {
			s.zones.Hit()
			s.cycles = append(s.cycles, *res.Cycle)
		}
	}
	if len(pre) > 0 {
		res.Events = append(pre, res.Events...)
	}
	if s.logger != nil && res.TrackDur > 0 {
		s.logger.Debug("anchor search", "dur", res.TrackDur, "lost", next.Track.Lost)
	}
	s.mu.Unlock()
	s.emit(res.Events, res.Cycle)
	return res
}

// rewind drops the in-flight detection state after playback jumped back to
// at. Tracking and zones survive, counted cycles stay.
func (s *Session) rewind(at time.Duration) Event {
	from := s.prevRun
	s.state.Signal = signal.SignalState{}
	s.state.Logic = cycle.State{}
	s.state.Motion = motion.State{}
	s.state.DetectGate, s.state.PoseGate = Gate{}, Gate{}
	s.zones.SetActive(false)
	return Event{
		Kind:    EventSeekBack,
		Message: fmt.Sprintf("playback moved back from %.2fs to %.2fs, cycle state reset", from.Seconds(), at.Seconds()),
		At:      at,
	}
}

func replaceCompleted(events []Event, ev Event) []Event {
	for i := range events {
		if events[i].Kind == EventCycleCompleted {
			events[i] = ev
			return events
		}
	}
	return append(events, ev)
}

// View is a read-only copy of the session for display and reporting.
type View struct {
	ID           string             `json:"id"`
	Mode         Mode               `json:"mode"`
	DrawMode     zone.DrawMode      `json:"draw_mode"`
	Zones        []zone.TriggerStep `json:"zones"`
	Anchor       *image.Rectangle   `json:"anchor,omitempty"`
	HasReference bool               `json:"has_reference"`
	State        EngineState        `json:"state"`
	Cycles       int                `json:"cycles"`
	LastFrame    time.Duration      `json:"last_frame"`
	Thresholds   [2]float64         `json:"thresholds"`
}

// Snapshot returns the current view.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:           s.id,
		Mode:         s.state.Mode,
		DrawMode:     s.draw,
		Zones:        s.zones.Steps(),
		HasReference: s.env.Reference != nil,
		State:        s.state,
		Cycles:       len(s.cycles),
		LastFrame:    s.lastFrame,
		Thresholds:   [2]float64{s.env.Logic.High, s.env.Logic.Low},
	}
	if r, ok := s.zones.Anchor(); ok {
		v.Anchor = &r
	}
	return v
}

// Cycles returns a copy of the cycles emitted since the last video change.
func (s *Session) Cycles() []cycle.Cycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]cycle.Cycle, len(s.cycles))
	copy(out, s.cycles)
	return out
}

// Summary aggregates the emitted cycles over the media time spent running.
func (s *Session) Summary() cycle.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cycle.Summarize(s.cycles, s.takt, s.runSpan)
}

func (s *Session) releaseBuffers() {
	s.arena.Release()
	s.arena = nil
	s.env.ZoneScratch = nil
	s.env.SearchScratch = nil
}

// event builds an event stamped with the last seen frame time. Callers hold s.mu.
func (s *Session) event(kind EventKind, msg string) Event {
	return Event{Kind: kind, Message: msg, At: s.lastFrame}
}

// emit logs and delivers events and an optional cycle. Callers must not
// hold s.mu.
func (s *Session) emit(evs []Event, cy *cycle.Cycle) {
	if len(evs) == 0 && cy == nil {
		return
	}
	s.mu.Lock()
	listeners := append([]EventListener(nil), s.listeners...)
	cycleListeners := append([]cycle.CycleListener(nil), s.cycleListeners...)
	s.mu.Unlock()
	for _, ev := range evs {
		if s.logger != nil {
			if ev.Kind.Warning() {
				s.logger.Warn(ev.Message, "event", ev.Kind.String(), "at", ev.At)
			} else {
				s.logger.Info(ev.Message, "event", ev.Kind.String(), "at", ev.At)
			}
		}
		for _, l := range listeners {
			l(ev)
		}
	}
	if cy != nil {
		for _, l := range cycleListeners {
			l(*cy)
		}
	}
}
