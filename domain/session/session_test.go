package session

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/soocke/cyclewatch/config"
	"github.com/soocke/cyclewatch/domain/capture"
	"github.com/soocke/cyclewatch/domain/cycle"
	"github.com/soocke/cyclewatch/domain/motion"
	"github.com/soocke/cyclewatch/domain/signal"
	"github.com/soocke/cyclewatch/domain/zone"
)

var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

var testZone = image.Rect(20, 20, 60, 60)

// wiggle alternates the left wrist between two nearby positions on every call.
type wiggle struct {
	mu    sync.Mutex
	calls int
}

func (w *wiggle) Estimate(ctx context.Context, _ capture.FrameSnapshot) (motion.Landmarks, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	x := 0.45
	if w.calls%2 == 0 {
		x = 0.46
	}
	return motion.Landmarks{
		LeftShoulder:  motion.Point{X: 0.4, Y: 0.4, Visibility: 1},
		RightShoulder: motion.Point{X: 0.6, Y: 0.4, Visibility: 1},
		LeftWrist:     motion.Point{X: x, Y: 0.5, Visibility: 1},
		RightWrist:    motion.Point{X: 1 - x, Y: 0.5, Visibility: 1},
	}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
	cycles []cycle.Cycle
}

func (r *recorder) event(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) cycle(c cycle.Cycle) {
	r.mu.Lock()
	r.cycles = append(r.cycles, c)
	r.mu.Unlock()
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recorder) count(k EventKind) int {
	n := 0
	for _, got := range r.kinds() {
		if got == k {
			n++
		}
	}
	return n
}

func sensitiveConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Detection.Sensitivity = 8 // high 0.19, low 0.114
	return cfg
}

// armed returns a running session whose reference is a flat gray zone.
func armed(t *testing.T, cfg *config.Config, est motion.PoseEstimator) (*Session, *recorder) {
	t.Helper()
	s := New(cfg, est, discardLogger)
	rec := &recorder{}
	s.AddListener(rec.event)
	s.AddCycleListener(rec.cycle)
	if _, err := s.SetZone(testZone); err != nil {
		t.Fatalf("zone: %v", err)
	}
	if err := s.CaptureReference(snap(synthFrame(100, 80, flat(50)), 0, 0)); err != nil {
		t.Fatalf("reference: %v", err)
	}
	if err := s.Arm(); err != nil {
		t.Fatalf("arm: %v", err)
	}
	return s, rec
}

// play feeds 20 fps frames; active reports which part of the zone is busy at t.
func play(s *Session, until time.Duration, active func(t time.Duration) image.Rectangle) {
	playFrom(s, 0, until, active)
}

func playFrom(s *Session, from, until time.Duration, active func(t time.Duration) image.Rectangle) {
	ctx := context.Background()
	for i := 0; from+time.Duration(i)*50*time.Millisecond <= until; i++ {
		t := from + time.Duration(i)*50*time.Millisecond
		frame := synthFrame(100, 80, flat(50))
		if r := active(t); !r.Empty() {
			applyRegion(frame, r, 200)
		}
		s.ProcessFrame(ctx, snap(frame, t, uint64(i+1)))
	}
}

func during(from, to time.Duration, r image.Rectangle) func(time.Duration) image.Rectangle {
	return func(t time.Duration) image.Rectangle {
		if t >= from && t < to {
			return r
		}
		return image.Rectangle{}
	}
}

func TestSession_ScenarioA_StaticZone(t *testing.T) {
	s, rec := armed(t, sensitiveConfig(), nil)
	play(s, 5*time.Second, func(time.Duration) image.Rectangle { return image.Rectangle{} })
	if len(rec.cycles) != 0 || len(s.Cycles()) != 0 {
		t.Fatalf("static zone emitted cycles: %v", rec.cycles)
	}
	if v := s.Snapshot(); v.State.Signal.Smooth != 0 || v.State.Logic.Logic != cycle.StateIdle {
		t.Fatalf("unexpected state %+v", v.State)
	}
}

func TestSession_ScenarioB_OneCycle(t *testing.T) {
	est := &wiggle{}
	s, rec := armed(t, sensitiveConfig(), est)
	half := image.Rect(20, 20, 60, 40)
	play(s, 6*time.Second, during(time.Second, 3*time.Second, half))

	if len(rec.cycles) != 1 {
		t.Fatalf("expected one cycle, got %v", rec.cycles)
	}
	cy := rec.cycles[0]
	if cy.StartTime < time.Second || cy.StartTime > 1200*time.Millisecond {
		t.Fatalf("start %v", cy.StartTime)
	}
	if cy.EndTime < 3*time.Second || cy.EndTime > 3500*time.Millisecond {
		t.Fatalf("end %v", cy.EndTime)
	}
	if cy.Duration < 1800*time.Millisecond || cy.Duration > 2500*time.Millisecond {
		t.Fatalf("duration %v", cy.Duration)
	}
	if cy.Status != cycle.StatusOK || cy.Label != string(motion.LabelOperation) || cy.ID == "" {
		t.Fatalf("unexpected cycle %+v", cy)
	}
	if est.calls == 0 || est.calls > 61 {
		t.Fatalf("pose estimator should be throttled, got %d calls", est.calls)
	}

	for _, k := range []EventKind{EventArmed, EventCycleStarted, EventCycleCompleted, EventCooldownExpired} {
		if rec.count(k) != 1 {
			t.Fatalf("expected one %s event, got kinds %v", k, rec.kinds())
		}
	}
	v := s.Snapshot()
	if len(v.Zones) != 1 || v.Zones[0].HitCount != 1 || v.Zones[0].IsActive {
		t.Fatalf("unexpected zone state %+v", v.Zones)
	}
	if sum := s.Summary(); sum.Count != 1 || sum.Labels["OPERATION"] != 1 || sum.Utilization <= 0 {
		t.Fatalf("unexpected summary %+v", sum)
	}

	cfg := sensitiveConfig()
	cfg.Detection.TaktTimeSeconds = 2
	over, overRec := armed(t, cfg, nil)
	play(over, 6*time.Second, during(time.Second, 3*time.Second, half))
	if len(overRec.cycles) != 1 || overRec.cycles[0].Status != cycle.StatusOver || overRec.cycles[0].Label != "" {
		t.Fatalf("expected one unlabeled over-takt cycle, got %v", overRec.cycles)
	}
}

func TestSession_ScenarioC_ShortSpike(t *testing.T) {
	s, rec := armed(t, sensitiveConfig(), nil)
	play(s, 4*time.Second, during(time.Second, 1300*time.Millisecond, testZone))
	if len(rec.cycles) != 0 {
		t.Fatalf("short spike emitted %v", rec.cycles)
	}
	if rec.count(EventCycleStarted) != 1 || rec.count(EventFalseTrigger) != 1 {
		t.Fatalf("expected start and false trigger, got %v", rec.kinds())
	}
	if s.Snapshot().State.Logic.Logic != cycle.StateIdle {
		t.Fatalf("expected idle after discarded trigger")
	}
}

func TestSession_ArmRequiresZoneAndReference(t *testing.T) {
	s := New(nil, nil, discardLogger)
	rec := &recorder{}
	s.AddListener(rec.event)
	if err := s.Arm(); !errors.Is(err, ErrNoZone) {
		t.Fatalf("expected ErrNoZone, got %v", err)
	}
	if _, err := s.SetZone(testZone); err != nil {
		t.Fatalf("zone: %v", err)
	}
	if err := s.Arm(); !errors.Is(err, ErrNoReference) {
		t.Fatalf("expected ErrNoReference, got %v", err)
	}
	if rec.count(EventArmRejected) != 2 || s.Snapshot().Mode != ModeSetup {
		t.Fatalf("rejections must leave setup mode, got %v", rec.kinds())
	}
	res := s.ProcessFrame(context.Background(), snap(synthFrame(100, 80, flat(50)), 0, 1))
	if !res.Skipped {
		t.Fatalf("frames must be ignored in setup mode")
	}
}

func TestSession_MoveZoneInvalidatesReference(t *testing.T) {
	s := New(nil, nil, discardLogger)
	frame := snap(synthFrame(100, 80, flat(50)), 0, 0)
	id, _ := s.SetZone(testZone)
	if err := s.CaptureReference(frame); err != nil {
		t.Fatalf("reference: %v", err)
	}
	if err := s.MoveZone(id, testZone); err != nil || !s.Snapshot().HasReference {
		t.Fatalf("moving to the same rect must keep the reference")
	}
	if err := s.MoveZone(id, testZone.Add(image.Pt(5, 0))); err != nil {
		t.Fatalf("move: %v", err)
	}
	if s.Snapshot().HasReference {
		t.Fatalf("moving the zone must clear the reference")
	}
	if err := s.Arm(); !errors.Is(err, ErrNoReference) {
		t.Fatalf("expected ErrNoReference after move, got %v", err)
	}

	if err := s.CaptureReference(frame); err != nil {
		t.Fatalf("recapture: %v", err)
	}
	extra, _ := s.AddZone("bin", image.Rect(0, 0, 10, 10))
	_ = s.MoveZone(extra, image.Rect(1, 1, 12, 12))
	if !s.Snapshot().HasReference {
		t.Fatalf("moving a secondary zone must keep the reference")
	}
	if err := s.RemoveZone(id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	v := s.Snapshot()
	if v.HasReference || len(v.Zones) != 1 || v.Zones[0].Name != "bin" {
		t.Fatalf("removing the detection zone must clear the reference: %+v", v)
	}
	if err := s.RemoveZone("missing"); !errors.Is(err, zone.ErrUnknownZone) {
		t.Fatalf("expected ErrUnknownZone, got %v", err)
	}
}

func TestSession_FailedCaptureKeepsReference(t *testing.T) {
	s := New(nil, nil, discardLogger)
	rec := &recorder{}
	s.AddListener(rec.event)
	if err := s.CaptureReference(snap(synthFrame(100, 80, flat(50)), 0, 0)); !errors.Is(err, ErrNoZone) {
		t.Fatalf("expected ErrNoZone, got %v", err)
	}
	s.SetZone(testZone)
	if err := s.CaptureReference(snap(synthFrame(100, 80, flat(50)), 0, 0)); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if err := s.CaptureReference(capture.FrameSnapshot{}); !errors.Is(err, signal.ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame, got %v", err)
	}
	if !s.Snapshot().HasReference {
		t.Fatalf("failed capture must keep the previous reference")
	}
	if rec.count(EventReferenceFailed) != 2 || rec.count(EventReferenceCaptured) != 1 {
		t.Fatalf("unexpected events %v", rec.kinds())
	}

	thin := New(nil, nil, discardLogger)
	thin.SetZone(image.Rect(10, 10, 11, 40))
	if err := thin.CaptureReference(snap(synthFrame(100, 80, flat(50)), 0, 0)); !errors.Is(err, signal.ErrDegenerateZone) {
		t.Fatalf("expected ErrDegenerateZone, got %v", err)
	}
}

func TestSession_ModeTransitions(t *testing.T) {
	s, rec := armed(t, nil, nil)
	if err := s.Arm(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("arming twice should fail, got %v", err)
	}
	if _, err := s.SetZone(image.Rect(0, 0, 10, 10)); !errors.Is(err, ErrRunning) {
		t.Fatalf("editing while running should fail, got %v", err)
	}
	if err := s.SetDrawMode(zone.DrawAnchor); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("drawing while running should fail, got %v", err)
	}
	play(s, 1500*time.Millisecond, during(500*time.Millisecond, 2*time.Second, testZone))
	if s.Snapshot().State.Logic.Logic != cycle.StateTriggered || !s.Snapshot().Zones[0].IsActive {
		t.Fatalf("expected an open cycle before stopping")
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	v := s.Snapshot()
	if v.Mode != ModeSetup || v.State.Logic.Logic != cycle.StateIdle || v.State.Signal != (signal.SignalState{}) || v.Zones[0].IsActive {
		t.Fatalf("stop must reset the engine: %+v", v)
	}
	if err := s.Stop(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("stopping twice should fail, got %v", err)
	}
	if rec.count(EventStopped) != 1 {
		t.Fatalf("expected one stop event, got %v", rec.kinds())
	}
	if err := s.Arm(); err != nil {
		t.Fatalf("re-arm with kept reference: %v", err)
	}
}

func TestSession_DrawModes(t *testing.T) {
	s := New(nil, nil, discardLogger)
	if err := s.SetDrawMode(zone.DrawStartROI); err != nil {
		t.Fatalf("none -> start: %v", err)
	}
	if err := s.SetDrawMode(zone.DrawAnchor); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("start -> anchor must pass through none, got %v", err)
	}
	if err := s.SetDrawMode(zone.DrawNone); err != nil {
		t.Fatalf("start -> none: %v", err)
	}
	if err := s.SetDrawMode(zone.DrawAnchor); err != nil {
		t.Fatalf("none -> anchor: %v", err)
	}
	if s.Snapshot().DrawMode != zone.DrawAnchor {
		t.Fatalf("draw mode not stored")
	}
}

func TestSession_VideoChangedResetsEverything(t *testing.T) {
	s, rec := armed(t, nil, nil)
	base := synthFrame(160, 120, scene(0, 0))
	play(s, 500*time.Millisecond, during(0, time.Second, testZone))
	s.VideoChanged()
	v := s.Snapshot()
	if v.Mode != ModeSetup || len(v.Zones) != 0 || v.HasReference || v.Anchor != nil || v.Cycles != 0 {
		t.Fatalf("video change must clear setup: %+v", v)
	}
	if v.State != (EngineState{}) {
		t.Fatalf("engine state must be zeroed, got %+v", v.State)
	}
	if rec.count(EventVideoReset) != 1 {
		t.Fatalf("expected reset event")
	}

	if err := s.SetAnchor(snap(base, 0, 0), image.Rect(18, 18, 42, 42)); err != nil {
		t.Fatalf("anchor: %v", err)
	}
	if v := s.Snapshot(); v.Anchor == nil || *v.Anchor != image.Rect(18, 18, 42, 42) {
		t.Fatalf("anchor not recorded: %+v", v.Anchor)
	}
	if err := s.ClearAnchor(); err != nil || s.Snapshot().Anchor != nil {
		t.Fatalf("clear anchor: %v", err)
	}
}

func TestGate(t *testing.T) {
	var g Gate
	if !g.Due(0, time.Second) {
		t.Fatalf("unprimed gate must be due")
	}
	g = g.Mark(time.Second)
	if g.Due(1500*time.Millisecond, time.Second) || !g.Due(2*time.Second, time.Second) {
		t.Fatalf("gate interval not respected")
	}
	if IntervalFor(20) != 50*time.Millisecond || IntervalFor(0) != 0 {
		t.Fatalf("unexpected intervals")
	}
	if !CanTransition(ModeSetup, ModeRunning) || CanTransition(ModeRunning, ModeRunning) {
		t.Fatalf("unexpected mode table")
	}
}

func TestSession_SeekBackResetsAndKeepsCycleOrder(t *testing.T) {
	s, rec := armed(t, sensitiveConfig(), nil)
	play(s, 7*time.Second, during(4*time.Second, 6*time.Second, testZone))
	if len(rec.cycles) != 1 {
		t.Fatalf("expected one cycle before the seek, got %v", rec.cycles)
	}
	if st := s.Snapshot().State.Logic.Logic; st != cycle.StateCooldown {
		t.Fatalf("expected cooldown before the seek, got %v", st)
	}

	if res := s.ProcessFrame(context.Background(), snap(synthFrame(100, 80, flat(50)), time.Second, 1)); res.Skipped {
		t.Fatal("frame after seek was skipped")
	}
	if rec.count(EventSeekBack) != 1 {
		t.Fatalf("expected a seek_back event, got kinds %v", rec.kinds())
	}
	if v := s.Snapshot(); v.State.Logic.Logic != cycle.StateIdle || v.State.Signal.Smooth != 0 {
		t.Fatalf("state not reset after seek: %+v", v.State)
	}

	playFrom(s, 1050*time.Millisecond, 5*time.Second, during(2*time.Second, 4*time.Second, testZone))
	if rec.count(EventCycleReplayed) != 1 || len(rec.cycles) != 1 || len(s.Cycles()) != 1 {
		t.Fatalf("replayed cycle should not be recorded: cycles %v kinds %v", rec.cycles, rec.kinds())
	}

	playFrom(s, 5050*time.Millisecond, 12*time.Second, during(8*time.Second, 10*time.Second, testZone))
	cycles := s.Cycles()
	if len(cycles) != 2 || len(rec.cycles) != 2 {
		t.Fatalf("expected two cycles, got %v", cycles)
	}
	for i := 1; i < len(cycles); i++ {
		if cycles[i].StartTime < cycles[i-1].StartTime {
			t.Fatalf("cycle starts out of order: %v", cycles)
		}
	}
	if rec.count(EventSeekBack) != 1 {
		t.Fatalf("forward playback reported a seek: %v", rec.kinds())
	}
	if v := s.Snapshot(); v.Zones[0].HitCount != 2 {
		t.Fatalf("hit count %d", v.Zones[0].HitCount)
	}
	s.mu.Lock()
	span := s.runSpan
	s.mu.Unlock()
	if span != 12*time.Second {
		t.Fatalf("rewatched media counted twice: run span %v", span)
	}
}
