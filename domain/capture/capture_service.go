package capture

import (
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vova616/screenshot"
)

const captureStatsLogInterval = 5 * time.Second

// GrabFunc captures a region of the screen. An empty rectangle requests the
// whole screen.
type GrabFunc func(image.Rectangle) (*image.RGBA, error)

// ScreenGrab captures the screen (or a rectangle of it) using the platform
// screenshot backend.
func ScreenGrab(r image.Rectangle) (*image.RGBA, error) {
	if r.Empty() {
		return screenshot.CaptureScreen()
	}
	return screenshot.CaptureRect(r)
}

// CaptureService acquires frames from the screen (for example a video player
// window) and exposes the latest capture alongside instrumentation data.
// Use NewCaptureService to construct an instance.
type CaptureService interface {
	Start()
	Stop()
	LatestFrame() FrameSnapshot
	Running() bool
	SetSelectionProvider(func() *image.Rectangle)
	Stats() CaptureStats
}

type captureService struct {
	running      atomic.Bool
	latest       atomic.Pointer[FrameSnapshot]
	selMu        sync.RWMutex
	selFn        func() *image.Rectangle // capture region (optional)
	grab         GrabFunc
	interval     time.Duration
	logger       *slog.Logger
	started      time.Time
	captures     atomic.Uint64
	skipped      atomic.Uint64
	captureNanos atomic.Uint64
	sequence     atomic.Uint64
	done         chan struct{}
	exited       chan struct{}
}

// NewCaptureService constructs a capture service that grabs a frame every
// interval. A nil grab uses ScreenGrab.
func NewCaptureService(logger *slog.Logger, grab GrabFunc, interval time.Duration, selectionFn func() *image.Rectangle) CaptureService {
	if grab == nil {
		grab = ScreenGrab
	}
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	return &captureService{selFn: selectionFn, grab: grab, interval: interval, logger: logger}
}

func (s *captureService) SetSelectionProvider(fn func() *image.Rectangle) {
	s.selMu.Lock()
	s.selFn = fn
	s.selMu.Unlock()
}

func (s *captureService) selection() image.Rectangle {
	s.selMu.RLock()
	fn := s.selFn
	s.selMu.RUnlock()
	if fn == nil {
		return image.Rectangle{}
	}
	if r := fn(); r != nil {
		return *r
	}
	return image.Rectangle{}
}

func (s *captureService) LatestFrame() FrameSnapshot {
	snap := s.latest.Load()
	if snap == nil {
		return FrameSnapshot{}
	}
	return *snap
}

func (s *captureService) Running() bool { return s.running.Load() }

func (s *captureService) Stats() CaptureStats {
	captures := s.captures.Load()
	skipped := s.skipped.Load()
	total := s.captureNanos.Load()
	var avg time.Duration
	avgMicros := 0.0
	if captures > 0 && total > 0 {
		avg = time.Duration(total / captures)
		avgMicros = float64(avg) / float64(time.Microsecond)
	}
	snapshot := s.LatestFrame()
	age := time.Duration(0)
	if !snapshot.CapturedAt.IsZero() {
		age = time.Since(snapshot.CapturedAt)
	}
	return CaptureStats{
		Captures:         captures,
		Skipped:          skipped,
		AvgCapture:       avg,
		AvgCaptureMicros: avgMicros,
		LastCapture:      snapshot.CapturedAt,
		LatestFrameAge:   age,
		Sequence:         snapshot.Sequence,
	}
}

func (s *captureService) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.started = time.Now()
	s.done = make(chan struct{})
	s.exited = make(chan struct{})
	go s.loop(s.done, s.exited)
}

func (s *captureService) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.done)
	<-s.exited
}

func (s *captureService) loop(done <-chan struct{}, exited chan<- struct{}) {
	defer close(exited)
	defer func() {
		if r := recover(); r != nil && s.logger != nil {
			s.logger.Error("capture loop panic", "error", r)
		}
	}()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	logTicker := time.NewTicker(captureStatsLogInterval)
	defer logTicker.Stop()
	for {
		select {
		case <-done:
			return
		case <-logTicker.C:
			s.logStats()
		case <-ticker.C:
			s.captureOnce()
		}
	}
}

func (s *captureService) captureOnce() {
	start := time.Now()
	img, err := s.grab(s.selection())
	if err != nil || img == nil {
		s.skipped.Add(1)
		if err != nil && s.logger != nil {
			s.logger.Error("capture frame", "error", err)
		}
		return
	}
	s.captureNanos.Add(uint64(time.Since(start).Nanoseconds()))
	s.captures.Add(1)
	seq := s.sequence.Add(1)
	now := time.Now()
	s.latest.Store(&FrameSnapshot{Image: img, Timestamp: now.Sub(s.started), CapturedAt: now, Sequence: seq})
}

func (s *captureService) logStats() {
	if s.logger == nil {
		return
	}
	stats := s.Stats()
	s.logger.Debug("capture.stats",
		"captures", stats.Captures,
		"skipped", stats.Skipped,
		"avg_capture", stats.AvgCapture,
		"age", stats.LatestFrameAge,
	)
}
