package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/soocke/cyclewatch/config"
	"github.com/soocke/cyclewatch/domain/capture"
	"github.com/soocke/cyclewatch/domain/cycle"
	"github.com/soocke/cyclewatch/domain/session"
)

// Runner feeds frames from a source into a session. Setup (zone, reference,
// anchor) comes from the config and is captured from the frame selected by
// reference_frame; everything after it is analysed.
type Runner struct {
	session *session.Session
	cfg     *config.Config
	logger  *slog.Logger
	poll    time.Duration

	// OnSetup, if set, is called once the session is armed with the frame
	// the setup was captured from.
	OnSetup func(frame capture.FrameSnapshot, v session.View)

	seen  int
	armed bool
}

func NewRunner(s *session.Session, cfg *config.Config, logger *slog.Logger) *Runner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Runner{session: s, cfg: cfg, logger: logger, poll: session.IntervalFor(cfg.Detection.DetectHz)}
}

// Armed reports whether setup succeeded and frames are being analysed.
func (r *Runner) Armed() bool { return r.armed }

// setup applies the configured zone and anchor to frame and arms the session.
func (r *Runner) setup(frame capture.FrameSnapshot) error {
	if r.cfg.Zone.Empty() {
		return session.ErrNoZone
	}
	if _, err := r.session.SetZone(r.cfg.Zone.Image()); err != nil {
		return fmt.Errorf("set zone: %w", err)
	}
	if err := r.session.CaptureReference(frame); err != nil {
		return fmt.Errorf("capture reference: %w", err)
	}
	if r.cfg.Anchor != nil && !r.cfg.Anchor.Empty() {
		if err := r.session.SetAnchor(frame, r.cfg.Anchor.Image()); err != nil {
			return fmt.Errorf("set anchor: %w", err)
		}
	}
	return r.session.Arm()
}

// handle routes one frame: setup until armed, then analysis.
func (r *Runner) handle(ctx context.Context, frame capture.FrameSnapshot) error {
	idx := r.seen
	r.seen++
	if r.armed {
		r.session.ProcessFrame(ctx, frame)
		return nil
	}
	if idx < r.cfg.ReferenceFrame {
		return nil
	}
	if !frame.Valid() {
		if r.logger != nil {
			r.logger.Warn("reference frame unusable, trying the next one", "sequence", frame.Sequence)
		}
		return nil
	}
	if err := r.setup(frame); err != nil {
		return err
	}
	r.armed = true
	if r.logger != nil {
		r.logger.Info("setup captured", "frame", idx, "at", frame.Timestamp)
	}
	if r.OnSetup != nil {
		r.OnSetup(frame, r.session.Snapshot())
	}
	return nil
}

// Replay processes an offline sequence as fast as it decodes. It returns
// the session summary once the sequence ends.
func (r *Runner) Replay(ctx context.Context, seq capture.Sequence) (cycle.Summary, error) {
	defer seq.Close()
	for {
		if err := ctx.Err(); err != nil {
			return r.finish(), err
		}
		frame, err := seq.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return r.finish(), err
		}
		if err := r.handle(ctx, frame); err != nil {
			return r.finish(), err
		}
	}
	if !r.armed {
		return r.finish(), fmt.Errorf("sequence ended after %d frames before setup frame %d", r.seen, r.cfg.ReferenceFrame)
	}
	return r.finish(), nil
}

// Run polls a live source until ctx is cancelled. Frames whose sequence
// number was already processed are skipped.
func (r *Runner) Run(ctx context.Context, src capture.FrameSource) (cycle.Summary, error) {
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()
	var last uint64
	for {
		select {
		case <-ctx.Done():
			return r.finish(), nil
		case <-ticker.C:
		}
		if !src.Running() {
			continue
		}
		frame := src.LatestFrame()
		if frame.Sequence == 0 || frame.Sequence == last {
			continue
		}
		last = frame.Sequence
		if err := r.handle(ctx, frame); err != nil {
			return r.finish(), err
		}
	}
}

func (r *Runner) finish() cycle.Summary {
	if r.armed {
		if err := r.session.Stop(); err != nil && r.logger != nil {
			r.logger.Warn("stop session", "error", err)
		}
	}
	return r.session.Summary()
}

// WriteReport prints the cycle table and summary in plain text.
func WriteReport(w io.Writer, cycles []cycle.Cycle, s cycle.Summary) error {
	ew := &errWriter{w: w}
	ew.printf("%-4s %-10s %-10s %-10s %-6s %s\n", "#", "start", "end", "duration", "status", "label")
	for i, c := range cycles {
		ew.printf("%-4d %-10s %-10s %-10s %-6s %s\n", i+1,
			fmtSeconds(c.StartTime), fmtSeconds(c.EndTime), fmtSeconds(c.Duration), c.Status, c.Label)
	}
	ew.printf("\ncycles: %d (over takt: %d, abnormal: %d)\n", s.Count, s.Over, s.Abnormal)
	if s.Count > 0 {
		ew.printf("mean %s  std %s  min %s  max %s\n",
			fmtSeconds(s.Mean), fmtSeconds(s.StdDev), fmtSeconds(s.Min), fmtSeconds(s.Max))
	}
	if s.Takt > 0 {
		ew.printf("takt %s\n", fmtSeconds(s.Takt))
	}
	ew.printf("utilization %.1f%%\n", s.Utilization*100)
	if len(s.Labels) > 0 {
		labels := make([]string, 0, len(s.Labels))
		for l := range s.Labels {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		for _, l := range labels {
			ew.printf("  %-10s %d\n", l, s.Labels[l])
		}
	}
	return ew.err
}

func fmtSeconds(d time.Duration) string { return fmt.Sprintf("%.2fs", d.Seconds()) }

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
