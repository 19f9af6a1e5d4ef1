// Package tracking follows a small anchor patch from frame to frame and
// reports how far the scene has drifted since the patch was captured.
package tracking

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/soocke/cyclewatch/domain/capture"
)

var ErrDegenerateAnchor = errors.New("tracking: anchor is degenerate after clamping")

// Defaults mirror the configuration defaults.
const (
	DefaultSearchMargin = 50
	DefaultConfidence   = 0.6
)

// AnchorTemplate is the grayscale anchor patch with its NCC statistics.
type AnchorTemplate struct {
	tmpl *capture.Template
}

// Rect returns the frame rectangle the anchor was captured from.
func (a *AnchorTemplate) Rect() image.Rectangle {
	if a == nil {
		return image.Rectangle{}
	}
	return a.tmpl.Bounds()
}

// Flat reports whether the patch has no texture. Flat anchors never match.
func (a *AnchorTemplate) Flat() bool { return a == nil || a.tmpl.Flat() }

// CaptureAnchor clamps rect to the frame and stores its grayscale content.
func CaptureAnchor(frame *image.RGBA, rect image.Rectangle) (*AnchorTemplate, error) {
	if frame == nil || frame.Bounds().Empty() {
		return nil, capture.ErrNoFrame
	}
	clamped := capture.ClampRect(rect, frame.Bounds())
	if clamped.Dx() <= 1 || clamped.Dy() <= 1 {
		return nil, fmt.Errorf("%w: %v", ErrDegenerateAnchor, clamped)
	}
	p, err := capture.ExtractGray(frame, clamped, nil)
	if err != nil {
		return nil, fmt.Errorf("tracking: capture anchor: %w", err)
	}
	return &AnchorTemplate{tmpl: capture.NewTemplate(p)}, nil
}

// State is the tracker output carried between frames.
type State struct {
	Offset     image.Point `json:"offset"`
	Lost       bool        `json:"lost"`
	LostFrames int         `json:"lost_frames"`
	Score      float64     `json:"score"`
}

// Params configures the anchor search.
type Params struct {
	SearchMargin int
	Confidence   float64
	Stride       int
	Refine       bool
	DebugTiming  bool
}

// Result adds per-call diagnostics to the new state.
type Result struct {
	State
	Window image.Rectangle
	Dur    time.Duration
}

// Track searches for the anchor around its last known position. A match at
// or above the confidence threshold becomes the new offset; otherwise the
// previous offset is kept and the state is marked lost. Without a template
// the offset stays at zero and tracking is never lost. scratch, when
// non-nil, receives the grayscale search window.
func Track(frame *image.RGBA, a *AnchorTemplate, last State, p Params, scratch *capture.Plane) Result {
	if a == nil {
		return Result{}
	}
	if p.SearchMargin <= 0 {
		p.SearchMargin = DefaultSearchMargin
	}
	if p.Confidence <= 0 {
		p.Confidence = DefaultConfidence
	}
	lost := func(score float64, window image.Rectangle) Result {
		return Result{
			State: State{
				Offset:     last.Offset,
				Lost:       true,
				LostFrames: last.LostFrames + 1,
				Score:      score,
			},
			Window: window,
		}
	}
	if frame == nil || frame.Bounds().Empty() {
		return lost(-1, image.Rectangle{})
	}
	origin := a.Rect()
	window := capture.ExpandRect(origin.Add(last.Offset), p.SearchMargin, frame.Bounds())
	search, err := capture.ExtractGray(frame, window, scratch)
	if err != nil {
		return lost(-1, window)
	}
	m := capture.MatchTemplate(search, a.tmpl, capture.NCCOptions{
		Threshold:   p.Confidence,
		Stride:      p.Stride,
		Refine:      p.Refine,
		DebugTiming: p.DebugTiming,
	})
	if !m.Found {
		r := lost(m.Score, window)
		r.Dur = m.Dur
		return r
	}
	return Result{
		State: State{
			Offset: image.Pt(m.X, m.Y).Sub(origin.Min),
			Score:  m.Score,
		},
		Window: window,
		Dur:    m.Dur,
	}
}
