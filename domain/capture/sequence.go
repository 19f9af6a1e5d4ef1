package capture

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

var frameExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true, ".tif": true, ".tiff": true, ".gif": true,
}

// SequenceSource replays a directory of frames exported from a video. Files
// are played in lexical order and timestamped at index/fps.
type SequenceSource struct {
	paths  []string
	fps    float64
	idx    int
	logger *slog.Logger
	decode func(string) (image.Image, error)
}

// NewSequenceSource lists the frame files under dir.
func NewSequenceSource(dir string, fps float64, logger *slog.Logger) (*SequenceSource, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("sequence: fps must be positive, got %v", fps)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("sequence: list %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if frameExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("sequence: no frames in %s", dir)
	}
	sort.Strings(paths)
	return &SequenceSource{
		paths:  paths,
		fps:    fps,
		logger: logger,
		decode: func(p string) (image.Image, error) { return imaging.Open(p) },
	}, nil
}

// Len returns the number of frames in the sequence.
func (s *SequenceSource) Len() int { return len(s.paths) }

// Next decodes the next frame. A frame that fails to decode is returned
// with a nil Image so the caller can score it as a transient failure.
func (s *SequenceSource) Next() (FrameSnapshot, error) {
	if s.idx >= len(s.paths) {
		return FrameSnapshot{}, io.EOF
	}
	i := s.idx
	s.idx++
	snap := FrameSnapshot{
		Timestamp:  time.Duration(float64(i) * float64(time.Second) / s.fps),
		CapturedAt: time.Now(),
		Sequence:   uint64(i + 1),
	}
	img, err := s.decode(s.paths[i])
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("frame decode failed", "path", s.paths[i], "error", err)
		}
		return snap, nil
	}
	snap.Image = ToRGBA(img)
	return snap, nil
}

// Close releases the source. It is safe to call more than once.
func (s *SequenceSource) Close() error {
	s.idx = len(s.paths)
	return nil
}

// ToRGBA returns img as an *image.RGBA whose bounds start at the origin.
func ToRGBA(img image.Image) *image.RGBA {
	if img == nil {
		return nil
	}
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

var _ Sequence = (*SequenceSource)(nil)
