package capture

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
)

func TestSequenceSource_ReplaysInOrder(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		frame := synthFrame(16, 12, byte(40*(i+1)), nil)
		if err := imaging.Save(frame, filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i))); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "frame_003.png"), []byte("not a png"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	src, err := NewSequenceSource(dir, 10, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()
	if src.Len() != 4 {
		t.Fatalf("expected 4 frame files, got %d", src.Len())
	}
	for i := 0; i < 3; i++ {
		snap, err := src.Next()
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		if !snap.Valid() {
			t.Fatalf("frame %d should decode", i)
		}
		if want := time.Duration(i) * 100 * time.Millisecond; snap.Timestamp != want {
			t.Fatalf("frame %d timestamp %v, want %v", i, snap.Timestamp, want)
		}
		if got := snap.Image.Pix[0]; got != byte(40*(i+1)) {
			t.Fatalf("frame %d first pixel %d", i, got)
		}
	}
	bad, err := src.Next()
	if err != nil {
		t.Fatalf("corrupt frame must not error: %v", err)
	}
	if bad.Valid() || bad.Sequence != 4 {
		t.Fatalf("corrupt frame should yield empty snapshot with sequence, got %+v", bad)
	}
	if _, err := src.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestSequenceSource_RejectsEmptyDirAndBadFPS(t *testing.T) {
	if _, err := NewSequenceSource(t.TempDir(), 30, nil); err == nil {
		t.Fatalf("expected error for empty dir")
	}
	if _, err := NewSequenceSource(t.TempDir(), 0, nil); err == nil {
		t.Fatalf("expected error for zero fps")
	}
}

func TestToRGBA_NormalizesOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 15, 10))
	out := ToRGBA(src)
	if out.Bounds() != image.Rect(0, 0, 10, 5) {
		t.Fatalf("unexpected bounds %v", out.Bounds())
	}
	same := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if ToRGBA(same) != same {
		t.Fatalf("origin RGBA should pass through")
	}
}

func TestCaptureService_PublishesFrames(t *testing.T) {
	var calls atomic.Int32
	grab := func(r image.Rectangle) (*image.RGBA, error) {
		if calls.Add(1)%2 == 0 {
			return nil, errors.New("busy")
		}
		return synthFrame(8, 8, 10, nil), nil
	}
	sel := image.Rect(0, 0, 8, 8)
	svc := NewCaptureService(nil, grab, time.Millisecond, func() *image.Rectangle { return &sel })
	svc.Start()
	defer svc.Stop()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st := svc.Stats(); st.Captures >= 2 && st.Skipped >= 1 {
			snap := svc.LatestFrame()
			if !snap.Valid() || snap.Sequence < 2 {
				t.Fatalf("unexpected snapshot %+v", snap)
			}
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("capture service did not publish frames: %+v", svc.Stats())
}

func TestCaptureService_StartStopIdempotent(t *testing.T) {
	svc := NewCaptureService(nil, func(image.Rectangle) (*image.RGBA, error) { return nil, nil }, time.Millisecond, nil)
	svc.Start()
	svc.Start()
	if !svc.Running() {
		t.Fatalf("expected running")
	}
	svc.Stop()
	svc.Stop()
	if svc.Running() {
		t.Fatalf("expected stopped")
	}
}
