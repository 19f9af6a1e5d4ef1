package zone

import (
	"errors"
	"fmt"
	"image"
	"testing"
)

func newTestSet() *Set {
	n := 0
	return &Set{newID: func() string { n++; return fmt.Sprintf("z%d", n) }}
}

func TestSet_AddMoveRemove(t *testing.T) {
	s := newTestSet()
	if _, err := s.Primary(); !errors.Is(err, ErrNoPrimary) {
		t.Fatalf("empty set should have no primary, got %v", err)
	}
	id, err := s.Add("", image.Rect(40, 40, 10, 10)) // drawn right-to-left
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	p, _ := s.Primary()
	if p.ID != id || p.Name != "Step 1" || p.Rect != image.Rect(10, 10, 40, 40) {
		t.Fatalf("unexpected primary %+v", p)
	}
	id2, _ := s.Add("packing", image.Rect(0, 0, 5, 5))
	if s.IsPrimary(id2) || !s.IsPrimary(id) {
		t.Fatalf("first zone must stay primary")
	}

	changed, err := s.Move(id, image.Rect(10, 10, 40, 40))
	if err != nil || changed {
		t.Fatalf("same rect should not count as a move: %v %v", changed, err)
	}
	changed, err = s.Move(id, image.Rect(12, 10, 40, 40))
	if err != nil || !changed {
		t.Fatalf("expected move, got %v %v", changed, err)
	}
	if _, err := s.Move("nope", image.Rect(0, 0, 2, 2)); !errors.Is(err, ErrUnknownZone) {
		t.Fatalf("expected ErrUnknownZone, got %v", err)
	}
	if _, err := s.Move(id, image.Rect(3, 3, 3, 9)); !errors.Is(err, ErrInvalidRect) {
		t.Fatalf("expected ErrInvalidRect, got %v", err)
	}

	if err := s.Remove(id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !s.IsPrimary(id2) {
		t.Fatalf("remaining zone should become primary")
	}
	if err := s.Remove(id); !errors.Is(err, ErrUnknownZone) {
		t.Fatalf("double remove: %v", err)
	}
}

func TestSet_PrimaryCountersAndCopy(t *testing.T) {
	s := newTestSet()
	s.Add("a", image.Rect(0, 0, 10, 10))
	s.Add("b", image.Rect(10, 0, 20, 10))
	s.SetActive(true)
	s.Hit()
	s.Hit()
	steps := s.Steps()
	if !steps[0].IsActive || steps[0].HitCount != 2 || steps[1].IsActive || steps[1].HitCount != 0 {
		t.Fatalf("counters should only touch the primary: %+v", steps)
	}
	steps[0].Name = "mutated"
	if p, _ := s.Primary(); p.Name != "a" {
		t.Fatalf("Steps must return a copy")
	}
}

func TestSet_Anchor(t *testing.T) {
	s := newTestSet()
	if _, ok := s.Anchor(); ok {
		t.Fatalf("no anchor expected")
	}
	if err := s.SetAnchor(image.Rect(5, 5, 5, 20)); !errors.Is(err, ErrInvalidRect) {
		t.Fatalf("expected ErrInvalidRect, got %v", err)
	}
	if err := s.SetAnchor(image.Rect(20, 20, 4, 4)); err != nil {
		t.Fatalf("set anchor: %v", err)
	}
	if r, ok := s.Anchor(); !ok || r != image.Rect(4, 4, 20, 20) {
		t.Fatalf("unexpected anchor %v %v", r, ok)
	}
	s.Add("", image.Rect(0, 0, 3, 3))
	s.Clear()
	if _, ok := s.Anchor(); ok || len(s.Steps()) != 0 {
		t.Fatalf("Clear must drop zones and anchor")
	}
	s.SetAnchor(image.Rect(0, 0, 8, 8))
	s.ClearAnchor()
	if _, ok := s.Anchor(); ok {
		t.Fatalf("ClearAnchor must drop the anchor")
	}
}

func TestDrawModeTransitions(t *testing.T) {
	cases := []struct {
		from, to DrawMode
		ok       bool
	}{
		{DrawNone, DrawStartROI, true},
		{DrawNone, DrawAnchor, true},
		{DrawStartROI, DrawNone, true},
		{DrawStartROI, DrawEndROI, false},
		{DrawAnchor, DrawStartROI, false},
		{DrawEndROI, DrawEndROI, true},
	}
	for _, c := range cases {
		if got := CanDraw(c.from, c.to); got != c.ok {
			t.Errorf("CanDraw(%s, %s) = %v, want %v", c.from, c.to, got, c.ok)
		}
	}
	if DrawMode(42).String() != "unknown" {
		t.Fatalf("unexpected name for invalid mode")
	}
}
