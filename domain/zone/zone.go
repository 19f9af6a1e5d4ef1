// Package zone holds the user-drawn regions the analyzer watches: trigger
// steps whose content is scored for change and the optional anchor patch
// used for drift compensation.
package zone

import (
	"errors"
	"fmt"
	"image"

	"github.com/google/uuid"
)

var (
	ErrUnknownZone = errors.New("zone: unknown zone")
	ErrInvalidRect = errors.New("zone: width and height must be positive")
	ErrNoPrimary   = errors.New("zone: no zone configured")
)

// TriggerStep is a rectangular region of interest monitored for change.
// Only the first zone drives cycle detection; further zones are kept for
// display and future multi-zone support.
type TriggerStep struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Rect     image.Rectangle `json:"rect"`
	IsActive bool            `json:"is_active"`
	HitCount int             `json:"hit_count"`
}

// Set is the ordered collection of zones owned by one analyzer session.
// Not safe for concurrent use.
type Set struct {
	steps  []TriggerStep
	anchor *image.Rectangle
	newID  func() string
}

// NewSet returns an empty zone set.
func NewSet() *Set { return &Set{newID: uuid.NewString} }

// Add appends a zone and returns its id.
func (s *Set) Add(name string, r image.Rectangle) (string, error) {
	r = r.Canon()
	if r.Empty() {
		return "", ErrInvalidRect
	}
	id := s.newID()
	if name == "" {
		name = fmt.Sprintf("Step %d", len(s.steps)+1)
	}
	s.steps = append(s.steps, TriggerStep{ID: id, Name: name, Rect: r})
	return id, nil
}

// Move replaces the rectangle of zone id. It reports whether the rectangle
// actually changed.
func (s *Set) Move(id string, r image.Rectangle) (bool, error) {
	r = r.Canon()
	if r.Empty() {
		return false, ErrInvalidRect
	}
	i := s.index(id)
	if i < 0 {
		return false, ErrUnknownZone
	}
	if s.steps[i].Rect == r {
		return false, nil
	}
	s.steps[i].Rect = r
	return true, nil
}

// Remove deletes zone id.
func (s *Set) Remove(id string) error {
	i := s.index(id)
	if i < 0 {
		return ErrUnknownZone
	}
	s.steps = append(s.steps[:i], s.steps[i+1:]...)
	return nil
}

// Clear drops every zone and the anchor.
func (s *Set) Clear() {
	s.steps = nil
	s.anchor = nil
}

// Primary returns the zone that drives cycle detection.
func (s *Set) Primary() (TriggerStep, error) {
	if len(s.steps) == 0 {
		return TriggerStep{}, ErrNoPrimary
	}
	return s.steps[0], nil
}

// IsPrimary reports whether id names the detection zone.
func (s *Set) IsPrimary(id string) bool {
	return len(s.steps) > 0 && s.steps[0].ID == id
}

// SetActive mirrors the detection state on the primary zone.
func (s *Set) SetActive(active bool) {
	if len(s.steps) > 0 {
		s.steps[0].IsActive = active
	}
}

// Hit increments the primary zone's completed-cycle counter.
func (s *Set) Hit() {
	if len(s.steps) > 0 {
		s.steps[0].HitCount++
	}
}

// Steps returns a copy of the zones in insertion order.
func (s *Set) Steps() []TriggerStep {
	out := make([]TriggerStep, len(s.steps))
	copy(out, s.steps)
	return out
}

// SetAnchor stores the anchor rectangle.
func (s *Set) SetAnchor(r image.Rectangle) error {
	r = r.Canon()
	if r.Empty() {
		return ErrInvalidRect
	}
	s.anchor = &r
	return nil
}

// ClearAnchor removes the anchor rectangle.
func (s *Set) ClearAnchor() { s.anchor = nil }

// Anchor returns the anchor rectangle if one is set.
func (s *Set) Anchor() (image.Rectangle, bool) {
	if s.anchor == nil {
		return image.Rectangle{}, false
	}
	return *s.anchor, true
}

func (s *Set) index(id string) int {
	for i := range s.steps {
		if s.steps[i].ID == id {
			return i
		}
	}
	return -1
}
