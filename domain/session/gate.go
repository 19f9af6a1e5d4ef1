package session

import "time"

// Gate throttles work to a maximum rate measured on media timestamps.
// The zero value lets the first frame through.
type Gate struct {
	Last   time.Duration `json:"last"`
	Primed bool          `json:"primed"`
}

// Due reports whether enough media time has passed since the last mark.
// A timestamp earlier than the last mark (a seek backwards) is always due.
func (g Gate) Due(t, interval time.Duration) bool {
	return !g.Primed || t < g.Last || t-g.Last >= interval
}

// Mark records t as the time of the last accepted frame.
func (g Gate) Mark(t time.Duration) Gate { return Gate{Last: t, Primed: true} }

// IntervalFor converts a rate in Hz to the minimum spacing between frames.
// Non-positive rates disable throttling.
func IntervalFor(hz float64) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / hz)
}
