package cycle

import (
	"math"
	"time"
)

// Defaults used when Params fields are left at zero.
const (
	DefaultSensitivity = 5
	DefaultLowRatio    = 0.6
	DefaultMinCycle    = time.Second
	DefaultCooldown    = 1500 * time.Millisecond
)

// ThresholdsFor derives the hysteresis pair from a 1..10 sensitivity.
// Higher sensitivity lowers both thresholds. lowRatio outside (0,1) falls
// back to DefaultLowRatio so low always stays below high.
func ThresholdsFor(sensitivity int, lowRatio float64) (high, low float64) {
	sensitivity = min(max(sensitivity, 1), 10)
	if lowRatio <= 0 || lowRatio >= 1 {
		lowRatio = DefaultLowRatio
	}
	high = math.Max(0.01, 0.35-0.02*float64(sensitivity))
	return high, lowRatio * high
}

// ParamsFor builds Params from user-facing settings.
func ParamsFor(sensitivity int, lowRatio float64, minCycle, cooldown, takt time.Duration) Params {
	high, low := ThresholdsFor(sensitivity, lowRatio)
	if minCycle <= 0 {
		minCycle = DefaultMinCycle
	}
	if cooldown < 0 {
		cooldown = DefaultCooldown
	}
	return Params{High: high, Low: low, MinCycle: minCycle, Cooldown: cooldown, Takt: takt}
}

// Advance applies at most one transition for smoothed score s observed at
// media time t.
func Advance(st State, s float64, t time.Duration, p Params) (State, Outcome) {
	switch st.Logic {
	case StateIdle:
		if s > p.High {
			return State{Logic: StateTriggered, Start: t}, OutcomeStarted
		}
	case StateTriggered:
		if s >= p.Low {
			return st, OutcomeNone
		}
		if t-st.Start > p.MinCycle {
			st.Logic = StateCooldown
			st.End = t
			st.CooldownUntil = t + p.Cooldown
			return st, OutcomeCompleted
		}
		return State{Logic: StateIdle}, OutcomeDiscarded
	case StateCooldown:
		if t > st.CooldownUntil {
			return State{Logic: StateIdle}, OutcomeCooldownExpired
		}
	}
	return st, OutcomeNone
}

// StatusFor grades duration against takt. A non-positive takt disables the
// check.
func StatusFor(d, takt time.Duration) Status {
	if takt > 0 && d > takt {
		return StatusOver
	}
	return StatusOK
}

// Emit builds the cycle closed by an OutcomeCompleted transition.
func Emit(st State, p Params, id, label string) Cycle {
	d := st.End - st.Start
	return Cycle{
		ID:        id,
		StartTime: st.Start,
		EndTime:   st.End,
		Duration:  d,
		Status:    StatusFor(d, p.Takt),
		Label:     label,
	}
}
