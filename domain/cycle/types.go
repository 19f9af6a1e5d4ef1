// Package cycle converts a smoothed change score into discrete work cycles
// using a three-state hysteresis machine with a minimum duration and a
// cooldown dead time.
package cycle

import "time"

// LogicState enumerates the detection states.
type LogicState int

const (
	StateIdle LogicState = iota
	StateTriggered
	StateCooldown
)

func (s LogicState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTriggered:
		return "triggered"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Outcome describes what a single Advance call did.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeStarted
	OutcomeCompleted
	OutcomeDiscarded
	OutcomeCooldownExpired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeStarted:
		return "started"
	case OutcomeCompleted:
		return "completed"
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeCooldownExpired:
		return "cooldown_expired"
	default:
		return "unknown"
	}
}

// Status grades a completed cycle against takt time.
type Status string

const (
	StatusOK       Status = "ok"
	StatusOver     Status = "over"
	StatusAbnormal Status = "abnormal" // set by operators, never by detection
)

// Cycle is one completed work cycle. Times are media positions.
type Cycle struct {
	ID        string        `json:"id"`
	StartTime time.Duration `json:"start_time"`
	EndTime   time.Duration `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Status    Status        `json:"status"`
	Label     string        `json:"label,omitempty"`
}

// State is the machine state carried between frames. Start and End are
// valid once a cycle has been triggered and completed respectively.
type State struct {
	Logic         LogicState    `json:"logic"`
	Start         time.Duration `json:"start"`
	End           time.Duration `json:"end"`
	CooldownUntil time.Duration `json:"cooldown_until"`
}

// Params holds the tuning constants of the machine.
type Params struct {
	High     float64
	Low      float64
	MinCycle time.Duration
	Cooldown time.Duration
	Takt     time.Duration
}

// Listener is notified of state transitions.
type Listener func(prev, next LogicState)

// CycleListener receives completed cycles in start order.
type CycleListener func(Cycle)
