package session

// Mode is the analyzer lifecycle state.
type Mode int

const (
	ModeSetup Mode = iota
	ModeRunning
)

func (m Mode) String() string {
	switch m {
	case ModeSetup:
		return "setup"
	case ModeRunning:
		return "running"
	default:
		return "unknown"
	}
}

var modeTransitions = map[Mode][]Mode{
	ModeSetup:   {ModeRunning},
	ModeRunning: {ModeSetup},
}

// CanTransition reports whether from → to is allowed.
func CanTransition(from, to Mode) bool {
	for _, m := range modeTransitions[from] {
		if m == to {
			return true
		}
	}
	return false
}
