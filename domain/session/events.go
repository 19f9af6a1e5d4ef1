package session

import "time"

// EventKind names an occasion on the status channel.
type EventKind int

const (
	EventReferenceCaptured EventKind = iota + 1
	EventReferenceFailed
	EventReferenceCleared
	EventAnchorCaptured
	EventAnchorFailed
	EventZoneMoved
	EventZoneRemoved
	EventArmed
	EventArmRejected
	EventStopped
	EventVideoReset
	EventTrackingLost
	EventTrackingRecovered
	EventCycleStarted
	EventCycleCompleted
	EventFalseTrigger
	EventCooldownExpired
	EventSeekBack
	EventCycleReplayed
)

func (k EventKind) String() string {
	switch k {
	case EventReferenceCaptured:
		return "reference_captured"
	case EventReferenceFailed:
		return "reference_failed"
	case EventReferenceCleared:
		return "reference_cleared"
	case EventAnchorCaptured:
		return "anchor_captured"
	case EventAnchorFailed:
		return "anchor_failed"
	case EventZoneMoved:
		return "zone_moved"
	case EventZoneRemoved:
		return "zone_removed"
	case EventArmed:
		return "armed"
	case EventArmRejected:
		return "arm_rejected"
	case EventStopped:
		return "stopped"
	case EventVideoReset:
		return "video_reset"
	case EventTrackingLost:
		return "tracking_lost"
	case EventTrackingRecovered:
		return "tracking_recovered"
	case EventCycleStarted:
		return "cycle_started"
	case EventCycleCompleted:
		return "cycle_completed"
	case EventFalseTrigger:
		return "false_trigger"
	case EventCooldownExpired:
		return "cooldown_expired"
	case EventSeekBack:
		return "seek_back"
	case EventCycleReplayed:
		return "cycle_replayed"
	default:
		return "unknown"
	}
}

// Warning reports whether the event should be surfaced as a warning.
func (k EventKind) Warning() bool {
	switch k {
	case EventReferenceFailed, EventAnchorFailed, EventArmRejected, EventTrackingLost, EventCycleReplayed:
		return true
	}
	return false
}

// Event is one status message. At is the media time of the frame that
// caused it, or of the last seen frame for setup actions.
type Event struct {
	Kind    EventKind     `json:"kind"`
	Message string        `json:"message"`
	At      time.Duration `json:"at"`
}

// EventListener receives status events.
type EventListener func(Event)
