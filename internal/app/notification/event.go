package notification

import "time"

// EventType represents a session event type.
type EventType int

const (
	EventSessionStarted  EventType = iota // Voice started for an accepted start request
	EventSessionRejected                  // Start request rejected by a filter
	EventAlreadyPlaying                   // Start request ignored, sample already playing
	EventStopRequested                    // Stop request handled (Reason holds the outcome)
	EventFadeStarted                      // Session began its fade-out
	EventSessionLooped                    // Voice restarted after its natural end
	EventSessionEnded                     // Session cleared its registry entry
	EventSessionFailed                    // Engine failure ended the session
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventSessionStarted:
		return "session_started"
	case EventSessionRejected:
		return "session_rejected"
	case EventAlreadyPlaying:
		return "already_playing"
	case EventStopRequested:
		return "stop_requested"
	case EventFadeStarted:
		return "fade_started"
	case EventSessionLooped:
		return "session_looped"
	case EventSessionEnded:
		return "session_ended"
	case EventSessionFailed:
		return "session_failed"
	default:
		return "unknown"
	}
}

// Reasons carried by EventSessionEnded.
const (
	ReasonStopped   = "stopped"   // Faded out after a stop request
	ReasonCompleted = "completed" // Natural duration elapsed
	ReasonShutdown  = "shutdown"  // Faded out on service shutdown
)

// Event represents a session event.
type Event struct {
	SequenceNo uint64
	Type       EventType
	Sample     string
	SessionID  string
	Reason     string  // Rejection code, stop outcome, end reason or error text
	Beats      float64 // Quantized session length in beats, when known
	Time       time.Time
}
