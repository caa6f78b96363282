// Package playback provides the playback supervisor that admits start
// requests and runs one session per playing sample.
package playback

// Status represents the result of a start request.
type Status int

const (
	StatusStarted        Status = iota // A new session was spawned
	StatusAlreadyPlaying               // The sample already has a session
	StatusRejected                     // A filter rejected the request
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusStarted:
		return "started"
	case StatusAlreadyPlaying:
		return "already_playing"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Outcome is the result of a start request.
type Outcome struct {
	Status    Status
	Code      string // Rejection code
	SessionID string // Set when a session was started
}
