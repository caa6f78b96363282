// Package registry provides the process-wide sample playback registry.
package registry

// State represents the playback state of a sample.
type State int

const (
	StateIdle          State = iota // No session for the sample (never stored)
	StatePlaying                    // A session is playing the sample
	StateStopRequested              // A stop was requested and not yet observed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StateStopRequested:
		return "stop_requested"
	default:
		return "unknown"
	}
}

// EarlyStopPolicy decides what happens to a stop request for a sample that
// has no session yet.
type EarlyStopPolicy int

const (
	EarlyStopDiscard EarlyStopPolicy = iota // Drop the request
	EarlyStopRetain                         // Keep it for the next session of the sample
)

// ParseEarlyStopPolicy parses the configuration value of an early stop policy.
func ParseEarlyStopPolicy(s string) (EarlyStopPolicy, bool) {
	switch s {
	case "discard", "":
		return EarlyStopDiscard, true
	case "retain":
		return EarlyStopRetain, true
	default:
		return EarlyStopDiscard, false
	}
}

// String returns the string representation of the policy.
func (p EarlyStopPolicy) String() string {
	switch p {
	case EarlyStopDiscard:
		return "discard"
	case EarlyStopRetain:
		return "retain"
	default:
		return "unknown"
	}
}

// StopOutcome reports what a stop request did to the registry.
type StopOutcome int

const (
	StopRecorded  StopOutcome = iota // Active session flagged
	StopDuplicate                    // Session was already flagged
	StopPending                      // No session; retained for the next one
	StopDropped                      // No session; discarded
)

// String returns the string representation of the outcome.
func (o StopOutcome) String() string {
	switch o {
	case StopRecorded:
		return "recorded"
	case StopDuplicate:
		return "duplicate"
	case StopPending:
		return "pending"
	case StopDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// ClaimOutcome reports the result of a claim.
type ClaimOutcome int

const (
	ClaimStarted        ClaimOutcome = iota // New entry created
	ClaimAlreadyPlaying                     // The sample already has an entry
	ClaimFull                               // The registry is at capacity
)

// String returns the string representation of the outcome.
func (o ClaimOutcome) String() string {
	switch o {
	case ClaimStarted:
		return "started"
	case ClaimAlreadyPlaying:
		return "already_playing"
	case ClaimFull:
		return "full"
	default:
		return "unknown"
	}
}
