package playback

// StopDetection selects how a session notices stop requests.
type StopDetection int

const (
	// StopDetectionPoll checks the registry once per beat. The session ends
	// when the sample's natural duration elapses.
	StopDetectionPoll StopDetection = iota
	// StopDetectionSignal blocks on the stop signal of the registry entry.
	// The session holds its entry until a stop arrives.
	StopDetectionSignal
)

// ParseStopDetection parses the configuration value of a stop detection strategy.
func ParseStopDetection(s string) (StopDetection, bool) {
	switch s {
	case "poll", "":
		return StopDetectionPoll, true
	case "signal":
		return StopDetectionSignal, true
	default:
		return StopDetectionPoll, false
	}
}

// String returns the string representation of the strategy.
func (d StopDetection) String() string {
	switch d {
	case StopDetectionPoll:
		return "poll"
	case StopDetectionSignal:
		return "signal"
	default:
		return "unknown"
	}
}
