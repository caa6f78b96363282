package controller

// Phase represents the controller lifecycle phase.
type Phase int

const (
	PhaseStarting     Phase = iota // Created, samples not prepared yet
	PhaseRunning                   // Accepting requests
	PhaseShuttingDown              // Fading out sessions
	PhaseStopped                   // Engine released
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseShuttingDown:
		return "shutting_down"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
