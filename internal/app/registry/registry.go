package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// entry is the registry record of one live playback session.
type entry struct {
	sessionID string
	state     State
	startedAt time.Time
	stop      chan struct{} // closed on the first stop request
	signaled  bool
}

// Entry is a read-only snapshot of a registry record.
type Entry struct {
	Name      string
	SessionID string
	State     State
	StartedAt time.Time
}

// Registry tracks which samples are playing. Every method is a single
// critical section, so callers never observe a half-applied transition.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]*entry
	pending  map[string]struct{} // stop requests retained for samples without a session
	policy   EarlyStopPolicy
	capacity int
	now      func() time.Time
}

// New creates an empty registry.
func New(policy EarlyStopPolicy) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		pending: make(map[string]struct{}),
		policy:  policy,
		now:     time.Now,
	}
}

// Policy returns the early stop policy of the registry.
func (r *Registry) Policy() EarlyStopPolicy {
	return r.policy
}

// IsPlaying reports whether a session exists for the sample.
func (r *Registry) IsPlaying(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.entries[name]
	return ok
}

// StateOf returns the current state of the sample.
func (r *Registry) StateOf(name string) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return StateIdle
	}
	return e.state
}

// MarkPlaying claims the sample for a new session. It returns the new
// session ID and true, or false when a session already exists or the
// registry is full.
func (r *Registry) MarkPlaying(name string) (string, bool) {
	id, outcome := r.Claim(name)
	return id, outcome == ClaimStarted
}

// Claim claims the sample for a new session and reports why a claim was
// refused. A retained early stop request is applied to the new entry.
func (r *Registry) Claim(name string) (string, ClaimOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; ok {
		return "", ClaimAlreadyPlaying
	}
	if r.capacity > 0 && len(r.entries) >= r.capacity {
		return "", ClaimFull
	}

	e := &entry{
		sessionID: uuid.New().String(),
		state:     StatePlaying,
		startedAt: r.now(),
		stop:      make(chan struct{}),
	}
	if _, ok := r.pending[name]; ok {
		delete(r.pending, name)
		e.state = StateStopRequested
		e.signaled = true
		close(e.stop)
	}
	r.entries[name] = e
	return e.sessionID, ClaimStarted
}

// SetCapacity caps the number of entries. Zero removes the cap.
func (r *Registry) SetCapacity(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capacity = n
}

// MarkStopRequested records a stop request for the sample.
func (r *Registry) MarkStopRequested(name string) StopOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		if r.policy == EarlyStopRetain {
			r.pending[name] = struct{}{}
			return StopPending
		}
		return StopDropped
	}

	if e.state == StateStopRequested {
		return StopDuplicate
	}
	e.state = StateStopRequested
	if !e.signaled {
		e.signaled = true
		close(e.stop)
	}
	return StopRecorded
}

// ConsumeStopRequest reports whether a stop was requested for the sample and
// resets the flag, so each request is observed once.
func (r *Registry) ConsumeStopRequest(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok || e.state != StateStopRequested {
		return false
	}
	e.state = StatePlaying
	return true
}

// StopSignal returns a channel closed on the first stop request of the
// current session. It returns nil when the sample has no session.
func (r *Registry) StopSignal(name string) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return nil
	}
	return e.stop
}

// Clear removes the entry of the given session. It is a no-op when the entry
// belongs to another session.
func (r *Registry) Clear(name, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok || e.sessionID != sessionID {
		return false
	}
	delete(r.entries, name)
	return true
}

// HasPendingStop reports whether an early stop request is retained for the sample.
func (r *Registry) HasPendingStop(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.pending[name]
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot returns all entries sorted by name.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := lo.MapToSlice(r.entries, func(name string, e *entry) Entry {
		return Entry{
			Name:      name,
			SessionID: e.sessionID,
			State:     e.state,
			StartedAt: e.startedAt,
		}
	})
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}
