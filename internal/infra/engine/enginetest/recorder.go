// Package enginetest provides a recording engine for tests.
package enginetest

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/raveforest/internal/domain/sample"
	"github.com/osa030/raveforest/internal/infra/engine"
)

// Op names a recorded engine call.
type Op string

const (
	OpStartVoice        Op = "start_voice"
	OpSetVoiceAmplitude Op = "set_voice_amplitude"
	OpFreeSample        Op = "free_sample"
	OpSampleDuration    Op = "sample_duration"
)

// Call is one recorded engine call.
type Call struct {
	Op     Op
	Sample string // sample name
	Voice  engine.Voice
	ID     engine.VoiceID
	Amp    float64
	Ramp   time.Duration
}

// Recorder is an engine.Engine that records calls and never produces sound.
type Recorder struct {
	mu sync.Mutex

	calls     []Call
	voices    map[engine.VoiceID]string
	durations map[string]time.Duration
	startErrs map[string]error
	durErrs   map[string]error
	ampErr    error
	next      int
	closed    bool

	// DefaultDuration is reported for samples without a set duration.
	DefaultDuration time.Duration
}

var _ engine.Engine = (*Recorder)(nil)

// New creates a recorder reporting one second for every sample.
func New() *Recorder {
	return &Recorder{
		voices:          make(map[engine.VoiceID]string),
		durations:       make(map[string]time.Duration),
		startErrs:       make(map[string]error),
		durErrs:         make(map[string]error),
		DefaultDuration: time.Second,
	}
}

// SetDuration sets the duration reported for the sample.
func (r *Recorder) SetDuration(name string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations[name] = d
}

// FailStart makes StartVoice fail for the sample.
func (r *Recorder) FailStart(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startErrs[name] = err
}

// FailDuration makes SampleDuration fail for the sample.
func (r *Recorder) FailDuration(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durErrs[name] = err
}

// FailAmplitude makes every SetVoiceAmplitude call fail.
func (r *Recorder) FailAmplitude(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ampErr = err
}

func (r *Recorder) Name() string {
	return "recorder"
}

func (r *Recorder) StartVoice(ctx context.Context, v engine.Voice) (engine.VoiceID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, Call{Op: OpStartVoice, Sample: v.Sample.Name, Voice: v})
	if err := r.startErrs[v.Sample.Name]; err != nil {
		return "", err
	}
	r.next++
	id := engine.VoiceID(v.Sample.Name + "#" + strconv.Itoa(r.next))
	r.voices[id] = v.Sample.Name
	return id, nil
}

func (r *Recorder) SetVoiceAmplitude(ctx context.Context, id engine.VoiceID, amp float64, ramp time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.voices[id]
	r.calls = append(r.calls, Call{Op: OpSetVoiceAmplitude, Sample: name, ID: id, Amp: amp, Ramp: ramp})
	if r.ampErr != nil {
		return r.ampErr
	}
	if !ok {
		return errors.Wrapf(engine.ErrUnknownVoice, "%s", id)
	}
	return nil
}

func (r *Recorder) FreeSample(ref sample.Ref) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: OpFreeSample, Sample: ref.Name})
	return nil
}

func (r *Recorder) SampleDuration(ref sample.Ref, start, finish float64) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, Call{Op: OpSampleDuration, Sample: ref.Name})
	if err := r.durErrs[ref.Name]; err != nil {
		return 0, err
	}
	d, ok := r.durations[ref.Name]
	if !ok {
		d = r.DefaultDuration
	}
	return time.Duration(float64(d) * (finish - start)), nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Calls returns a copy of all recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Call, len(r.calls))
	copy(result, r.calls)
	return result
}

// Count returns the number of calls of op for the sample.
func (r *Recorder) Count(op Op, name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range r.calls {
		if c.Op == op && c.Sample == name {
			n++
		}
	}
	return n
}

// Starts returns the number of voices started for the sample.
func (r *Recorder) Starts(name string) int {
	return r.Count(OpStartVoice, name)
}

// Fades returns the number of ramps to silence issued for the sample.
func (r *Recorder) Fades(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range r.calls {
		if c.Op == OpSetVoiceAmplitude && c.Sample == name && c.Amp == 0 {
			n++
		}
	}
	return n
}

// LastVoice returns the last voice started for the sample.
func (r *Recorder) LastVoice(name string) (engine.Voice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.calls) - 1; i >= 0; i-- {
		c := r.calls[i]
		if c.Op == OpStartVoice && c.Sample == name {
			return c.Voice, true
		}
	}
	return engine.Voice{}, false
}
