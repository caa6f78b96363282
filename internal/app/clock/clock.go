// Package clock provides the beat clock shared by all playback sessions.
package clock

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrInvalidBPM is returned when a non-positive tempo is set.
var ErrInvalidBPM = errors.New("bpm must be positive")

// Clock converts between beats and wall-clock durations at an adjustable tempo.
type Clock struct {
	bpm atomic.Uint64 // math.Float64bits of the tempo
}

// New creates a clock running at the given tempo.
func New(bpm float64) (*Clock, error) {
	c := &Clock{}
	if err := c.SetBPM(bpm); err != nil {
		return nil, err
	}
	return c, nil
}

// BPM returns the current tempo.
func (c *Clock) BPM() float64 {
	return math.Float64frombits(c.bpm.Load())
}

// SetBPM changes the tempo. Waits already in progress keep their old length.
func (c *Clock) SetBPM(bpm float64) error {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return errors.Wrapf(ErrInvalidBPM, "bpm=%v", bpm)
	}
	c.bpm.Store(math.Float64bits(bpm))
	return nil
}

// BeatDuration returns the length of one beat.
func (c *Clock) BeatDuration() time.Duration {
	return time.Duration(float64(time.Minute) / c.BPM())
}

// Duration converts beats to a wall-clock duration.
func (c *Clock) Duration(beats float64) time.Duration {
	return time.Duration(beats * float64(c.BeatDuration()))
}

// Beats converts a wall-clock duration to beats.
func (c *Clock) Beats(d time.Duration) float64 {
	return float64(d) / float64(c.BeatDuration())
}

// Quantize rounds a length in beats to the nearest whole beat.
// The result is never below one beat so a session always gets one stop check.
func Quantize(beats float64) int {
	q := int(math.Round(beats))
	if q < 1 {
		return 1
	}
	return q
}

// Wait blocks for the given number of beats or until ctx is done.
func (c *Clock) Wait(ctx context.Context, beats float64) error {
	if beats <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.Duration(beats))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
