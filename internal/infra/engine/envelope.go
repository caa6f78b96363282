package engine

import (
	"math"

	"github.com/gopxl/beep/v2"
)

// envelope applies the attack and release shape and amplitude ramps to a
// voice. All fields are guarded by the output lock.
type envelope struct {
	src     beep.Streamer
	pos     int // frames streamed so far
	total   int // frames the source produces, 0 if unknown
	attack  int // frames
	release int // frames

	amp      float64
	rampFrom float64
	rampTo   float64
	rampPos  int
	rampLen  int
	silenced bool // a ramp to zero completed; the voice is over
}

// Stream implements beep.Streamer.
func (e *envelope) Stream(samples [][2]float64) (int, bool) {
	if e.silenced {
		return 0, false
	}

	n, ok := e.src.Stream(samples)
	for i := 0; i < n; i++ {
		if e.silenced {
			samples[i] = [2]float64{}
			continue
		}
		g := e.gain()
		samples[i][0] *= g
		samples[i][1] *= g
		e.pos++
	}
	return n, ok
}

// Err implements beep.Streamer.
func (e *envelope) Err() error {
	return e.src.Err()
}

// level returns the current amplitude without the envelope shape.
func (e *envelope) level() float64 {
	if e.rampLen == 0 {
		return e.amp
	}
	return e.rampFrom + (e.rampTo-e.rampFrom)*float64(e.rampPos)/float64(e.rampLen)
}

// gain returns the gain of the next frame and advances the ramp.
func (e *envelope) gain() float64 {
	level := e.level()
	if e.rampLen > 0 {
		e.rampPos++
		if e.rampPos >= e.rampLen {
			e.amp = e.rampTo
			e.rampLen = 0
			e.silenced = e.amp == 0
		}
	}

	shape := 1.0
	if e.attack > 0 && e.pos < e.attack {
		shape = float64(e.pos) / float64(e.attack)
	}
	if e.release > 0 && e.total > 0 {
		if left := e.total - e.pos; left < e.release {
			shape = math.Min(shape, math.Max(0, float64(left)/float64(e.release)))
		}
	}
	return level * shape
}

// setAmplitude starts a linear ramp from the current level to amp.
func (e *envelope) setAmplitude(amp float64, frames int) {
	if frames <= 0 {
		e.amp = amp
		e.rampLen = 0
		e.silenced = amp == 0
		return
	}
	e.rampFrom = e.level()
	e.rampTo = amp
	e.rampPos = 0
	e.rampLen = frames
}
