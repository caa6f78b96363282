// Package samplestest writes sample files for tests.
package samplestest

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/require"
)

// WriteWAV writes a mono 16-bit WAV file holding a constant signal of the
// given length and returns its path.
func WriteWAV(t *testing.T, dir, name string, rate beep.SampleRate, frames int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	format := beep.Format{SampleRate: rate, NumChannels: 1, Precision: 2}
	require.NoError(t, wav.Encode(f, &constant{left: frames, value: 0.5}, format))
	return path
}

// constant streams a fixed value for a number of frames.
type constant struct {
	left  int
	value float64
}

func (c *constant) Stream(samples [][2]float64) (int, bool) {
	if c.left <= 0 {
		return 0, false
	}
	n := int(math.Min(float64(len(samples)), float64(c.left)))
	for i := 0; i < n; i++ {
		samples[i][0] = c.value
		samples[i][1] = c.value
	}
	c.left -= n
	return n, true
}

func (c *constant) Err() error { return nil }
