//go:build !((linux && cgo) || windows || darwin)

package engine

import (
	"sync"

	"github.com/gopxl/beep/v2"
)

// AudioAvailable indicates whether audio playback is supported in this build.
// Audio requires CGO for native sound libraries.
const AudioAvailable = false

// speakerOutput is a placeholder output for builds without cgo.
// Use the null engine there.
type speakerOutput struct {
	mu sync.Mutex
}

func newSpeakerOutput() output {
	return &speakerOutput{}
}

func (o *speakerOutput) Init(rate beep.SampleRate, bufferSize int) error {
	return ErrAudioUnavailable
}

func (o *speakerOutput) Play(s beep.Streamer) {}

func (o *speakerOutput) Lock() {
	o.mu.Lock()
}

func (o *speakerOutput) Unlock() {
	o.mu.Unlock()
}

func (o *speakerOutput) Close() {}
