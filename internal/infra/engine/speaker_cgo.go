//go:build (linux && cgo) || windows || darwin

package engine

import (
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// AudioAvailable indicates whether audio playback is supported in this build.
const AudioAvailable = true

// speakerOutput mixes voices onto the default audio device.
type speakerOutput struct{}

func newSpeakerOutput() output {
	return speakerOutput{}
}

func (speakerOutput) Init(rate beep.SampleRate, bufferSize int) error {
	return speaker.Init(rate, bufferSize)
}

func (speakerOutput) Play(s beep.Streamer) {
	speaker.Play(s)
}

func (speakerOutput) Lock() {
	speaker.Lock()
}

func (speakerOutput) Unlock() {
	speaker.Unlock()
}

func (speakerOutput) Close() {
	speaker.Close()
}
