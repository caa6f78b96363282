// Package engine provides the audio engines that play samples.
package engine

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/raveforest/internal/domain/sample"
)

// Errors
var (
	ErrUnknownVoice      = errors.New("unknown voice")
	ErrAudioUnavailable  = errors.New("audio output is not available in this build")
	ErrUnsupportedEngine = errors.New("unsupported engine type")
)

// VoiceID identifies a playing voice.
type VoiceID string

// Voice describes one sample playback.
type Voice struct {
	Sample  sample.Ref
	Start   float64       // Start offset as a fraction of the sample
	Finish  float64       // End offset as a fraction of the sample
	Amp     float64       // Amplitude after the attack
	Rate    float64       // Playback rate
	Attack  time.Duration // Fade-in length
	Release time.Duration // Fade-out length at the natural end
}

// Engine is the interface for audio engines.
type Engine interface {
	// Name returns the engine name (used in config).
	Name() string
	// StartVoice starts playing a voice and returns its ID.
	StartVoice(ctx context.Context, v Voice) (VoiceID, error)
	// SetVoiceAmplitude ramps the voice amplitude to amp over ramp.
	// It returns ErrUnknownVoice when the voice has already ended.
	SetVoiceAmplitude(ctx context.Context, id VoiceID, amp float64, ramp time.Duration) error
	// FreeSample releases the resources held for the sample.
	FreeSample(ref sample.Ref) error
	// SampleDuration returns the duration of the given span of the sample at rate 1.
	SampleDuration(ref sample.Ref, start, finish float64) (time.Duration, error)
	// Close stops all voices and releases the output.
	Close() error
}

// spanDuration scales a full sample duration to the played span.
func spanDuration(d time.Duration, start, finish float64) time.Duration {
	if finish <= start {
		return 0
	}
	return time.Duration(float64(d) * (finish - start))
}
