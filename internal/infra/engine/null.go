package engine

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/raveforest/internal/domain/sample"
	"github.com/osa030/raveforest/internal/infra/samples"
)

// NullConfig represents the settings of the null engine.
type NullConfig struct {
	DefaultDuration time.Duration `yaml:"default_duration" mapstructure:"default_duration" default:"4s" validate:"gt=0"`
}

// NullEngine logs every call instead of producing sound.
// It is used for dry runs and on machines without audio output.
type NullEngine struct {
	cfg NullConfig
	lib *samples.Library

	mu     sync.Mutex
	voices map[VoiceID]nullVoice
	now    func() time.Time
}

type nullVoice struct {
	Voice
	ends time.Time // when the voice would have played out
}

// NewNullEngine creates a null engine. Sample durations are read from lib
// when the file can be decoded.
func NewNullEngine(cfg NullConfig, lib *samples.Library) *NullEngine {
	return &NullEngine{
		cfg:    cfg,
		lib:    lib,
		voices: make(map[VoiceID]nullVoice),
		now:    time.Now,
	}
}

func (e *NullEngine) Name() string {
	return "null"
}

func (e *NullEngine) StartVoice(ctx context.Context, v Voice) (VoiceID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	length, err := e.SampleDuration(v.Sample, v.Start, v.Finish)
	if err != nil {
		return "", err
	}
	if rate := math.Abs(v.Rate); rate > 0 {
		length = time.Duration(float64(length) / rate)
	}

	id := VoiceID(uuid.New().String())
	e.mu.Lock()
	now := e.now()
	e.pruneLocked(now)
	e.voices[id] = nullVoice{Voice: v, ends: now.Add(length)}
	e.mu.Unlock()

	zlog.Info().Msgf("engine: start voice: id=%s sample=%s start=%v finish=%v amp=%v rate=%.3f attack=%v release=%v",
		id, v.Sample, v.Start, v.Finish, v.Amp, v.Rate, v.Attack, v.Release)
	return id, nil
}

func (e *NullEngine) SetVoiceAmplitude(ctx context.Context, id VoiceID, amp float64, ramp time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pruneLocked(e.now())
	v, ok := e.voices[id]
	if !ok {
		return errors.Wrapf(ErrUnknownVoice, "%s", id)
	}
	if amp == 0 {
		delete(e.voices, id)
	}
	zlog.Info().Msgf("engine: set amplitude: id=%s sample=%s amp=%v ramp=%v", id, v.Sample, amp, ramp)
	return nil
}

func (e *NullEngine) FreeSample(ref sample.Ref) error {
	e.lib.Free(ref)
	zlog.Info().Msgf("engine: free sample: %s", ref)
	return nil
}

func (e *NullEngine) SampleDuration(ref sample.Ref, start, finish float64) (time.Duration, error) {
	if err := sample.ValidateName(ref.Name); err != nil {
		return 0, err
	}
	info, err := e.lib.Info(ref)
	if err != nil {
		zlog.Debug().Msgf("engine: using default duration: sample=%s err=%v", ref, err)
		return spanDuration(e.cfg.DefaultDuration, start, finish), nil
	}
	return spanDuration(info.Duration, start, finish), nil
}

// ActiveVoices returns the number of voices neither silenced nor played out.
func (e *NullEngine) ActiveVoices() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pruneLocked(e.now())
	return len(e.voices)
}

// pruneLocked forgets voices that reached their end. Caller holds e.mu.
func (e *NullEngine) pruneLocked(now time.Time) {
	for id, v := range e.voices {
		if !now.Before(v.ends) {
			delete(e.voices, id)
			zlog.Debug().Msgf("engine: voice ended: id=%s sample=%s", id, v.Sample)
		}
	}
}

func (e *NullEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.voices = make(map[VoiceID]nullVoice)
	return nil
}
