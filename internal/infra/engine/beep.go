package engine

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/gopxl/beep/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/raveforest/internal/domain/sample"
	"github.com/osa030/raveforest/internal/infra/samples"
)

// BeepConfig represents the settings of the beep engine.
type BeepConfig struct {
	SampleRate int `yaml:"sample_rate" mapstructure:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs   int `yaml:"buffer_ms" mapstructure:"buffer_ms" default:"100" validate:"gte=10,lte=1000"`
	Quality    int `yaml:"quality" mapstructure:"quality" default:"4" validate:"gte=1,lte=64"`
}

// output is the audio device the engine mixes into.
type output interface {
	Init(rate beep.SampleRate, bufferSize int) error
	Play(s beep.Streamer)
	Lock()
	Unlock()
	Close()
}

// BeepEngine plays samples on the local audio output.
type BeepEngine struct {
	cfg BeepConfig
	lib *samples.Library
	out output

	initMu      sync.Mutex
	initialized bool

	// mu is never held while taking the output lock: voice callbacks run
	// under the output lock and take mu.
	mu     sync.Mutex
	voices map[VoiceID]*envelope
	closed bool
}

// NewBeepEngine creates a beep engine on the default audio output.
// The output is opened on the first voice.
func NewBeepEngine(cfg BeepConfig, lib *samples.Library) *BeepEngine {
	return newBeepEngine(cfg, lib, newSpeakerOutput())
}

func newBeepEngine(cfg BeepConfig, lib *samples.Library, out output) *BeepEngine {
	return &BeepEngine{
		cfg:    cfg,
		lib:    lib,
		out:    out,
		voices: make(map[VoiceID]*envelope),
	}
}

func (e *BeepEngine) Name() string {
	return "beep"
}

func (e *BeepEngine) sampleRate() beep.SampleRate {
	return beep.SampleRate(e.cfg.SampleRate)
}

// ensureOutput opens the audio output once.
func (e *BeepEngine) ensureOutput() error {
	e.initMu.Lock()
	defer e.initMu.Unlock()

	if e.initialized {
		return nil
	}
	rate := e.sampleRate()
	bufferSize := rate.N(time.Duration(e.cfg.BufferMs) * time.Millisecond)
	if err := e.out.Init(rate, bufferSize); err != nil {
		return errors.Wrap(err, "failed to initialize audio output")
	}
	e.initialized = true
	zlog.Info().Msgf("engine: audio output initialized: rate=%d buffer=%d", rate, bufferSize)
	return nil
}

func (e *BeepEngine) StartVoice(ctx context.Context, v Voice) (VoiceID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := e.ensureOutput(); err != nil {
		return "", err
	}

	buf, err := e.lib.Load(v.Sample)
	if err != nil {
		return "", errors.Wrapf(err, "failed to load sample %s", v.Sample)
	}

	from := int(float64(buf.Len()) * v.Start)
	to := min(int(float64(buf.Len())*v.Finish), buf.Len())
	if to <= from {
		return "", errors.Newf("empty sample span: sample=%s start=%v finish=%v", v.Sample, v.Start, v.Finish)
	}

	rate := v.Rate
	if rate <= 0 {
		rate = 1
	}
	ratio := rate * float64(buf.Format().SampleRate) / float64(e.sampleRate())

	var src beep.Streamer = buf.Streamer(from, to)
	if ratio != 1 {
		src = beep.ResampleRatio(e.cfg.Quality, ratio, src)
	}

	out := e.sampleRate()
	env := &envelope{
		src:     src,
		total:   int(float64(to-from) / ratio),
		attack:  out.N(v.Attack),
		release: out.N(v.Release),
		amp:     v.Amp,
	}

	id := VoiceID(uuid.New().String())
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", errors.New("engine is closed")
	}
	e.voices[id] = env
	e.mu.Unlock()

	e.out.Play(beep.Seq(env, beep.Callback(func() {
		e.forget(id)
	})))

	zlog.Debug().Msgf("engine: voice started: id=%s sample=%s frames=%d ratio=%.3f", id, v.Sample, env.total, ratio)
	return id, nil
}

func (e *BeepEngine) SetVoiceAmplitude(ctx context.Context, id VoiceID, amp float64, ramp time.Duration) error {
	e.mu.Lock()
	env, ok := e.voices[id]
	e.mu.Unlock()
	if !ok {
		return errors.Wrapf(ErrUnknownVoice, "%s", id)
	}

	e.out.Lock()
	defer e.out.Unlock()
	if env.silenced {
		return errors.Wrapf(ErrUnknownVoice, "%s", id)
	}
	env.setAmplitude(amp, e.sampleRate().N(ramp))
	return nil
}

func (e *BeepEngine) FreeSample(ref sample.Ref) error {
	if e.lib.Free(ref) {
		zlog.Debug().Msgf("engine: sample freed: %s", ref)
	}
	return nil
}

func (e *BeepEngine) SampleDuration(ref sample.Ref, start, finish float64) (time.Duration, error) {
	info, err := e.lib.Info(ref)
	if err != nil {
		return 0, err
	}
	return spanDuration(info.Duration, start, finish), nil
}

// ActiveVoices returns the number of voices still producing sound.
func (e *BeepEngine) ActiveVoices() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.voices)
}

func (e *BeepEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	envs := make([]*envelope, 0, len(e.voices))
	for _, env := range e.voices {
		envs = append(envs, env)
	}
	e.mu.Unlock()

	e.initMu.Lock()
	defer e.initMu.Unlock()
	if !e.initialized {
		return nil
	}

	e.out.Lock()
	for _, env := range envs {
		env.silenced = true
	}
	e.out.Unlock()
	e.out.Close()
	e.initialized = false
	zlog.Info().Msgf("engine: audio output closed: silenced=%d", len(envs))
	return nil
}

// forget drops a voice once its stream has ended.
func (e *BeepEngine) forget(id VoiceID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.voices, id)
}
